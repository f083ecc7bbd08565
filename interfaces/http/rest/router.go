// Package rest assembles the HTTP surface: chi router, ambient
// middleware (request ID, recoverer, logging, CORS) and the Node
// Service route tree.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	commandbus "nodetree/application/commands/bus"
	querybus "nodetree/application/queries/bus"
	"nodetree/application/ports"
	"nodetree/interfaces/http/rest/handlers"
	"nodetree/interfaces/http/rest/middleware"
)

// Router builds the service's chi mux.
type Router struct {
	commandBus *commandbus.CommandBus
	queryBus   *querybus.QueryBus
	storage    ports.StorageAdapter
	authCfg    middleware.AuthGuardConfig
	logger     *zap.Logger
}

func NewRouter(commandBus *commandbus.CommandBus, queryBus *querybus.QueryBus, storage ports.StorageAdapter, authCfg middleware.AuthGuardConfig, logger *zap.Logger) *Router {
	return &Router{commandBus: commandBus, queryBus: queryBus, storage: storage, authCfg: authCfg, logger: logger}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.Logger(rt.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, rt.logger)

	r.Route("/node", func(r chi.Router) {
		r.Use(middleware.AuthGuard(rt.authCfg, rt.storage, handlers.ExtractPath))
		r.Handle("/*", nodeHandler)
	})

	return r
}
