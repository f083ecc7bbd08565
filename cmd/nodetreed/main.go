// Command nodetreed runs the node service: it loads configuration,
// wires the dependency container and serves the HTTP surface over
// either a TCP port or a Unix socket.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nodetree/infrastructure/config"
	"nodetree/infrastructure/di"
	"nodetree/interfaces/http/rest"
	"nodetree/interfaces/http/rest/middleware"
	"nodetree/pkg/ratelimit"
)

// principalRequestsPerMinute bounds how often any one authenticated
// principal may call the Node Service (§4.E, supplementary hardening).
const principalRequestsPerMinute = 120

func main() {
	flags := config.ParseFlags(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx := context.Background()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("building container: %v", err)
	}
	defer container.Close()

	authCfg := middleware.AuthGuardConfig{
		AdminUser: cfg.Server.AdminUser,
		AdminPass: cfg.Server.AdminPass,
		Limiter:   ratelimit.NewPrincipalLimiter(principalRequestsPerMinute),
	}

	router := rest.NewRouter(container.CommandBus, container.QueryBus, container.Storage, authCfg, container.Logger)

	srv := &http.Server{
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := listen(cfg)
	if err != nil {
		log.Fatalf("binding listener: %v", err)
	}

	go func() {
		container.Logger.Info("node service listening", zap.String("addr", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// listen binds a Unix socket when configured; it supersedes the TCP
// port (§6 Startup surface).
func listen(cfg config.Config) (net.Listener, error) {
	if cfg.Server.Socket != "" {
		os.Remove(cfg.Server.Socket)
		return net.Listen("unix", cfg.Server.Socket)
	}
	port := cfg.Server.Port
	if port == 0 {
		port = 8000
	}
	return net.Listen("tcp", ":"+strconv.Itoa(port))
}
