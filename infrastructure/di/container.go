// Package di assembles the application's dependency graph. The teacher
// repo wires this with google/wire behind a //go:build wireinject file
// and a generated wire_gen.go; since nothing here is ever code-generated,
// the container is hand-built with the same provider-function shape
// wire would have produced.
package di

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	commandbus "nodetree/application/commands/bus"
	commandhandlers "nodetree/application/commands/handlers"
	"nodetree/application/commands"
	querybus "nodetree/application/queries/bus"
	queryhandlers "nodetree/application/queries/handlers"
	"nodetree/application/queries"
	"nodetree/application/ports"
	"nodetree/infrastructure/config"
	"nodetree/infrastructure/persistence/postgres"
)

// Container holds every long-lived dependency constructed at startup.
type Container struct {
	Config     config.Config
	Logger     *zap.Logger
	Pool       *pgxpool.Pool
	Storage    ports.StorageAdapter
	CommandBus *commandbus.CommandBus
	QueryBus   *querybus.QueryBus
}

// NewContainer builds every dependency in order: logger, connection
// pool, storage adapter, then the command/query buses with their
// handlers registered.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	logger, err := provideLogger()
	if err != nil {
		return nil, err
	}

	pool, err := providePool(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}

	storage := postgres.New(pool)

	cmdBus, err := provideCommandBus(storage)
	if err != nil {
		return nil, err
	}

	qBus, err := provideQueryBus(storage)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		Storage:    storage,
		CommandBus: cmdBus,
		QueryBus:   qBus,
	}, nil
}

func provideLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func providePool(ctx context.Context, cfg config.BackendConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing backend dsn: %w", err)
	}
	poolCfg.MinConns = int32(cfg.CPMin)
	poolCfg.MaxConns = int32(cfg.CPMax)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}

func provideCommandBus(storage ports.StorageAdapter) (*commandbus.CommandBus, error) {
	b := commandbus.NewCommandBus()

	if err := b.Register(&commands.CreateNodeCommand{}, commandhandlers.NewCreateNodeHandler(storage)); err != nil {
		return nil, err
	}
	if err := b.Register(&commands.UpdateNodeCommand{}, commandhandlers.NewUpdateNodeHandler(storage)); err != nil {
		return nil, err
	}
	if err := b.Register(&commands.DeleteNodeCommand{}, commandhandlers.NewDeleteNodeHandler(storage)); err != nil {
		return nil, err
	}
	return b, nil
}

func provideQueryBus(storage ports.StorageAdapter) (*querybus.QueryBus, error) {
	b := querybus.NewQueryBus()

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.SelectNodeQuery{}, queryhandlers.NewSelectNodeHandler(storage)},
		{queries.GetOverriddenQuery{}, queryhandlers.NewGetOverriddenHandler(storage)},
		{queries.GetComboQuery{}, queryhandlers.NewGetComboHandler(storage)},
		{queries.GetReverseComboQuery{}, queryhandlers.NewGetReverseComboHandler(storage)},
		{queries.GetAncestorsQuery{}, queryhandlers.NewGetAncestorsHandler(storage)},
		{queries.GetChildrenQuery{}, queryhandlers.NewGetChildrenHandler(storage)},
		{queries.GetDescendantsQuery{}, queryhandlers.NewGetDescendantsHandler(storage)},
		{queries.SearchNodeQuery{}, queryhandlers.NewSearchNodeHandler(storage)},
	}

	for _, reg := range registrations {
		if err := b.Register(reg.query, reg.handler); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Close releases the connection pool and flushes the logger.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
