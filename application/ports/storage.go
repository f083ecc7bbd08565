// Package ports defines the hexagonal boundary between the application
// layer and the persistence layer: the Storage Adapter the Node Service
// depends on, implemented by infrastructure/persistence/postgres.
package ports

import (
	"context"

	"nodetree/domain/path"
)

// DescendantNode is one row of a GetDescendants result.
type DescendantNode struct {
	Path  string
	Value map[string]string
}

// StorageAdapter translates logical node operations into calls against
// the relational backend. Every operation is cancellable through ctx;
// a cancelled ctx surfaces as an error classified errors.KindCancelled.
type StorageAdapter interface {
	SelectNode(ctx context.Context, p path.Path) (map[string]string, error)
	GetOverridden(ctx context.Context, p path.Path) (map[string]string, error)
	GetCombo(ctx context.Context, p path.Path) (map[string][]string, error)
	GetReverseCombo(ctx context.Context, p path.Path) (map[string][]string, error)
	GetAncestors(ctx context.Context, p path.Path) ([]string, error)
	GetChildren(ctx context.Context, p path.Path) ([]string, error)
	GetDescendants(ctx context.Context, p path.Path) ([]DescendantNode, error)
	SearchNode(ctx context.Context, p path.Path, pattern string) ([]string, error)

	CreateNode(ctx context.Context, p path.Path, value map[string]string) (int, error)
	UpdateNode(ctx context.Context, p path.Path, value map[string]string) (int, error)
	DeleteNode(ctx context.Context, p path.Path, keys []string, cascade bool) (int, error)
}
