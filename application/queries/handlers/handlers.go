// Package handlers wires the query bus to the storage adapter.
package handlers

import (
	"context"
	"fmt"

	"nodetree/application/ports"
	"nodetree/application/queries"
	"nodetree/application/queries/bus"
)

type SelectNodeHandler struct{ storage ports.StorageAdapter }

func NewSelectNodeHandler(s ports.StorageAdapter) *SelectNodeHandler { return &SelectNodeHandler{s} }

func (h *SelectNodeHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.SelectNodeQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.SelectNode(ctx, query.Path)
}

type GetOverriddenHandler struct{ storage ports.StorageAdapter }

func NewGetOverriddenHandler(s ports.StorageAdapter) *GetOverriddenHandler {
	return &GetOverriddenHandler{s}
}

func (h *GetOverriddenHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetOverriddenQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetOverridden(ctx, query.Path)
}

type GetComboHandler struct{ storage ports.StorageAdapter }

func NewGetComboHandler(s ports.StorageAdapter) *GetComboHandler { return &GetComboHandler{s} }

func (h *GetComboHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetComboQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetCombo(ctx, query.Path)
}

type GetReverseComboHandler struct{ storage ports.StorageAdapter }

func NewGetReverseComboHandler(s ports.StorageAdapter) *GetReverseComboHandler {
	return &GetReverseComboHandler{s}
}

func (h *GetReverseComboHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetReverseComboQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetReverseCombo(ctx, query.Path)
}

type GetAncestorsHandler struct{ storage ports.StorageAdapter }

func NewGetAncestorsHandler(s ports.StorageAdapter) *GetAncestorsHandler {
	return &GetAncestorsHandler{s}
}

func (h *GetAncestorsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetAncestorsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetAncestors(ctx, query.Path)
}

type GetChildrenHandler struct{ storage ports.StorageAdapter }

func NewGetChildrenHandler(s ports.StorageAdapter) *GetChildrenHandler {
	return &GetChildrenHandler{s}
}

func (h *GetChildrenHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetChildrenQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetChildren(ctx, query.Path)
}

type GetDescendantsHandler struct{ storage ports.StorageAdapter }

func NewGetDescendantsHandler(s ports.StorageAdapter) *GetDescendantsHandler {
	return &GetDescendantsHandler{s}
}

func (h *GetDescendantsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetDescendantsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.GetDescendants(ctx, query.Path)
}

type SearchNodeHandler struct{ storage ports.StorageAdapter }

func NewSearchNodeHandler(s ports.StorageAdapter) *SearchNodeHandler { return &SearchNodeHandler{s} }

func (h *SearchNodeHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.SearchNodeQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.storage.SearchNode(ctx, query.Path, query.Pattern)
}
