// Package handlers wires the command bus to the storage adapter.
package handlers

import (
	"context"
	"fmt"

	"nodetree/application/commands"
	"nodetree/application/commands/bus"
	"nodetree/application/ports"
)

// CreateNodeHandler executes CreateNodeCommand via the storage adapter;
// on the adapter side this goes through the Provisioning Controller.
type CreateNodeHandler struct {
	storage ports.StorageAdapter
}

func NewCreateNodeHandler(storage ports.StorageAdapter) *CreateNodeHandler {
	return &CreateNodeHandler{storage: storage}
}

func (h *CreateNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*commands.CreateNodeCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	n, err := h.storage.CreateNode(ctx, c.Path, c.Value)
	c.Affected = n
	return err
}

// UpdateNodeHandler executes UpdateNodeCommand.
type UpdateNodeHandler struct {
	storage ports.StorageAdapter
}

func NewUpdateNodeHandler(storage ports.StorageAdapter) *UpdateNodeHandler {
	return &UpdateNodeHandler{storage: storage}
}

func (h *UpdateNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*commands.UpdateNodeCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	n, err := h.storage.UpdateNode(ctx, c.Path, c.Value)
	c.Affected = n
	return err
}

// DeleteNodeHandler executes DeleteNodeCommand.
type DeleteNodeHandler struct {
	storage ports.StorageAdapter
}

func NewDeleteNodeHandler(storage ports.StorageAdapter) *DeleteNodeHandler {
	return &DeleteNodeHandler{storage: storage}
}

func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*commands.DeleteNodeCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	n, err := h.storage.DeleteNode(ctx, c.Path, c.Keys, c.Cascade)
	c.Affected = n
	return err
}
