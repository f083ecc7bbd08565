// Package commands defines the write-side operations the node service
// dispatches through the command bus: create, update and delete.
package commands

import (
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
)

// CreateNodeCommand creates a new node at Path with Value. Affected is
// filled in by the handler with the backend rowcount so the HTTP layer
// can report it without widening the command bus's error-only Handle signature.
type CreateNodeCommand struct {
	Path     path.Path
	Value    map[string]string
	Affected int
}

func (c *CreateNodeCommand) Validate() error {
	if c.Path.Namespace == "" || c.Path.Collection == "" {
		return apperrors.NewPathError("namespace and collection are required")
	}
	return nil
}

// UpdateNodeCommand merges Value into the node's existing map.
type UpdateNodeCommand struct {
	Path     path.Path
	Value    map[string]string
	Affected int
}

func (c *UpdateNodeCommand) Validate() error {
	if c.Path.Namespace == "" || c.Path.Collection == "" {
		return apperrors.NewPathError("namespace and collection are required")
	}
	return nil
}

// DeleteNodeCommand removes keys from a node, or the node/subtree/collection
// itself per the dispatch rules in §4.B.
type DeleteNodeCommand struct {
	Path     path.Path
	Keys     []string
	Cascade  bool
	Affected int
}

func (c *DeleteNodeCommand) Validate() error {
	if c.Path.Namespace == "" || c.Path.Collection == "" {
		return apperrors.NewPathError("namespace and collection are required")
	}
	return nil
}
