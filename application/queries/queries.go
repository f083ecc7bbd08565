// Package queries defines the read-side operations the node service
// dispatches through the query bus.
package queries

import (
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
)

type SelectNodeQuery struct{ Path path.Path }
type GetOverriddenQuery struct{ Path path.Path }
type GetComboQuery struct{ Path path.Path }
type GetReverseComboQuery struct{ Path path.Path }
type GetAncestorsQuery struct{ Path path.Path }
type GetChildrenQuery struct{ Path path.Path }
type GetDescendantsQuery struct{ Path path.Path }
type SearchNodeQuery struct {
	Path    path.Path
	Pattern string
}

func (q SelectNodeQuery) Validate() error       { return validatePath(q.Path) }
func (q GetOverriddenQuery) Validate() error    { return validatePath(q.Path) }
func (q GetComboQuery) Validate() error         { return validatePath(q.Path) }
func (q GetReverseComboQuery) Validate() error  { return validatePath(q.Path) }
func (q GetAncestorsQuery) Validate() error     { return validatePath(q.Path) }
func (q GetChildrenQuery) Validate() error      { return validatePath(q.Path) }
func (q GetDescendantsQuery) Validate() error   { return validatePath(q.Path) }
func (q SearchNodeQuery) Validate() error       { return validatePath(q.Path) }

func validatePath(p path.Path) error {
	if p.Namespace == "" {
		return apperrors.NewPathError("namespace is required")
	}
	return nil
}
