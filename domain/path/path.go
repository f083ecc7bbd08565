// Package path implements the hierarchical path model: parsing a node
// identifier into its namespace, collection and in-collection label,
// and the containment relation that the storage adapter maps onto the
// backend's labeled-tree type.
package path

import (
	"strings"

	apperrors "nodetree/pkg/errors"
)

// Path is a parsed node identifier: namespace.collection.label.
type Path struct {
	Namespace  string
	Collection string
	Label      string
}

// Parse normalizes separators and splits s into (namespace, collection, label).
// Both '/' and '.' are accepted as separators; '/' is normalized to '.'.
// Leading separators are stripped. Fewer than two non-empty leading
// segments is a PathError.
func Parse(s string) (Path, error) {
	normalized := strings.ReplaceAll(s, "/", ".")
	normalized = strings.TrimLeft(normalized, ".")

	if normalized == "" {
		return Path{}, apperrors.NewPathError("empty path")
	}

	parts := strings.SplitN(normalized, ".", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Path{}, apperrors.NewPathError("path must name a namespace and a collection: " + s)
	}

	label := ""
	if len(parts) == 3 {
		label = parts[2]
	}

	if err := validateLabel(label); err != nil {
		return Path{}, err
	}

	return Path{Namespace: parts[0], Collection: parts[1], Label: label}, nil
}

// validateLabel rejects empty interior segments and characters ltree
// itself cannot carry in a label.
func validateLabel(label string) error {
	if label == "" {
		return nil
	}
	for _, seg := range strings.Split(label, ".") {
		if seg == "" {
			return apperrors.NewPathError("path contains an empty label segment")
		}
		if strings.ContainsAny(seg, " \t\n@<>") {
			return apperrors.NewPathError("label segment contains an invalid character: " + seg)
		}
	}
	return nil
}

// ParseNamespace normalizes and validates a single-segment request: the
// namespace-level input `children` accepts on its own (§4.A edge case),
// where every other operation requires the full two-segment minimum.
func ParseNamespace(s string) (string, error) {
	normalized := strings.ReplaceAll(s, "/", ".")
	normalized = strings.Trim(normalized, ".")
	if normalized == "" || strings.Contains(normalized, ".") {
		return "", apperrors.NewPathError("expected a single namespace segment: " + s)
	}
	return normalized, nil
}

// Qualify re-materializes a fully-qualified external path from a label
// found under (ns, coll), dropping the trailing separator when label is empty.
func Qualify(ns, coll, label string) string {
	if label == "" {
		return ns + "." + coll
	}
	return ns + "." + coll + "." + label
}

// IsRoot reports whether p targets the collection root.
func (p Path) IsRoot() bool {
	return p.Label == ""
}

// Parent returns the label path with its last segment stripped, and
// whether p has a parent at all (the root has none).
func (p Path) Parent() (string, bool) {
	if p.Label == "" {
		return "", false
	}
	idx := strings.LastIndex(p.Label, ".")
	if idx < 0 {
		return "", true
	}
	return p.Label[:idx], true
}

// Contains reports whether p is an ancestor-or-equal of other under the
// prefix relation (p ⊑ other), evaluated purely on label segments
// within the same namespace/collection.
func (p Path) Contains(other Path) bool {
	if p.Namespace != other.Namespace || p.Collection != other.Collection {
		return false
	}
	if p.Label == "" {
		return true
	}
	if p.Label == other.Label {
		return true
	}
	return strings.HasPrefix(other.Label, p.Label+".")
}

// Qualified returns the fully-qualified external path for p.
func (p Path) Qualified() string {
	return Qualify(p.Namespace, p.Collection, p.Label)
}
