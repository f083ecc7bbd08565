package handlers_test

import (
	"context"
	"sort"
	"strings"

	"nodetree/application/ports"
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
)

// fakeStorage implements ports.StorageAdapter in memory, so the node
// service's dispatch and the tree-aware queries can be exercised without
// a live Postgres instance.
type fakeStorage struct {
	nodes map[string]map[string]map[string]string // label -> value, per collection key "ns.coll"
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{nodes: map[string]map[string]map[string]string{}}
}

func collKey(p path.Path) string { return p.Namespace + "." + p.Collection }

func (f *fakeStorage) table(p path.Path) map[string]map[string]string {
	key := collKey(p)
	t, ok := f.nodes[key]
	if !ok {
		return nil
	}
	return t
}

func (f *fakeStorage) SelectNode(ctx context.Context, p path.Path) (map[string]string, error) {
	t := f.table(p)
	if t == nil {
		return nil, apperrors.NewNodeNotFound("collection missing")
	}
	v, ok := t[p.Label]
	if !ok {
		return nil, apperrors.NewNodeNotFound("node missing: " + p.Qualified())
	}
	return v, nil
}

func (f *fakeStorage) ancestors(p path.Path) []string {
	t := f.table(p)
	var labels []string
	for label := range t {
		anc := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: label}
		if anc.Contains(p) {
			labels = append(labels, label)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return len(labels[i]) < len(labels[j]) })
	return labels
}

func (f *fakeStorage) GetOverridden(ctx context.Context, p path.Path) (map[string]string, error) {
	merged := map[string]string{}
	for _, label := range f.ancestors(p) {
		for k, v := range f.table(p)[label] {
			merged[k] = v
		}
	}
	return merged, nil
}

func (f *fakeStorage) GetCombo(ctx context.Context, p path.Path) (map[string][]string, error) {
	combo := map[string][]string{}
	for _, label := range f.ancestors(p) {
		for k, v := range f.table(p)[label] {
			combo[k] = append(combo[k], v)
		}
	}
	return combo, nil
}

func (f *fakeStorage) GetReverseCombo(ctx context.Context, p path.Path) (map[string][]string, error) {
	t := f.table(p)
	combo := map[string][]string{}
	var labels []string
	for label := range t {
		if p.Contains(path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: label}) {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	for _, label := range labels {
		for k, v := range t[label] {
			combo[k] = append(combo[k], v)
		}
	}
	return combo, nil
}

func (f *fakeStorage) GetAncestors(ctx context.Context, p path.Path) ([]string, error) {
	var out []string
	for _, label := range f.ancestors(p) {
		if label == p.Label {
			continue
		}
		out = append(out, path.Qualify(p.Namespace, p.Collection, label))
	}
	return out, nil
}

func (f *fakeStorage) GetChildren(ctx context.Context, p path.Path) ([]string, error) {
	var out []string
	depth := strings.Count(p.Label, ".")
	if p.Label != "" {
		depth++
	}
	for label := range f.table(p) {
		if label == p.Label {
			continue
		}
		anc := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: p.Label}
		child := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: label}
		childDepth := strings.Count(label, ".")
		if label != "" {
			childDepth++
		}
		if anc.Contains(child) && childDepth == depth+1 {
			out = append(out, path.Qualify(p.Namespace, p.Collection, label))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStorage) GetDescendants(ctx context.Context, p path.Path) ([]ports.DescendantNode, error) {
	var out []ports.DescendantNode
	for label, v := range f.table(p) {
		if label == p.Label {
			continue
		}
		child := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: label}
		if p.Contains(child) {
			out = append(out, ports.DescendantNode{Path: path.Qualify(p.Namespace, p.Collection, label), Value: v})
		}
	}
	return out, nil
}

func (f *fakeStorage) SearchNode(ctx context.Context, p path.Path, pattern string) ([]string, error) {
	var out []string
	for label := range f.table(p) {
		if strings.Contains(label, pattern) {
			out = append(out, path.Qualify(p.Namespace, p.Collection, label))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStorage) CreateNode(ctx context.Context, p path.Path, value map[string]string) (int, error) {
	key := collKey(p)
	t, ok := f.nodes[key]
	if !ok {
		t = map[string]map[string]string{"": {}}
		f.nodes[key] = t
	}
	if _, exists := t[p.Label]; exists {
		return 0, apperrors.NewPathDuplicated("already exists: " + p.Qualified())
	}
	if parent, hasParent := p.Parent(); hasParent && parent != "" {
		if _, exists := t[parent]; !exists {
			return 0, apperrors.NewParentNotFound("parent missing")
		}
	}
	cp := map[string]string{}
	for k, v := range value {
		cp[k] = v
	}
	t[p.Label] = cp
	return 1, nil
}

func (f *fakeStorage) UpdateNode(ctx context.Context, p path.Path, value map[string]string) (int, error) {
	t := f.table(p)
	if t == nil {
		return 0, apperrors.NewNodeNotFound("collection missing")
	}
	existing, ok := t[p.Label]
	if !ok {
		return 0, apperrors.NewNodeNotFound("node missing")
	}
	for k, v := range value {
		existing[k] = v
	}
	t[p.Label] = existing
	return 1, nil
}

func (f *fakeStorage) DeleteNode(ctx context.Context, p path.Path, keys []string, cascade bool) (int, error) {
	t := f.table(p)
	if t == nil {
		return 0, nil
	}
	switch {
	case len(keys) > 0:
		v, ok := t[p.Label]
		if !ok {
			return 0, nil
		}
		for _, k := range keys {
			delete(v, k)
		}
		return 1, nil
	case p.Label != "" && !cascade:
		if _, ok := t[p.Label]; !ok {
			return 0, nil
		}
		delete(t, p.Label)
		return 1, nil
	case p.Label != "" && cascade:
		n := 0
		for label := range t {
			child := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: label}
			if p.Contains(child) {
				delete(t, label)
				n++
			}
		}
		return n, nil
	case p.Label == "" && cascade:
		delete(f.nodes, collKey(p))
		return 1, nil
	default:
		return 0, nil
	}
}
