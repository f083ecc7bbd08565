// Package postgres implements the Storage Adapter (§4.B) and the
// Provisioning Controller (§4.C) against a PostgreSQL backend using the
// ltree and hstore extensions: ltree for the labeled-tree path column
// and its containment operators, hstore for the string-to-string value
// column.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nodetree/application/ports"
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
)

var (
	regexNoTable  = regexp.MustCompile(`relation "([^"]+)" does not exist`)
	regexNoSchema = regexp.MustCompile(`schema "([^"]+)" does not exist`)
	regexDupKey   = regexp.MustCompile(`^duplicate key value violates`)
)

const maxProvisionRetries = 3

// Adapter implements ports.StorageAdapter against a pgx connection pool.
// It owns the pool exclusively; there is no process-wide singleton
// (design note: explicit adapter instance, constructed once at startup
// and passed into the node service).
type Adapter struct {
	pool *pgxpool.Pool
}

// New wraps an already-configured pool. The pool's min/max size comes
// from [backend:main] cp_min/cp_max (see infrastructure/config).
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

var _ ports.StorageAdapter = (*Adapter)(nil)

// quoteIdent renders s as a double-quoted SQL identifier, escaping an
// internal '"' with a backslash per the storage adapter's quoting rule.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func tableRef(p path.Path) string {
	return quoteIdent(p.Namespace) + "." + quoteIdent(p.Collection)
}

func labelToLtree(label string) string {
	if label == "" {
		return ""
	}
	return label
}

// classify turns a raw backend error into the error-kind taxonomy,
// preferring pgx's structured error code and falling back to the two
// documented regexes when the driver didn't give us one (design note:
// error-message-driven control flow is a fallback, not the primary path).
func classify(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errIsCancelled(err) {
		return apperrors.NewCancelled("request cancelled").WithCause(err)
	}

	var pgErr *pgconn.PgError
	msg := err.Error()
	isPgErr := false
	if e, ok := asPgError(err); ok {
		pgErr = e
		isPgErr = true
		msg = pgErr.Message
	}

	switch {
	case isPgErr && pgErr.Code == "42P01", regexNoTable.MatchString(msg):
		return apperrors.NewNodeNotFound("collection does not exist").WithCause(err)
	case isPgErr && pgErr.Code == "3F000", regexNoSchema.MatchString(msg):
		return apperrors.NewNodeNotFound("namespace does not exist").WithCause(err)
	case isPgErr && pgErr.Code == "23505", regexDupKey.MatchString(msg):
		return apperrors.NewPathDuplicated("path already exists").WithCause(err)
	default:
		return apperrors.NewInternal("storage error").WithCause(err)
	}
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	for e := err; e != nil; {
		if pe, ok := e.(*pgconn.PgError); ok {
			return pe, true
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	return pgErr, false
}

func errIsCancelled(err error) bool {
	return err == context.Canceled || strings.Contains(err.Error(), "context canceled")
}

// isProvisionable reports whether a classified error is the
// namespace/collection-missing kind (NodeNotFound). CreateNode uses it to
// report a parent pre-check against a missing table as ParentNotFound.
func isProvisionable(appErr *apperrors.AppError) bool {
	return appErr.Kind == apperrors.KindNodeNotFound
}

// -------------------- reads --------------------

func (a *Adapter) exists(ctx context.Context, conn *pgxpool.Conn, p path.Path) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE node_path = $1::ltree LIMIT 1`, tableRef(p))
	var one int
	err := conn.QueryRow(ctx, q, labelToLtree(p.Label)).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (a *Adapter) SelectNode(ctx context.Context, p path.Path) (map[string]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	ok, err := a.exists(ctx, conn, p)
	if err != nil {
		return nil, classify(err)
	}
	if !ok {
		return nil, apperrors.NewNodeNotFound("node not found: " + p.Qualified())
	}

	q := fmt.Sprintf(`SELECT node_value::text FROM %s WHERE node_path = $1::ltree LIMIT 1`, tableRef(p))
	var text string
	if err := conn.QueryRow(ctx, q, labelToLtree(p.Label)).Scan(&text); err != nil {
		return nil, classify(err)
	}
	return parseHstore(text), nil
}

// ancestorRows returns (path label, hstore text) for every ancestor-or-self
// of p, ordered root-first.
func (a *Adapter) ancestorRows(ctx context.Context, conn *pgxpool.Conn, p path.Path) ([]struct {
	label string
	value map[string]string
}, error) {
	q := fmt.Sprintf(`SELECT node_path::text, node_value::text FROM %s WHERE node_path @> $1::ltree ORDER BY node_path ASC`, tableRef(p))
	rows, err := conn.Query(ctx, q, labelToLtree(p.Label))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []struct {
		label string
		value map[string]string
	}
	for rows.Next() {
		var label, text string
		if err := rows.Scan(&label, &text); err != nil {
			return nil, classify(err)
		}
		out = append(out, struct {
			label string
			value map[string]string
		}{label: label, value: parseHstore(text)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (a *Adapter) GetOverridden(ctx context.Context, p path.Path) (map[string]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	rows, err := a.ancestorRows(ctx, conn, p)
	if err != nil {
		return nil, err
	}
	merged := map[string]string{}
	for _, r := range rows {
		for k, v := range r.value {
			merged[k] = v
		}
	}
	return merged, nil
}

func (a *Adapter) GetCombo(ctx context.Context, p path.Path) (map[string][]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	rows, err := a.ancestorRows(ctx, conn, p)
	if err != nil {
		return nil, err
	}
	return combine(rows), nil
}

func combine(rows []struct {
	label string
	value map[string]string
}) map[string][]string {
	combo := map[string][]string{}
	for _, r := range rows {
		for k, v := range r.value {
			combo[k] = append(combo[k], v)
		}
	}
	return combo
}

func (a *Adapter) GetReverseCombo(ctx context.Context, p path.Path) (map[string][]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	q := fmt.Sprintf(`SELECT node_path::text, node_value::text FROM %s WHERE node_path <@ $1::ltree ORDER BY node_path ASC`, tableRef(p))
	rows, err := conn.Query(ctx, q, labelToLtree(p.Label))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []struct {
		label string
		value map[string]string
	}
	for rows.Next() {
		var label, text string
		if err := rows.Scan(&label, &text); err != nil {
			return nil, classify(err)
		}
		result = append(result, struct {
			label string
			value map[string]string
		}{label: label, value: parseHstore(text)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return combine(result), nil
}

func (a *Adapter) GetAncestors(ctx context.Context, p path.Path) ([]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	rows, err := a.ancestorRows(ctx, conn, p)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range rows {
		if r.label == labelToLtree(p.Label) {
			continue
		}
		out = append(out, path.Qualify(p.Namespace, p.Collection, r.label))
	}
	return out, nil
}

func (a *Adapter) GetChildren(ctx context.Context, p path.Path) ([]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	if p.Collection == "" {
		q := `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`
		rows, err := conn.Query(ctx, q, p.Namespace)
		if err != nil {
			return nil, classify(err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, classify(err)
			}
			out = append(out, p.Namespace+"."+name)
		}
		return out, rows.Err()
	}

	depth := 0
	if p.Label != "" {
		depth = strings.Count(p.Label, ".") + 1
	}
	q := fmt.Sprintf(`SELECT node_path::text FROM %s WHERE node_path <@ $1::ltree AND nlevel(node_path) = $2 ORDER BY node_path`, tableRef(p))
	rows, err := conn.Query(ctx, q, labelToLtree(p.Label), depth+1)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, classify(err)
		}
		out = append(out, path.Qualify(p.Namespace, p.Collection, label))
	}
	return out, rows.Err()
}

func (a *Adapter) GetDescendants(ctx context.Context, p path.Path) ([]ports.DescendantNode, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	q := fmt.Sprintf(`SELECT node_path::text, node_value::text FROM %s WHERE node_path <@ $1::ltree AND node_path != $1::ltree ORDER BY node_path`, tableRef(p))
	rows, err := conn.Query(ctx, q, labelToLtree(p.Label))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []ports.DescendantNode
	for rows.Next() {
		var label, text string
		if err := rows.Scan(&label, &text); err != nil {
			return nil, classify(err)
		}
		out = append(out, ports.DescendantNode{
			Path:  path.Qualify(p.Namespace, p.Collection, label),
			Value: parseHstore(text),
		})
	}
	return out, rows.Err()
}

func (a *Adapter) SearchNode(ctx context.Context, p path.Path, pattern string) ([]string, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer conn.Release()

	q := fmt.Sprintf(`SELECT node_path::text FROM %s WHERE node_path ~ $1::lquery ORDER BY node_path`, tableRef(p))
	rows, err := conn.Query(ctx, q, pattern)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, classify(err)
		}
		out = append(out, path.Qualify(p.Namespace, p.Collection, label))
	}
	return out, rows.Err()
}

// -------------------- writes / provisioning --------------------

// CreateNode inserts a new node, provisioning the containing namespace
// and/or collection on demand (§4.C). Retries are bounded to
// maxProvisionRetries; a parent-existence pre-check runs for labels of
// more than one segment before the insert is attempted at all.
func (a *Adapter) CreateNode(ctx context.Context, p path.Path, value map[string]string) (int, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Release()

	if parentLabel, hasParent := p.Parent(); hasParent && parentLabel != "" {
		parentPath := path.Path{Namespace: p.Namespace, Collection: p.Collection, Label: parentLabel}
		ok, err := a.exists(ctx, conn, parentPath)
		if err != nil {
			if appErr, isAppErr := apperrors.As(err); isAppErr && isProvisionable(appErr) {
				return 0, apperrors.NewParentNotFound("parent does not exist: " + parentPath.Qualified())
			}
			return 0, err
		}
		if !ok {
			return 0, apperrors.NewParentNotFound("parent does not exist: " + parentPath.Qualified())
		}
	}

	return a.createNode(ctx, conn, p, value, 0)
}

func (a *Adapter) createNode(ctx context.Context, conn *pgxpool.Conn, p path.Path, value map[string]string, attempt int) (int, error) {
	if attempt > maxProvisionRetries {
		return 0, apperrors.NewNodeCreationError("exceeded provisioning retry cap for " + p.Qualified())
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, classify(err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s(node_path, node_value) VALUES ($1::ltree, $2::hstore)`, tableRef(p))
	_, insertErr := tx.Exec(ctx, insertSQL, labelToLtree(p.Label), serializeHstore(value))
	if insertErr == nil {
		if p.Label != "" && strings.Contains(p.Label, ".") {
			rootSQL := fmt.Sprintf(`INSERT INTO %s(node_path, node_value) VALUES (''::ltree, ''::hstore) ON CONFLICT DO NOTHING`, tableRef(p))
			if _, err := tx.Exec(ctx, rootSQL); err != nil {
				_ = tx.Rollback(ctx)
				return 0, classify(err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, classify(err)
		}
		return 1, nil
	}

	_ = tx.Rollback(ctx)

	appErr := classify(insertErr)
	if appErr.Kind == apperrors.KindPathDuplicated {
		return 0, appErr
	}
	if appErr.Kind != apperrors.KindNodeNotFound {
		return 0, appErr
	}

	if err := a.provision(ctx, conn, p, strings.Contains(appErr.Message, "namespace")); err != nil {
		return 0, err
	}
	return a.createNode(ctx, conn, p, value, attempt+1)
}

// provision issues the DDL fix for a missing namespace or collection
// and materializes an empty root record for the collection.
func (a *Adapter) provision(ctx context.Context, conn *pgxpool.Conn, p path.Path, missingNamespace bool) error {
	if missingNamespace {
		if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, quoteIdent(p.Namespace))); err != nil {
			return classify(err)
		}
	}
	createTable := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s(id SERIAL PRIMARY KEY, node_path ltree UNIQUE, node_value hstore, last_modified TIMESTAMPTZ DEFAULT now())`,
		tableRef(p),
	)
	if _, err := conn.Exec(ctx, createTable); err != nil {
		return classify(err)
	}
	indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (node_path)`,
		quoteIdent(p.Collection+"_path_gist"), tableRef(p))
	if _, err := conn.Exec(ctx, indexSQL); err != nil {
		return classify(err)
	}
	rootSQL := fmt.Sprintf(`INSERT INTO %s(node_path, node_value) VALUES (''::ltree, ''::hstore) ON CONFLICT DO NOTHING`, tableRef(p))
	if _, err := conn.Exec(ctx, rootSQL); err != nil {
		return classify(err)
	}
	return nil
}

func (a *Adapter) UpdateNode(ctx context.Context, p path.Path, value map[string]string) (int, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Release()

	ok, err := a.exists(ctx, conn, p)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperrors.NewNodeNotFound("node not found: " + p.Qualified())
	}

	q := fmt.Sprintf(`UPDATE %s SET node_value = node_value || $1::hstore, last_modified = now() WHERE node_path = $2::ltree`, tableRef(p))
	tag, err := conn.Exec(ctx, q, serializeHstore(value), labelToLtree(p.Label))
	if err != nil {
		return 0, classify(err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteNode dispatches per §4.B's delete rules.
func (a *Adapter) DeleteNode(ctx context.Context, p path.Path, keys []string, cascade bool) (int, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Release()

	switch {
	case len(keys) > 0:
		sortedKeys := append([]string(nil), keys...)
		sort.Strings(sortedKeys)
		q := fmt.Sprintf(`UPDATE %s SET node_value = delete(node_value, $1::text[]), last_modified = now() WHERE node_path = $2::ltree`, tableRef(p))
		tag, err := conn.Exec(ctx, q, sortedKeys, labelToLtree(p.Label))
		if err != nil {
			return 0, classify(err)
		}
		return int(tag.RowsAffected()), nil

	case p.Label != "" && !cascade:
		q := fmt.Sprintf(`DELETE FROM %s WHERE node_path = $1::ltree`, tableRef(p))
		tag, err := conn.Exec(ctx, q, labelToLtree(p.Label))
		if err != nil {
			return 0, classify(err)
		}
		return int(tag.RowsAffected()), nil

	case p.Label != "" && cascade:
		q := fmt.Sprintf(`DELETE FROM %s WHERE node_path <@ $1::ltree`, tableRef(p))
		tag, err := conn.Exec(ctx, q, labelToLtree(p.Label))
		if err != nil {
			return 0, classify(err)
		}
		return int(tag.RowsAffected()), nil

	case p.Label == "" && cascade:
		q := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableRef(p))
		if _, err := conn.Exec(ctx, q); err != nil {
			return 0, classify(err)
		}
		return 1, nil

	default:
		return 0, nil
	}
}
