// Package handlers implements the Node Service: the HTTP handler that
// decodes a request into a node path plus optional map body, dispatches
// by method and query parameter, and serializes the result (§4.D).
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"nodetree/application/commands"
	"nodetree/application/commands/bus"
	querybus "nodetree/application/queries/bus"
	"nodetree/application/queries"
	"nodetree/domain/node"
	"nodetree/domain/path"
	apperrors "nodetree/pkg/errors"
)

// NodeHandler is the Node Service: it holds no storage reference of its
// own, routing every operation through the command/query buses so the
// Provisioning Controller and error classification stay confined to the
// storage adapter.
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

func NewNodeHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{commandBus: commandBus, queryBus: queryBus, logger: logger}
}

// ExtractPath parses the node path out of a request's URL, independent
// of method or body, so the Auth Guard can resolve a target namespace
// before the handler runs.
func ExtractPath(r *http.Request) (path.Path, bool) {
	raw, _, ok := splitFormat(rawNodePath(r))
	if !ok {
		return path.Path{}, false
	}
	if r.Method == http.MethodGet && r.URL.Query().Get("method") == "children" && !strings.ContainsAny(raw, "./") {
		ns, err := path.ParseNamespace(raw)
		if err != nil {
			return path.Path{}, false
		}
		return path.Path{Namespace: ns}, true
	}
	p, err := path.Parse(raw)
	if err != nil {
		return path.Path{}, false
	}
	return p, true
}

func rawNodePath(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, "/node")
	p = strings.TrimPrefix(p, "/")
	return strings.TrimSuffix(p, "/")
}

// splitFormat strips an optional trailing .json/.xml suffix from the
// last path segment. xml falls through to json content-type (§6, §9 Open Question 3).
func splitFormat(raw string) (string, string, bool) {
	if raw == "" {
		return "", "", false
	}
	format := "json"
	if idx := strings.LastIndex(raw, "."); idx >= 0 {
		suffix := raw[idx+1:]
		if suffix == "json" || suffix == "xml" {
			raw = raw[:idx]
			format = suffix
		}
	}
	return raw, format, true
}

// ServeHTTP implements the full request lifecycle from §4.D.
func (h *NodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _, ok := splitFormat(rawNodePath(r))
	if !ok {
		h.writeError(w, apperrors.NewPathError("missing node path"))
		return
	}

	// A single-segment path only makes sense for a namespace-level
	// children listing (§4.A edge case); every other verb needs the
	// normal namespace.collection[.label...] shape.
	if r.Method == http.MethodGet && r.URL.Query().Get("method") == "children" && !strings.ContainsAny(raw, "./") {
		ns, err := path.ParseNamespace(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.handleGet(r.Context(), w, r, path.Path{Namespace: ns})
		return
	}

	p, err := path.Parse(raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		h.handleGet(ctx, w, r, p)
	case http.MethodPut:
		h.handleCreate(ctx, w, p, body)
	case http.MethodPost:
		h.handleUpdate(ctx, w, p, body)
	case http.MethodDelete:
		h.handleDelete(ctx, w, r, p, body)
	default:
		h.writeError(w, apperrors.NewInvalidInput("unsupported method "+r.Method))
	}
}

func readBody(r *http.Request) (map[string]interface{}, error) {
	if r.ContentLength == 0 {
		return map[string]interface{}{}, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewInvalidInput("failed to read request body")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]interface{}{}, nil
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, apperrors.NewInvalidInput("body is not a JSON object")
	}
	return body, nil
}

func (h *NodeHandler) handleGet(ctx context.Context, w http.ResponseWriter, r *http.Request, p path.Path) {
	q := r.URL.Query()

	var result interface{}
	var err error

	switch {
	case q.Get("method") == "override":
		result, err = h.queryBus.Ask(ctx, queries.GetOverriddenQuery{Path: p})
	case q.Get("method") == "combo":
		result, err = h.queryBus.Ask(ctx, queries.GetComboQuery{Path: p})
	case q.Get("method") == "rcombo":
		result, err = h.queryBus.Ask(ctx, queries.GetReverseComboQuery{Path: p})
	case q.Get("method") == "ancestors":
		result, err = h.queryBus.Ask(ctx, queries.GetAncestorsQuery{Path: p})
	case q.Get("method") == "children":
		result, err = h.queryBus.Ask(ctx, queries.GetChildrenQuery{Path: p})
	case q.Get("method") == "descendants":
		result, err = h.queryBus.Ask(ctx, queries.GetDescendantsQuery{Path: p})
	case q.Get("q") != "":
		result, err = h.queryBus.Ask(ctx, queries.SearchNodeQuery{Path: p, Pattern: q.Get("q")})
	default:
		result, err = h.queryBus.Ask(ctx, queries.SelectNodeQuery{Path: p})
	}

	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *NodeHandler) handleCreate(ctx context.Context, w http.ResponseWriter, p path.Path, body map[string]interface{}) {
	value, err := node.ValidateValue(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cmd := &commands.CreateNodeCommand{Path: p, Value: value}
	if err := h.commandBus.Send(ctx, cmd); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, cmd.Affected, "created")
}

func (h *NodeHandler) handleUpdate(ctx context.Context, w http.ResponseWriter, p path.Path, body map[string]interface{}) {
	value, err := node.ValidateValue(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cmd := &commands.UpdateNodeCommand{Path: p, Value: value}
	if err := h.commandBus.Send(ctx, cmd); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, cmd.Affected, "modified")
}

func (h *NodeHandler) handleDelete(ctx context.Context, w http.ResponseWriter, r *http.Request, p path.Path, body map[string]interface{}) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cascade := r.URL.Query().Get("cascade") != ""

	cmd := &commands.DeleteNodeCommand{Path: p, Keys: keys, Cascade: cascade}
	if err := h.commandBus.Send(ctx, cmd); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, cmd.Affected, "modified")
}

func (h *NodeHandler) writeSuccess(w http.ResponseWriter, affected int, verb string) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  strconv.Itoa(affected) + " node(s) has been " + verb,
		"affected": affected,
	})
}

func (h *NodeHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(data); err != nil && h.logger != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *NodeHandler) writeError(w http.ResponseWriter, err error) {
	if apperrors.Is(err, apperrors.KindCancelled) {
		// client disconnected; swallow, write nothing (§4.D Cancellation).
		return
	}
	status := apperrors.HTTPStatus(err)
	appErr, _ := apperrors.As(err)
	kind := apperrors.KindInternal
	message := err.Error()
	if appErr != nil {
		kind = appErr.Kind
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{
		"error":    strings.ToLower(string(kind)),
		"message":  message,
		"instance": string(kind),
	})
}
