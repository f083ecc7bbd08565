package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commandbus "nodetree/application/commands/bus"
	commandhandlers "nodetree/application/commands/handlers"
	"nodetree/application/commands"
	querybus "nodetree/application/queries/bus"
	queryhandlers "nodetree/application/queries/handlers"
	"nodetree/application/queries"
	"nodetree/application/ports"
	"nodetree/interfaces/http/rest/handlers"
)

func newTestHandler(t *testing.T, storage ports.StorageAdapter) *handlers.NodeHandler {
	t.Helper()

	cmdBus := commandbus.NewCommandBus()
	require.NoError(t, cmdBus.Register(&commands.CreateNodeCommand{}, commandhandlers.NewCreateNodeHandler(storage)))
	require.NoError(t, cmdBus.Register(&commands.UpdateNodeCommand{}, commandhandlers.NewUpdateNodeHandler(storage)))
	require.NoError(t, cmdBus.Register(&commands.DeleteNodeCommand{}, commandhandlers.NewDeleteNodeHandler(storage)))

	qBus := querybus.NewQueryBus()
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
		require.NoError(t, qBus.Register(reg.query, reg.handler))
	}

	return handlers.NewNodeHandler(cmdBus, qBus, zap.NewNop())
}

func doRequest(h *handlers.NodeHandler, method, target string, body map[string]interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateThenAncestors(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodPut, "/node/test/table/a/b", map[string]interface{}{"k": "2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodGet, "/node/test/table/a/b?method=ancestors", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ancestors []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ancestors))
	assert.Equal(t, []string{"test.table", "test.table.a"}, ancestors)
}

func TestCreateDuplicateRejected(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pathduplicated", body["error"])
	assert.Contains(t, body["message"], "already exists")
}

func TestCreateWithNestedValueRejected(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{
		"k": map[string]interface{}{"nested": "oops"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "datatypeerror", body["error"])
}

func TestCreateWithoutExistingParentRejected(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodPut, "/node/test/table/a/b", map[string]interface{}{"k": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "parentnotfound", body["error"])
}

func TestOverrideMergeDeepestWins(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1", "only-root": "r"}).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a/b", map[string]interface{}{"k": "2"}).Code)

	rec := doRequest(h, http.MethodGet, "/node/test/table/a/b?method=override", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var merged map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, "2", merged["k"])
	assert.Equal(t, "r", merged["only-root"])
}

func TestComboAggregatesAcrossAncestors(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1"}).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/table.table/ignored", nil).Code) // unrelated tree, no effect
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a/b", map[string]interface{}{"k": "2"}).Code)

	rec := doRequest(h, http.MethodGet, "/node/test/table/a/b?method=combo", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var combo map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &combo))
	assert.Equal(t, []string{"1", "2"}, combo["k"])
}

func TestReverseComboAggregatesAcrossDescendants(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1"}).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a/b", map[string]interface{}{"k": "2"}).Code)

	rec := doRequest(h, http.MethodGet, "/node/test/table/a?method=rcombo", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var combo map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &combo))
	assert.Equal(t, []string{"1", "2"}, combo["k"])
}

func TestUpdateThenDeleteKey(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a", map[string]interface{}{"k": "1", "j": "2"}).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/node/test/table/a", map[string]interface{}{"k": "updated"}).Code)

	rec := doRequest(h, http.MethodGet, "/node/test/table/a", nil)
	var v map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "updated", v["k"])
	assert.Equal(t, "2", v["j"])

	rec = doRequest(h, http.MethodDelete, "/node/test/table/a", map[string]interface{}{"j": nil})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodGet, "/node/test/table/a", nil)
	v = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	_, hasJ := v["j"]
	assert.False(t, hasJ)
	assert.Equal(t, "updated", v["k"])
}

func TestDeleteCascadeRemovesSubtree(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/a/b", nil).Code)

	rec := doRequest(h, http.MethodDelete, "/node/test/table/a?cascade=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodGet, "/node/test/table/a/b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchByPattern(t *testing.T) {
	store := newFakeStorage()
	h := newTestHandler(t, store)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/alpha", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPut, "/node/test/table/beta", nil).Code)

	rec := doRequest(h, http.MethodGet, "/node/test/table?q=alp", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var matches []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matches))
	assert.Equal(t, []string{"test.table.alpha"}, matches)
}

func TestChildrenAtNamespaceRoot(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodGet, "/node/test?method=children", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var collections []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &collections))
	assert.Empty(t, collections)
}

func TestUnsupportedMethodRejected(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodPatch, "/node/test/table/a", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingPathRejected(t *testing.T) {
	h := newTestHandler(t, newFakeStorage())

	rec := doRequest(h, http.MethodGet, "/node/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
