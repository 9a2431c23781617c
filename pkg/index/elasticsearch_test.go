package index

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/facility/pkg/types"
)

type esRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeElasticsearch records requests and answers with canned responses
type fakeElasticsearch struct {
	mu       sync.Mutex
	requests []esRequest
	indices  map[string]bool
	search   func(w http.ResponseWriter, body map[string]any)
}

func newFakeElasticsearch(t *testing.T) (*fakeElasticsearch, *httptest.Server) {
	fake := &fakeElasticsearch{indices: map[string]bool{}}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeElasticsearch) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, esRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		w.Write([]byte(`{"tagline":"You Know, for Search"}`))
	case len(parts) == 1 && r.Method == http.MethodHead:
		if f.indices[parts[0]] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indices[parts[0]] = true
		w.Write([]byte(`{"acknowledged":true}`))
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"result":"not_found"}`))
	case len(parts) == 3 && parts[1] == "_doc":
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	case len(parts) == 2 && parts[1] == "_search":
		var query map[string]any
		json.Unmarshal(body, &query)
		if f.search == nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
			return
		}
		f.search(w, query)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeElasticsearch) last() esRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestElasticsearchIndexStore_CreatesIndexPerKind(t *testing.T) {
	fake, server := newFakeElasticsearch(t)

	_, err := NewElasticsearchIndexStore(context.Background(), ElasticsearchConfig{URL: server.URL, IndexPrefix: "test"})
	require.NoError(t, err)

	assert.True(t, fake.indices["test-facility"])
	assert.True(t, fake.indices["test-room"])
	assert.True(t, fake.indices["test-resident"])
}

func TestElasticsearchIndexStore_UpsertAndDelete(t *testing.T) {
	fake, server := newFakeElasticsearch(t)
	ctx := context.Background()

	store, err := NewElasticsearchIndexStore(ctx, ElasticsearchConfig{URL: server.URL, IndexPrefix: "test"})
	require.NoError(t, err)

	room := &types.Room{ID: types.Int64(3), RoomNumber: types.Int(10000), Facility: &types.Facility{ID: types.Int64(1), Name: types.String("AAAAAAAAAA")}}
	doc, err := NewDocument(room)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, doc))

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/test-room/_doc/3", req.Path)
	assert.JSONEq(t, `{"id":3,"room_number":10000,"facility":{"id":1,"name":"AAAAAAAAAA"}}`, req.Body)

	// A missing document is not an error
	require.NoError(t, store.Delete(ctx, types.KindRoom, 3))
	assert.Equal(t, http.MethodDelete, fake.last().Method)
}

func TestElasticsearchIndexStore_Search(t *testing.T) {
	fake, server := newFakeElasticsearch(t)
	ctx := context.Background()

	var captured map[string]any
	fake.search = func(w http.ResponseWriter, query map[string]any) {
		captured = query
		w.Write([]byte(`{
			"hits": {
				"total": {"value": 7, "relation": "eq"},
				"hits": [
					{"_id": "1", "_source": {"id": 1, "name": "AAAAAAAAAA"}},
					{"_id": "2", "_source": {"id": 2, "name": "BBBBBBBBBB"}}
				]
			}
		}`))
	}

	store, err := NewElasticsearchIndexStore(ctx, ElasticsearchConfig{URL: server.URL, IndexPrefix: "test"})
	require.NoError(t, err)

	pageable := types.Pageable{Page: 1, Size: 2, Sort: []types.SortOrder{{Field: "name", Direction: types.SortDesc}}}
	result, err := store.Search(ctx, types.KindFacility, "name:A*", pageable)
	require.NoError(t, err)

	assert.Equal(t, "/test-facility/_search", fake.last().Path)
	assert.Equal(t, int64(7), result.Total)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, int64(2), result.Documents[1].ID)

	assert.EqualValues(t, 2, captured["from"])
	assert.EqualValues(t, 2, captured["size"])
	assert.Equal(t, true, captured["track_total_hits"])
	assert.Equal(t, map[string]any{"query_string": map[string]any{"query": "name:A*"}}, captured["query"])
	assert.Equal(t, []any{map[string]any{"name.keyword": map[string]any{"order": "desc"}}}, captured["sort"])
}

func TestElasticsearchIndexStore_SearchPastResultWindow(t *testing.T) {
	fake, server := newFakeElasticsearch(t)
	ctx := context.Background()

	var captured map[string]any
	fake.search = func(w http.ResponseWriter, query map[string]any) {
		captured = query
		w.Write([]byte(`{"hits": {"total": {"value": 3, "relation": "eq"}, "hits": []}}`))
	}

	store, err := NewElasticsearchIndexStore(ctx, ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	pageable := types.Pageable{Page: math.MaxInt, Size: 20}.Normalize()
	result, err := store.Search(ctx, types.KindFacility, "*", pageable)
	require.NoError(t, err)

	assert.EqualValues(t, 0, captured["from"])
	assert.EqualValues(t, 0, captured["size"])
	assert.Empty(t, result.Documents)
	assert.Equal(t, int64(3), result.Total)
}

func TestElasticsearchIndexStore_SearchMissingIndexIsEmpty(t *testing.T) {
	_, server := newFakeElasticsearch(t)
	ctx := context.Background()

	store, err := NewElasticsearchIndexStore(ctx, ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	result, err := store.Search(ctx, types.KindResident, "anything", types.DefaultPageable())
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Equal(t, int64(0), result.Total)
}

func TestElasticsearchIndexStore_Ping(t *testing.T) {
	_, server := newFakeElasticsearch(t)
	ctx := context.Background()

	store, err := NewElasticsearchIndexStore(ctx, ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, store.Ping(ctx))

	server.Close()
	assert.Error(t, store.Ping(ctx))
}

func TestBuildQuery_MatchAll(t *testing.T) {
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, buildQuery(""))
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, buildQuery(" * "))
}
