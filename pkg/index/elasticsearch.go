package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/facilityhub/facility/pkg/types"
)

// maxResultWindow is Elasticsearch's default index.max_result_window
const maxResultWindow = 10000

// Sort fields that Elasticsearch maps as text and must be sorted on their
// keyword sub-field
var keywordSortFields = map[string]bool{
	"name":  true,
	"email": true,
}

// ElasticsearchIndexStore implements IndexStore using Elasticsearch.
// Each record kind gets its own index named {prefix}-{kind}.
type ElasticsearchIndexStore struct {
	baseURL     string
	indexPrefix string
	username    string
	password    string
	httpClient  *http.Client
}

// ElasticsearchConfig holds configuration for the Elasticsearch store
type ElasticsearchConfig struct {
	URL         string // e.g., "http://localhost:9200"
	IndexPrefix string // e.g., "facility"
	Username    string
	Password    string
	Timeout     time.Duration
}

// NewElasticsearchIndexStore creates a new Elasticsearch-backed index store
func NewElasticsearchIndexStore(ctx context.Context, cfg ElasticsearchConfig) (*ElasticsearchIndexStore, error) {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:9200"
	}
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "facility"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	store := &ElasticsearchIndexStore{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		indexPrefix: cfg.IndexPrefix,
		username:    cfg.Username,
		password:    cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	for _, kind := range types.Kinds {
		if err := store.ensureIndex(ctx, kind); err != nil {
			return nil, fmt.Errorf("failed to ensure index: %w", err)
		}
	}

	log.Info().Str("url", store.baseURL).Str("prefix", store.indexPrefix).Msg("connected to elasticsearch")
	return store, nil
}

// IndexName returns the index holding documents of kind
func (s *ElasticsearchIndexStore) IndexName(kind types.Kind) string {
	return s.indexPrefix + "-" + string(kind)
}

// ensureIndex creates the index for kind if it doesn't exist
func (s *ElasticsearchIndexStore) ensureIndex(ctx context.Context, kind types.Kind) error {
	resp, err := s.do(ctx, http.MethodHead, "/"+s.IndexName(kind), nil)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	settings := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}

	resp, err = s.do(ctx, http.MethodPut, "/"+s.IndexName(kind), settings)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		// Another replica may have created it first
		if isAlreadyExists(respBody) {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %s", s.IndexName(kind), string(respBody))
	}

	return nil
}

// Upsert inserts or replaces a document
func (s *ElasticsearchIndexStore) Upsert(ctx context.Context, doc *Document) error {
	path := fmt.Sprintf("/%s/_doc/%d?refresh=wait_for", s.IndexName(doc.Kind), doc.ID)

	resp, err := s.do(ctx, http.MethodPut, path, doc.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to upsert document: %s", string(respBody))
	}

	return nil
}

// Delete removes a document from the index
func (s *ElasticsearchIndexStore) Delete(ctx context.Context, kind types.Kind, id int64) error {
	path := fmt.Sprintf("/%s/_doc/%d?refresh=wait_for", s.IndexName(kind), id)

	resp, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer resp.Body.Close()

	// 404 is ok - document didn't exist
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete document: %s", string(respBody))
	}

	return nil
}

// Search runs a query_string query against the kind's index
func (s *ElasticsearchIndexStore) Search(ctx context.Context, kind types.Kind, queryStr string, pageable types.Pageable) (*SearchResult, error) {
	if err := pageable.Validate(kind); err != nil {
		return nil, err
	}

	log.Debug().Str("kind", string(kind)).Str("query", queryStr).Msg("searching elasticsearch index")

	from, size := pageable.Offset(), pageable.Size
	// Past the result window only the total is fetched
	if from > maxResultWindow-size {
		from, size = 0, 0
	}

	query := map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"query":            buildQuery(queryStr),
	}
	if sorts := buildSort(pageable); len(sorts) > 0 {
		query["sort"] = sorts
	}

	resp, err := s.do(ctx, http.MethodPost, "/"+s.IndexName(kind)+"/_search", query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	// Nothing has been indexed for this kind yet
	if resp.StatusCode == http.StatusNotFound {
		return &SearchResult{}, nil
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to search: %s", string(respBody))
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	docs := make([]*Document, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var id int64
		if _, err := fmt.Sscan(hit.ID, &id); err != nil {
			log.Warn().Str("kind", string(kind)).Str("doc_id", hit.ID).Msg("skipping document with non-numeric id")
			continue
		}
		docs = append(docs, &Document{Kind: kind, ID: id, Source: hit.Source})
	}

	return &SearchResult{Documents: docs, Total: result.Hits.Total.Value}, nil
}

// Ping checks cluster reachability
func (s *ElasticsearchIndexStore) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("elasticsearch returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle HTTP connections
func (s *ElasticsearchIndexStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// do sends a request with an optional JSON body
func (s *ElasticsearchIndexStore) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	return s.httpClient.Do(req)
}

func buildQuery(queryStr string) map[string]any {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" || queryStr == "*" {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"query_string": map[string]any{
			"query": queryStr,
		},
	}
}

func buildSort(pageable types.Pageable) []any {
	sorts := make([]any, 0, len(pageable.Sort))
	for _, o := range pageable.Sort {
		field := o.Field
		if keywordSortFields[field] {
			field += ".keyword"
		}
		sorts = append(sorts, map[string]any{field: map[string]any{"order": string(o.Direction)}})
	}
	return sorts
}

func isAlreadyExists(respBody []byte) bool {
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &body); err != nil {
		return false
	}
	return body.Error.Type == "resource_already_exists_exception"
}
