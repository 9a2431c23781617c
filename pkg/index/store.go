package index

import (
	"context"

	"github.com/facilityhub/facility/pkg/types"
)

// IndexStore is the storage abstraction for the search mirror.
// It supports both SQLite (embedded) and Elasticsearch (external) backends.
type IndexStore interface {
	// Upsert inserts or replaces the document stored under (kind, id)
	Upsert(ctx context.Context, doc *Document) error

	// Delete removes a document; deleting a missing document is not an error
	Delete(ctx context.Context, kind types.Kind, id int64) error

	// Search runs a free-text query over one kind. A query that matches
	// nothing returns an empty result, never an error.
	Search(ctx context.Context, kind types.Kind, query string, pageable types.Pageable) (*SearchResult, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}

// SearchResult is one page of matching documents plus the total hit count
type SearchResult struct {
	Documents []*Document
	Total     int64
}
