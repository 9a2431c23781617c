package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/facilityhub/facility/pkg/types"
)

// SQLiteIndexStore implements IndexStore using SQLite with FTS5 for full-text search.
// This is the default embedded store that requires no external dependencies.
type SQLiteIndexStore struct {
	db                *sql.DB
	useFallbackSearch bool // true if FTS5 is not available
}

// NewSQLiteIndexStore creates a new SQLite-backed index store.
// The dbPath should be a path to the SQLite database file.
// Use ":memory:" for an in-memory database (useful for testing).
// If the file doesn't exist, it will be created along with parent directories.
func NewSQLiteIndexStore(dbPath string) (*SQLiteIndexStore, error) {
	inMemory := dbPath == "" || strings.HasPrefix(dbPath, ":memory:")
	if inMemory {
		dbPath = ":memory:"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create index directory %s: %w", dir, err)
			}
		}
		log.Info().Str("path", dbPath).Msg("opening sqlite index store")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// An in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	store := &SQLiteIndexStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables and indexes
func (s *SQLiteIndexStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			record_id INTEGER NOT NULL,
			source TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			UNIQUE(kind, record_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	// Try to create FTS5 virtual table for full-text search
	// If FTS5 is not available, we'll fall back to LIKE-based search
	_, err = s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			body,
			content=documents,
			content_rowid=id,
			tokenize='unicode61'
		)
	`)
	if err != nil {
		log.Warn().Err(err).Msg("FTS5 not available, using fallback search")
		s.useFallbackSearch = true
		return nil
	}

	// Triggers to keep FTS in sync
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, body) VALUES (new.id, new.body);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, body) VALUES ('delete', old.id, old.body);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, body) VALUES ('delete', old.id, old.body);
			INSERT INTO documents_fts(rowid, body) VALUES (new.id, new.body);
		END`,
	}

	for _, trigger := range triggers {
		if _, err := s.db.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create FTS trigger: %w", err)
		}
	}

	return nil
}

// Upsert inserts or updates a document in the index
func (s *SQLiteIndexStore) Upsert(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (kind, record_id, source, body, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(kind, record_id) DO UPDATE SET
			source = excluded.source,
			body = excluded.body,
			updated_at = strftime('%s', 'now')
	`, string(doc.Kind), doc.ID, string(doc.Source), doc.Text)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// Delete removes a document from the index
func (s *SQLiteIndexStore) Delete(ctx context.Context, kind types.Kind, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE kind = ? AND record_id = ?
	`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// Search performs full-text search across the documents of one kind
func (s *SQLiteIndexStore) Search(ctx context.Context, kind types.Kind, query string, pageable types.Pageable) (*SearchResult, error) {
	if err := pageable.Validate(kind); err != nil {
		return nil, err
	}

	log.Debug().Str("kind", string(kind)).Str("query", query).Bool("fallback", s.useFallbackSearch).Msg("searching index")

	terms, fieldTerms := parseQuery(kind, query)

	from := "documents d"
	where := "d.kind = ?"
	args := []any{string(kind)}
	rank := false

	var conds []string
	switch {
	case len(terms) == 0:
		// Field terms only, or match everything
	case s.useFallbackSearch:
		for _, term := range terms {
			conds = append(conds, "d.body LIKE ?")
			args = append(args, "%"+term+"%")
		}
	case len(fieldTerms) == 0:
		from = "documents d JOIN documents_fts f ON d.id = f.rowid"
		where += " AND f.body MATCH ?"
		args = append(args, ftsMatchQuery(terms))
		rank = true
	default:
		conds = append(conds, "d.id IN (SELECT rowid FROM documents_fts WHERE body MATCH ?)")
		args = append(args, ftsMatchQuery(terms))
	}

	// Field names come from the sortable whitelist
	for _, ft := range fieldTerms {
		if _, err := strconv.ParseInt(ft.Value, 10, 64); err == nil {
			conds = append(conds, fmt.Sprintf("CAST(json_extract(d.source, '$.%s') AS TEXT) = ?", ft.Field))
			args = append(args, ft.Value)
			continue
		}
		conds = append(conds, fmt.Sprintf("json_extract(d.source, '$.%s') LIKE ?", ft.Field))
		args = append(args, "%"+ft.Value+"%")
	}
	if len(conds) > 0 {
		where += " AND (" + strings.Join(conds, " OR ") + ")"
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, from, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if total == 0 {
		return &SearchResult{}, nil
	}

	query = fmt.Sprintf(`
		SELECT d.record_id, d.source
		FROM %s
		WHERE %s
		%s
		LIMIT ? OFFSET ?
	`, from, where, sqliteOrderBy(pageable, rank))
	args = append(args, pageable.Size, pageable.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(kind, rows)
	if err != nil {
		return nil, err
	}

	return &SearchResult{Documents: docs, Total: total}, nil
}

// Ping checks the database handle
func (s *SQLiteIndexStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources
func (s *SQLiteIndexStore) Close() error {
	return s.db.Close()
}

// Stats returns the number of documents per kind
func (s *SQLiteIndexStore) Stats(ctx context.Context) (map[types.Kind]int64, error) {
	stats := make(map[types.Kind]int64)

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) as count FROM documents GROUP BY kind
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[types.Kind(kind)] = count
	}

	return stats, rows.Err()
}

// scanDocuments scans (record_id, source) rows
func scanDocuments(kind types.Kind, rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		var id int64
		var source string
		if err := rows.Scan(&id, &source); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &Document{Kind: kind, ID: id, Source: []byte(source)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return docs, nil
}

// sqliteOrderBy sorts on JSON fields of the stored source. Field names have
// already been checked against the sortable whitelist.
func sqliteOrderBy(pageable types.Pageable, rank bool) string {
	parts := make([]string, 0, len(pageable.Sort)+2)
	for _, o := range pageable.Sort {
		dir := "ASC"
		if o.Direction == types.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("json_extract(d.source, '$.%s') %s", o.Field, dir))
	}
	if len(parts) == 0 && rank {
		parts = append(parts, "f.rank")
	}
	parts = append(parts, "d.record_id ASC")
	return "ORDER BY " + strings.Join(parts, ", ")
}

// fieldTerm restricts a search value to one top-level field
type fieldTerm struct {
	Field string
	Value string
}

// parseQuery splits a free-text query into bare terms and field:value
// terms, dropping query syntax and boolean keywords. A field prefix that is
// not a sortable field of kind is dropped and its value searched
// everywhere. "*" alone means match everything.
func parseQuery(kind types.Kind, query string) ([]string, []fieldTerm) {
	var terms []string
	var fieldTerms []fieldTerm

	for _, token := range strings.Fields(query) {
		if field, value, ok := strings.Cut(token, ":"); ok {
			field = strings.TrimLeft(field, "+-!(")
			if types.IsSortable(kind, field) {
				for _, v := range cleanTerms(value) {
					fieldTerms = append(fieldTerms, fieldTerm{Field: field, Value: v})
				}
				continue
			}
			token = value
		}
		terms = append(terms, cleanTerms(token)...)
	}
	return terms, fieldTerms
}

func cleanTerms(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '+', '-', '(', ')', '*', ':', '~', '^', '{', '}', '[', ']', '!':
			return ' '
		}
		return r
	}, s)

	var terms []string
	for _, field := range strings.Fields(cleaned) {
		switch field {
		case "AND", "OR", "NOT", "&&", "||":
			continue
		}
		terms = append(terms, field)
	}
	return terms
}

// ftsMatchQuery ORs prefix matches of every term
func ftsMatchQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, "\""+strings.ReplaceAll(term, "\"", "\"\"")+"\"*")
	}
	return strings.Join(quoted, " OR ")
}
