package store

import (
	"context"
	"fmt"
	"strings"
)

// SQLiteStore keeps parts in an embedded database for single-node
// deployments and the operator CLI.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{sqlStore: sqlStore{db: db, rebind: sqliteRebind}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// sqliteRebind turns $N into SQLite's numbered ?N parameters.
func sqliteRebind(query string) string {
	return strings.ReplaceAll(query, "$", "?")
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS document_parts (
		document_id  TEXT NOT NULL,
		part         INTEGER NOT NULL CHECK (part >= 0),
		title        TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		access_type  TEXT NOT NULL DEFAULT 'private',
		access_users TEXT NOT NULL DEFAULT '[]',
		created_by   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (document_id, part)
	);
	CREATE INDEX IF NOT EXISTS idx_document_parts_updated ON document_parts(updated_at DESC);

	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL DEFAULT '',
		image      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// SearchParts is a case-insensitive substring match.
func (s *SQLiteStore) SearchParts(ctx context.Context, text string, limit int) ([]PartHit, error) {
	if strings.TrimSpace(text) == "" {
		return []PartHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.document_id, coalesce(f.title, ''), p.content
		FROM document_parts p
		LEFT JOIN document_parts f ON f.document_id = p.document_id AND f.part = 0
		WHERE lower(p.content) LIKE ?1 ESCAPE '\' OR lower(p.title) LIKE ?1 ESCAPE '\'
		ORDER BY p.updated_at DESC, p.document_id, p.part
	`, likePattern(text))
	if err != nil {
		return nil, fmt.Errorf("search parts: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	hits := make([]PartHit, 0)
	for rows.Next() {
		var (
			h       PartHit
			content string
		)
		if err := rows.Scan(&h.DocumentID, &h.Title, &content); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		if seen[h.DocumentID] {
			continue
		}
		seen[h.DocumentID] = true
		h.Snippet = snippet(content, text, 120)
		hits = append(hits, h)
		if len(hits) >= limit {
			break
		}
	}
	return hits, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
