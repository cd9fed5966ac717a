package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: sqlStore{db: db}}
}

// SearchParts ranks parts with Postgres full-text search and collapses
// hits to one row per document.
func (s *PostgresStore) SearchParts(ctx context.Context, text string, limit int) ([]PartHit, error) {
	if strings.TrimSpace(text) == "" {
		return []PartHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, snippet
		FROM (
			SELECT DISTINCT ON (p.document_id)
				p.document_id,
				coalesce(f.title, '') AS title,
				ts_headline('english', p.content, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(to_tsvector('english', p.title || ' ' || p.content), plainto_tsquery('english', $1)) AS rank
			FROM document_parts p
			LEFT JOIN document_parts f ON f.document_id = p.document_id AND f.part = 0
			WHERE to_tsvector('english', p.title || ' ' || p.content) @@ plainto_tsquery('english', $1)
			ORDER BY p.document_id, rank DESC
		) hits
		ORDER BY rank DESC
		LIMIT $2
	`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search parts: %w", err)
	}
	defer rows.Close()

	hits := make([]PartHit, 0)
	for rows.Next() {
		var h PartHit
		if err := rows.Scan(&h.DocumentID, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
