package search

import (
	"context"
	"fmt"
	"strings"

	"inkpad/api/internal/docstore"
	"inkpad/api/internal/store"
)

type partSearcher interface {
	SearchParts(ctx context.Context, text string, limit int) ([]store.PartHit, error)
	ListSummaries(ctx context.Context) ([]store.DocumentSummary, error)
	ListParts(ctx context.Context, documentID string) ([]store.DocumentPart, error)
}

// SQLSearcher searches the part store directly. It is the fallback when
// Meilisearch is absent or unhealthy.
type SQLSearcher struct {
	parts partSearcher
}

func NewSQLSearcher(parts partSearcher) *SQLSearcher {
	return &SQLSearcher{parts: parts}
}

// Healthy always returns true; without the store nothing works anyway.
func (p *SQLSearcher) Healthy() bool {
	return true
}

// Search over-fetches so that visibility filtering and offset still leave
// a full page.
func (p *SQLSearcher) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := defaultLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	hits, err := p.parts.SearchParts(ctx, q.Text, (limit+offset)*2)
	if err != nil {
		return nil, 0, fmt.Errorf("sql search: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{DocumentID: h.DocumentID, Title: h.Title, Snippet: h.Snippet})
	}
	return results, len(results), nil
}

// LoadAllRecords reassembles every document for a full reindex.
func (p *SQLSearcher) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	summaries, err := p.parts.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	records := make([]DocumentRecord, 0, len(summaries))
	for _, s := range summaries {
		parts, err := p.parts.ListParts(ctx, s.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("load parts %s: %w", s.DocumentID, err)
		}
		doc, err := docstore.Assemble(s.DocumentID, parts)
		if err != nil {
			continue
		}
		records = append(records, RecordFor(doc))
	}
	return records, nil
}

// RecordFor converts a reassembled document into its index record.
func RecordFor(doc docstore.Document) DocumentRecord {
	users := doc.AccessUsers
	if users == nil {
		users = []string{}
	}
	return DocumentRecord{
		ID:          doc.DocumentID,
		Title:       doc.Title,
		Content:     doc.Content,
		AccessType:  string(doc.AccessType),
		AccessUsers: users,
		CreatedBy:   doc.CreatedBy,
		UpdatedAt:   unixMillis(doc.UpdatedAt),
	}
}
