package search

import (
	"context"

	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/docstore"
)

type visibility interface {
	List(ctx context.Context, caller access.Subject) ([]docstore.Summary, error)
}

type indexer interface {
	IndexDocument(doc DocumentRecord) error
	IndexDocuments(documents []DocumentRecord) error
	Healthy() bool
}

// Service is the facade that tries the index first and falls back to SQL.
type Service struct {
	primary  Searcher
	index    indexer
	fallback *SQLSearcher
	visible  visibility
	gate     access.Gate
	logger   zerolog.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, fallback *SQLSearcher, visible visibility, gate access.Gate, logger zerolog.Logger) *Service {
	s := &Service{fallback: fallback, visible: visible, gate: gate, logger: logger}
	if meili != nil {
		s.primary = meili
		s.index = meili
	}
	return s
}

// Search runs q for caller. Hits on documents the caller cannot read are
// dropped even if the index let them through.
func (s *Service) Search(ctx context.Context, caller access.Subject, q Query) Response {
	q.Viewer = caller
	q.Admin = s.gate.IsAdmin(caller)
	limit := defaultLimit(q.Limit)

	results, total, indexed, err := s.run(ctx, q)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", q.Text).Msg("search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	filtered, err := s.filterVisible(ctx, caller, results)
	if err != nil {
		s.logger.Warn().Err(err).Msg("search visibility check failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	if !indexed {
		// the fallback returns unpaged hits
		total = len(filtered)
		filtered = page(filtered, q.Offset, limit)
	} else if dropped := len(results) - len(filtered); dropped > 0 && total >= dropped {
		total -= dropped
	}
	return Response{Results: filtered, Total: total, Query: q.Text}
}

// run reports indexed=true when the index served the query, already paged.
func (s *Service) run(ctx context.Context, q Query) ([]Result, int, bool, error) {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return nonNil(results), total, true, nil
		}
		s.logger.Warn().Err(err).Msg("meilisearch error, falling back to sql")
	}
	if s.fallback == nil {
		return []Result{}, 0, false, nil
	}
	results, total, err := s.fallback.Search(ctx, q)
	return nonNil(results), total, false, err
}

func (s *Service) filterVisible(ctx context.Context, caller access.Subject, results []Result) ([]Result, error) {
	if len(results) == 0 || s.visible == nil {
		return results, nil
	}
	summaries, err := s.visible.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	readable := make(map[string]bool, len(summaries))
	for _, sum := range summaries {
		readable[sum.DocumentID] = true
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if readable[r.DocumentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// DocumentSaved indexes the document (fire-and-forget to Meilisearch).
func (s *Service) DocumentSaved(_ context.Context, doc docstore.Document, _ access.Subject) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	record := RecordFor(doc)
	go func() {
		if err := s.index.IndexDocument(record); err != nil {
			s.logger.Warn().Err(err).Str("documentId", record.ID).Msg("index document failed")
		}
	}()
}

// ReindexAll loads every document from the store and pushes it to the index.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.index == nil || !s.index.Healthy() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.index.IndexDocuments(records); err != nil {
		s.logger.Warn().Err(err).Msg("reindex documents failed")
		return
	}
	s.logger.Info().Int("documents", len(records)).Msg("search index rebuilt")
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

func page(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
