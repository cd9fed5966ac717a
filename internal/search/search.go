// Package search finds documents by text, through Meilisearch when it is
// reachable and the part store otherwise. Results are always filtered to
// what the caller may read.
package search

import (
	"context"
	"time"

	"inkpad/api/internal/access"
)

// Result is a single search hit returned to the caller.
type Result struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request. Viewer and Admin narrow the index
// query; visibility is still re-checked afterwards.
type Query struct {
	Text   string
	Limit  int
	Offset int
	Viewer access.Subject
	Admin  bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	AccessType  string   `json:"accessType"`
	AccessUsers []string `json:"accessUsers"`
	CreatedBy   string   `json:"createdBy"`
	UpdatedAt   int64    `json:"updatedAt"`
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
