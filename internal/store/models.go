package store

import "time"

// DocumentPart is one persisted slice of a logical document.
type DocumentPart struct {
	DocumentID  string
	Part        int
	Title       string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AccessType  string
	AccessUsers []string
	CreatedBy   string
}

// DocumentSummary is part 0 of a document joined with the newest
// updated_at across all of its parts. Content is not loaded.
type DocumentSummary struct {
	DocumentID  string
	Title       string
	AccessType  string
	AccessUsers []string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID        string
	Email     string
	Name      string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpPatch  OpKind = "patch"
	OpDelete OpKind = "delete"
)

// PartOp is one step of a save reconciliation. A patch leaves access
// metadata untouched unless PatchAccess is set.
type PartOp struct {
	Kind        OpKind
	Part        DocumentPart
	PatchAccess bool
}

// PartHit is a fallback full-text match on a document's parts.
type PartHit struct {
	DocumentID string
	Title      string
	Snippet    string
}
