package docstore

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"inkpad/api/internal/access"
	"inkpad/api/internal/chunk"
	"inkpad/api/internal/store"
)

const DefaultTitle = "Untitled Document"

// Document is the logical view reassembled from a document's parts.
type Document struct {
	DocumentID  string      `json:"documentId"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	AccessType  access.Type `json:"accessType"`
	AccessUsers []string    `json:"accessUsers"`
	CreatedBy   string      `json:"userId"`
	Parts       int         `json:"parts"`
	ETag        string      `json:"etag"`
}

func (d Document) Resource() access.Resource {
	return access.Resource{AccessType: d.AccessType, AccessUsers: d.AccessUsers, CreatedBy: d.CreatedBy}
}

// Summary is a listing row; content is not loaded.
type Summary struct {
	DocumentID  string      `json:"documentId"`
	Title       string      `json:"title"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	AccessType  access.Type `json:"accessType"`
	AccessUsers []string    `json:"accessUsers"`
}

// ETag fingerprints the canonical title and content.
func ETag(title, content string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

var partSuffix = regexp.MustCompile(` \(part \d+\)$`)

func partTitle(title string, index int) string {
	if index == 0 {
		return title
	}
	return fmt.Sprintf("%s (part %d)", title, index+1)
}

// canonicalTitle prefers part 0, then the first part with a non-blank
// title (suffix stripped), then the default.
func canonicalTitle(parts []store.DocumentPart) string {
	if len(parts) > 0 && strings.TrimSpace(parts[0].Title) != "" {
		return parts[0].Title
	}
	for _, p := range parts {
		if strings.TrimSpace(p.Title) != "" {
			if stripped := partSuffix.ReplaceAllString(p.Title, ""); strings.TrimSpace(stripped) != "" {
				return stripped
			}
		}
	}
	return DefaultTitle
}

func sortParts(parts []store.DocumentPart) []store.DocumentPart {
	sorted := make([]store.DocumentPart, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Part < sorted[j].Part })
	return sorted
}

// Assemble rebuilds the logical document. Access metadata is read from
// the lowest part only.
func Assemble(documentID string, parts []store.DocumentPart) (Document, error) {
	if len(parts) == 0 {
		return Document{}, ErrNotFound
	}
	sorted := sortParts(parts)

	pieces := make([]chunk.Piece, len(sorted))
	updated := sorted[0].UpdatedAt
	for i, p := range sorted {
		pieces[i] = chunk.Piece{Index: p.Part, Content: p.Content}
		if p.UpdatedAt.After(updated) {
			updated = p.UpdatedAt
		}
	}
	content, err := chunk.Reassemble(pieces)
	if err != nil {
		return Document{}, fmt.Errorf("%w: document %s: %v", ErrValidation, documentID, err)
	}

	head := sorted[0]
	users := head.AccessUsers
	if users == nil {
		users = []string{}
	}
	title := canonicalTitle(sorted)
	return Document{
		DocumentID:  documentID,
		Title:       title,
		Content:     content,
		CreatedAt:   head.CreatedAt,
		UpdatedAt:   updated,
		AccessType:  access.Normalize(head.AccessType),
		AccessUsers: users,
		CreatedBy:   access.Resource{CreatedBy: head.CreatedBy, AccessUsers: users}.Creator(),
		Parts:       len(sorted),
		ETag:        ETag(title, content),
	}, nil
}

// meta is the access metadata stamped on newly inserted parts.
type meta struct {
	accessType  access.Type
	accessUsers []string
	createdBy   string
}

// Plan reconciles existing parts with a new chunk set: patch changed
// parts that exist, insert missing ones, delete those past the end.
// It also returns the resulting part set.
func Plan(documentID string, existing []store.DocumentPart, chunks []string, title string, m meta, now time.Time) ([]store.PartOp, []store.DocumentPart) {
	byIndex := make(map[int]store.DocumentPart, len(existing))
	for _, p := range existing {
		byIndex[p.Part] = p
	}

	ops := make([]store.PartOp, 0, len(chunks))
	result := make([]store.DocumentPart, 0, len(chunks))
	for i, c := range chunks {
		t := partTitle(title, i)
		if current, ok := byIndex[i]; ok {
			if current.Content != c || current.Title != t {
				current.Title = t
				current.Content = c
				current.UpdatedAt = now
				ops = append(ops, store.PartOp{Kind: store.OpPatch, Part: current})
			}
			result = append(result, current)
			continue
		}
		p := store.DocumentPart{
			DocumentID:  documentID,
			Part:        i,
			Title:       t,
			Content:     c,
			CreatedAt:   now,
			UpdatedAt:   now,
			AccessType:  string(m.accessType),
			AccessUsers: append([]string(nil), m.accessUsers...),
			CreatedBy:   m.createdBy,
		}
		ops = append(ops, store.PartOp{Kind: store.OpInsert, Part: p})
		result = append(result, p)
	}

	stale := make([]int, 0)
	for _, p := range existing {
		if p.Part >= len(chunks) {
			stale = append(stale, p.Part)
		}
	}
	sort.Ints(stale)
	for _, idx := range stale {
		ops = append(ops, store.PartOp{Kind: store.OpDelete, Part: store.DocumentPart{DocumentID: documentID, Part: idx}})
	}
	return ops, result
}

// normalizeUsers drops blanks and duplicates and puts the creator first.
func normalizeUsers(creator string, users []string) []string {
	out := make([]string, 0, len(users)+1)
	seen := make(map[string]bool, len(users)+1)
	if creator != "" {
		out = append(out, creator)
		seen[creator] = true
	}
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
