package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func part(doc string, idx int, title, content string, at time.Time) DocumentPart {
	return DocumentPart{
		DocumentID:  doc,
		Part:        idx,
		Title:       title,
		Content:     content,
		CreatedAt:   at,
		UpdatedAt:   at,
		AccessType:  "private",
		AccessUsers: []string{"owner"},
		CreatedBy:   "owner",
	}
}

func TestSQLiteApplyAndListParts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	err := s.Apply(ctx, "doc1", []PartOp{
		{Kind: OpInsert, Part: part("doc1", 1, "Notes (part 2)", "world", t0)},
		{Kind: OpInsert, Part: part("doc1", 0, "Notes", "hello ", t0)},
	})
	require.NoError(t, err)

	parts, err := s.ListParts(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 0, parts[0].Part)
	assert.Equal(t, "hello ", parts[0].Content)
	assert.Equal(t, []string{"owner"}, parts[1].AccessUsers)
	assert.True(t, parts[0].CreatedAt.Equal(t0))

	t1 := t0.Add(time.Minute)
	patched := part("doc1", 0, "Renamed", "bye", t1)
	patched.AccessType = "public"
	patched.AccessUsers = []string{"someone-else"}
	err = s.Apply(ctx, "doc1", []PartOp{
		{Kind: OpPatch, Part: patched},
		{Kind: OpDelete, Part: DocumentPart{Part: 1}},
	})
	require.NoError(t, err)

	parts, err = s.ListParts(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Renamed", parts[0].Title)
	assert.Equal(t, "bye", parts[0].Content)
	assert.True(t, parts[0].UpdatedAt.Equal(t1))
	// access is only written when PatchAccess is set.
	assert.Equal(t, "private", parts[0].AccessType)
	assert.Equal(t, []string{"owner"}, parts[0].AccessUsers)

	err = s.Apply(ctx, "doc1", []PartOp{{Kind: OpPatch, Part: patched, PatchAccess: true}})
	require.NoError(t, err)
	parts, err = s.ListParts(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "public", parts[0].AccessType)
	assert.Equal(t, []string{"someone-else"}, parts[0].AccessUsers)
}

func TestSQLiteApplyIsAtomic(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Apply(ctx, "doc", []PartOp{{Kind: OpInsert, Part: part("doc", 0, "T", "keep", now)}}))

	err := s.Apply(ctx, "doc", []PartOp{
		{Kind: OpPatch, Part: part("doc", 0, "T", "changed", now)},
		{Kind: OpPatch, Part: part("doc", 5, "T", "missing", now)},
	})
	require.ErrorIs(t, err, ErrPartMissing)

	parts, err := s.ListParts(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "keep", parts[0].Content)
}

func TestSQLiteApplyRejectsForeignPart(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.Apply(context.Background(), "doc", []PartOp{{Kind: OpInsert, Part: part("other", 0, "T", "x", time.Now())}})
	require.Error(t, err)
}

func TestSQLiteListSummaries(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.Apply(ctx, "a", []PartOp{
		{Kind: OpInsert, Part: part("a", 0, "Alpha", "x", t0)},
		{Kind: OpInsert, Part: part("a", 1, "Alpha (part 2)", "y", t0.Add(3*time.Minute))},
	}))
	require.NoError(t, s.Apply(ctx, "b", []PartOp{
		{Kind: OpInsert, Part: part("b", 0, "Beta", "z", t0.Add(time.Minute))},
	}))

	items, err := s.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].DocumentID)
	assert.Equal(t, "Alpha", items[0].Title)
	assert.True(t, items[0].UpdatedAt.Equal(t0.Add(3*time.Minute)))
	assert.True(t, items[0].CreatedAt.Equal(t0))
	assert.Equal(t, "b", items[1].DocumentID)
}

func TestSQLiteUsers(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, User{ID: "u1", Email: "one@example.com", Name: "One"}))
	require.NoError(t, s.UpsertUser(ctx, User{ID: "u2", Email: "two@example.com", Name: "Two"}))
	require.NoError(t, s.UpsertUser(ctx, User{ID: "u1", Email: "one@example.com", Name: "One Renamed"}))
	require.Error(t, s.UpsertUser(ctx, User{}))

	users, err := s.GetUsers(ctx, []string{"u2", "missing", "u1"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].ID)
	assert.Equal(t, "One Renamed", users[1].Name)

	users, err = s.GetUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSQLiteSearchParts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Apply(ctx, "doc", []PartOp{
		{Kind: OpInsert, Part: part("doc", 0, "Physics", "energy is conserved", now)},
		{Kind: OpInsert, Part: part("doc", 1, "Physics (part 2)", "Energy again", now)},
	}))
	require.NoError(t, s.Apply(ctx, "other", []PartOp{
		{Kind: OpInsert, Part: part("other", 0, "Poetry", "100% rhyme", now)},
	}))

	hits, err := s.SearchParts(ctx, "ENERGY", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc", hits[0].DocumentID)
	assert.Equal(t, "Physics", hits[0].Title)
	assert.Contains(t, hits[0].Snippet, "nergy")

	hits, err = s.SearchParts(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "other", hits[0].DocumentID)

	hits, err = s.SearchParts(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSnippetKeepsCharacterBoundaries(t *testing.T) {
	got := snippet("ααααα needle ααααα", "needle", 8)
	assert.Contains(t, got, "needle")
}

func TestSnippetWhenLowercaseWidens(t *testing.T) {
	content := strings.Repeat("Ⱥ", 200) + " needle"
	var got string
	require.NotPanics(t, func() { got = snippet(content, "needle", 120) })
	assert.True(t, strings.HasSuffix(got, "needle"))

	got = snippet("ȺȺ Needle ȺȺ", "NEEDLE", 4)
	assert.Contains(t, got, "Needle")
	assert.True(t, utf8.ValidString(got))
}
