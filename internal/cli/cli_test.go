package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpad/api/internal/access"
	"inkpad/api/internal/auth"
	"inkpad/api/internal/chunk"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/store"
	"inkpad/api/internal/util"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChunkPlan(t *testing.T) {
	out, err := run(t, "alpha beta gamma delta", "chunk", "--limit", "8", "--json", "-")
	require.NoError(t, err)

	var plan []chunkPlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan, 3)
	total := 0
	for i, p := range plan {
		assert.Equal(t, i, p.Index)
		assert.LessOrEqual(t, p.Bytes, 8)
		total += p.Bytes
	}
	assert.Equal(t, len("alpha beta gamma delta"), total)
}

func TestChunkPlanWordBoundary(t *testing.T) {
	plain, err := planChunks("alpha beta gamma", chunk.Policy{LimitBytes: 8})
	require.NoError(t, err)
	words, err := planChunks("alpha beta gamma", chunk.Policy{LimitBytes: 8, WordBoundary: true})
	require.NoError(t, err)
	assert.Equal(t, "alpha be", plain[0].Preview)
	assert.Equal(t, "alpha ", words[0].Preview)
}

func TestChunkTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two"), 0o644))

	out, err := run(t, "", "chunk", "--limit", "100", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PART")
	assert.Contains(t, out, `line one\nline two`)
}

func TestRender(t *testing.T) {
	out, err := run(t, "# Hello\n**bold**", "render", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "heading")

	out, err = run(t, "text", "render", "--page", "--title", "Demo", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Demo")
}

func TestTokenRoundTrip(t *testing.T) {
	out, err := run(t, "", "token", "--sub", "alice|google", "--email", "alice@example.com", "--secret", "s3cret", "--ttl", "1h")
	require.NoError(t, err)

	id, err := auth.ParseToken([]byte("s3cret"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID())
	assert.Equal(t, "alice@example.com", id.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)

	_, err = run(t, "", "token")
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	out, err := run(t, "", "new-id")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.Len(t, id, 26)
	assert.True(t, util.ValidDocumentID(id))
}

func TestMigrateAndPartsOnSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	out, err := run(t, "", "--backend", "sqlite", "--sqlite", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema ready")

	ctx := context.Background()
	db, err := store.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	docs := docstore.New(db, access.Gate{}, chunk.Policy{LimitBytes: 8})
	_, err = docs.Create(ctx, access.Subject{UserID: "alice"}, "doc", "Doc", "0123456789abcdef")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err = run(t, "", "--backend", "sqlite", "--sqlite", path, "parts", "--json", "doc")
	require.NoError(t, err)
	var parts []store.DocumentPart
	require.NoError(t, json.Unmarshal([]byte(out), &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "Doc", parts[0].Title)
	assert.Equal(t, "Doc (part 2)", parts[1].Title)

	out, err = run(t, "", "--backend", "sqlite", "--sqlite", path, "parts", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "no parts for missing")
}

func TestUnknownBackend(t *testing.T) {
	_, err := run(t, "", "--backend", "mongo", "parts", "doc")
	assert.ErrorContains(t, err, "unknown backend")
}
