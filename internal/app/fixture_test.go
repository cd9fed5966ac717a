package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/auth"
	"inkpad/api/internal/chunk"
	"inkpad/api/internal/config"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/editor"
	"inkpad/api/internal/export"
	"inkpad/api/internal/format"
	"inkpad/api/internal/history"
	"inkpad/api/internal/live"
	"inkpad/api/internal/mathrender"
	"inkpad/api/internal/search"
	"inkpad/api/internal/session"
	"inkpad/api/internal/store"
)

const (
	testSecret = "test-secret"
	adminEmail = "admin@example.com"
)

type testEnv struct {
	t        *testing.T
	db       *store.SQLiteStore
	docs     *docstore.Service
	sessions *session.RedisStore
	service  *Service
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := session.NewRedisStoreWithClient(client, "test:")
	t.Cleanup(func() { sessions.Close() })

	gate := access.Gate{AdminEmail: adminEmail}
	hist := history.New(t.TempDir(), logger)
	docs := docstore.New(db, gate, chunk.Policy{LimitBytes: 64},
		docstore.WithUsers(db),
		docstore.WithObserver(hist),
		docstore.WithLogger(logger),
	)
	formatter := format.New(mathrender.NewAdapter(nil, "size", logger))
	stub := func(_ context.Context, html, title string) (*export.Result, error) {
		return &export.Result{Data: []byte("%PDF-stub"), Filename: "stub.pdf", MimeType: "application/pdf"}, nil
	}

	cfg := config.Config{
		AdminEmail:    adminEmail,
		SessionSecret: testSecret,
		SessionTTL:    time.Hour,
	}
	svc := New(cfg, Deps{
		Docs:      docs,
		Store:     db,
		Users:     db,
		Sessions:  sessions,
		History:   hist,
		Search:    search.NewService(nil, search.NewSQLSearcher(db), docs, gate, logger),
		Export:    export.NewService(docs, formatter, export.WithPDFRenderer(stub), export.WithDOCXRenderer(stub)),
		Formatter: formatter,
		Live:      live.NewHandler(docs, editor.AutosaveOptions{Debounce: 10 * time.Millisecond}, nil, logger),
	}, logger)

	return &testEnv{
		t:        t,
		db:       db,
		docs:     docs,
		sessions: sessions,
		service:  svc,
		handler:  NewHTTPServer(svc, "*", logger).Handler(),
	}
}

func (e *testEnv) token(subject, email string, ttl time.Duration) string {
	e.t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Identity{Subject: subject, Email: email, Name: strings.Split(subject, "|")[0]}, ttl)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body string, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doWith(h http.Handler, method, path string) *httptest.ResponseRecorder {
	e.t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

var (
	alice = access.Subject{UserID: "alice", Email: "alice@example.com"}
	bob   = access.Subject{UserID: "bob", Email: "bob@example.com"}
)
