package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"inkpad/api/internal/access"
	"inkpad/api/internal/auth"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/live"
)

func TestNewGateway(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/new", "", "")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("no session: expected redirect home, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(http.MethodGet, "/new", env.token("root", adminEmail, -time.Minute), "")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("expired: expected redirect home, got %d", rr.Code)
	}
	if c := rr.Result().Cookies(); len(c) != 1 || c[0].Name != auth.SessionCookieName || c[0].MaxAge >= 0 {
		t.Fatalf("expired session cookie should be cleared, got %+v", c)
	}

	rr = env.do(http.MethodGet, "/new", env.token("bob", "bob@example.com", time.Hour), "")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("non-admin: expected redirect home, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(http.MethodGet, "/new", env.token("root|google", adminEmail, time.Hour), "")
	location := rr.Header().Get("Location")
	if rr.Code != http.StatusFound || !strings.HasPrefix(location, "/d/") || !strings.HasSuffix(location, "/edit") {
		t.Fatalf("admin: expected redirect to editor, got %d %q", rr.Code, location)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(location, "/d/"), "/edit")
	doc, err := env.docs.Get(context.Background(), access.Subject{UserID: "root", Email: adminEmail}, id)
	if err != nil {
		t.Fatalf("created document not readable: %v", err)
	}
	if doc.Title != docstore.DefaultTitle || doc.CreatedBy != "root" {
		t.Fatalf("unexpected new document %+v", doc)
	}
}

func TestReadOnlyView(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.docs.Create(ctx, alice, "post", "Hello", "# Heading\nsee https://example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.docs.UpdateDocumentAccess(ctx, alice, "post", "public", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rr := env.do(http.MethodGet, "/d/post", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("expected html, got %q", rr.Header().Get("Content-Type"))
	}
	page := rr.Body.String()
	if !strings.Contains(page, `class="heading text-4xl"`) || !strings.Contains(page, `href="https://example.com"`) {
		t.Fatalf("page missing formatted content: %s", page)
	}

	if _, err := env.docs.Create(ctx, alice, "secret", "Secret", "hidden"); err != nil {
		t.Fatalf("create: %v", err)
	}
	rr = env.do(http.MethodGet, "/d/secret", "", "")
	if rr.Code != http.StatusUnauthorized || strings.Contains(rr.Body.String(), "hidden") {
		t.Fatalf("private page leaked: %d", rr.Code)
	}
}

func TestEditPageRedirectsReaders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.docs.Create(ctx, alice, "post", "Hello", "body"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.docs.UpdateDocumentAccess(ctx, alice, "post", "public", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rr := env.do(http.MethodGet, "/d/post/edit", env.token("bob", "bob@example.com", time.Hour), "")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/d/post" {
		t.Fatalf("reader: expected redirect to view, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	rr = env.do(http.MethodGet, "/d/post/edit", "", "")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("anonymous: expected redirect home, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/d/post/edit", env.token("alice", "alice@example.com", time.Hour), "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `data-document-id="post"`) {
		t.Fatalf("writer: expected editor page, got %d", rr.Code)
	}
}

func TestLiveEndpointUpgradesThroughMiddleware(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.docs.Create(context.Background(), alice, "notes", "Notes", "one"); err != nil {
		t.Fatalf("create: %v", err)
	}
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/documents/notes/live"

	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+env.token("bob", "bob@example.com", time.Hour))
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bob should be refused before upgrade, got %v %v", resp, err)
	}

	header.Set("Cookie", auth.SessionCookieName+"="+env.token("alice", "alice@example.com", time.Hour))
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	var snap live.ServerMessage
	if err := ws.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != live.MsgSnapshot || !snap.CanEdit || len(snap.Mutation.Blocks) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
