package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/auth"
	"inkpad/api/internal/config"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/export"
	"inkpad/api/internal/format"
	"inkpad/api/internal/history"
	"inkpad/api/internal/search"
	"inkpad/api/internal/store"
	"inkpad/api/internal/util"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type userStore interface {
	UpsertUser(ctx context.Context, user store.User) error
}

// sessionStore records issued sessions so a sign-out can revoke a token
// before it expires.
type sessionStore interface {
	SaveSession(ctx context.Context, tokenID, userID, email string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Ping(ctx context.Context) error
}

type historyLog interface {
	Log(documentID string, limit int) ([]history.CommitInfo, error)
	ContentAt(documentID, hash string) (history.Revision, error)
}

type liveHandler interface {
	Serve(w http.ResponseWriter, r *http.Request, caller access.Subject, documentID string) error
}

type healthChecker interface {
	Healthy() bool
}

// Deps are the collaborators the HTTP layer drives. Sessions, History,
// Live and Index are optional.
type Deps struct {
	Docs      *docstore.Service
	Store     pinger
	Users     userStore
	Sessions  sessionStore
	History   historyLog
	Search    *search.Service
	Index     healthChecker
	Export    *export.Service
	Formatter *format.Formatter
	Live      liveHandler
}

type Service struct {
	cfg    config.Config
	deps   Deps
	gate   access.Gate
	secret []byte
	logger zerolog.Logger
	now    func() time.Time
}

func New(cfg config.Config, deps Deps, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		deps:   deps,
		gate:   deps.Docs.Gate(),
		secret: []byte(cfg.SessionSecret),
		logger: logger,
		now:    time.Now,
	}
}

func subjectOf(id auth.Identity) access.Subject {
	return access.Subject{UserID: id.UserID(), Email: id.Email}
}

// Identify resolves a session token. Invalid, expired or revoked tokens
// resolve to no identity.
func (s *Service) Identify(ctx context.Context, token string) (auth.Identity, bool) {
	if token == "" {
		return auth.Identity{}, false
	}
	id, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return auth.Identity{}, false
	}
	if s.deps.Sessions != nil && id.TokenID != "" {
		revoked, err := s.deps.Sessions.IsRevoked(ctx, id.TokenID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("session revocation check failed")
			return auth.Identity{}, false
		}
		if revoked {
			return auth.Identity{}, false
		}
	}
	return id, true
}

// SignIn accepts a token minted by the identity provider, records the
// session and the user's profile, and returns the identity to store in
// the session cookie.
func (s *Service) SignIn(ctx context.Context, token string) (auth.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "token is required", nil)
	}
	id, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return auth.Identity{}, domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "Session token rejected", nil)
	}
	if s.deps.Sessions != nil && id.TokenID != "" {
		revoked, err := s.deps.Sessions.IsRevoked(ctx, id.TokenID)
		if err != nil {
			return auth.Identity{}, err
		}
		if revoked {
			return auth.Identity{}, domainError(http.StatusUnauthorized, "NOT_AUTHENTICATED", "Session token rejected", nil)
		}
		if err := s.deps.Sessions.SaveSession(ctx, id.TokenID, id.UserID(), id.Email, id.ExpiresAt); err != nil {
			return auth.Identity{}, err
		}
	}
	s.rememberUser(ctx, id)
	return id, nil
}

// SignOut revokes the token's session. Unparseable tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if s.deps.Sessions == nil || token == "" {
		return nil
	}
	id, err := auth.ParseToken(s.secret, token)
	if err != nil || id.TokenID == "" {
		return nil
	}
	return s.deps.Sessions.RevokeSession(ctx, id.TokenID, id.ExpiresAt)
}

func (s *Service) rememberUser(ctx context.Context, id auth.Identity) {
	if s.deps.Users == nil {
		return
	}
	now := s.now()
	user := store.User{ID: id.UserID(), Email: id.Email, Name: id.Name, Image: id.Image, CreatedAt: now, UpdatedAt: now}
	if err := s.deps.Users.UpsertUser(ctx, user); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("user upsert failed")
	}
}

type Viewer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Viewer returns the signed-in user, refreshing their stored profile.
func (s *Service) Viewer(ctx context.Context, id auth.Identity, ok bool) *Viewer {
	if !ok {
		return nil
	}
	s.rememberUser(ctx, id)
	return &Viewer{ID: id.UserID(), Email: id.Email, Name: id.Name, Image: id.Image}
}

// AllowedEmail is the admin identity's email.
func (s *Service) AllowedEmail() string {
	return s.cfg.AdminEmail
}

func (s *Service) Menu(caller access.Subject) []access.MenuItem {
	return s.gate.Menu(caller)
}

// IsAdminIdentity reports whether a gateway-protected route may be entered.
func (s *Service) IsAdminIdentity(id auth.Identity) bool {
	return s.gate.IsAdmin(subjectOf(id))
}

// NewDocument mints an id and creates an empty document owned by the
// admin.
func (s *Service) NewDocument(ctx context.Context, caller access.Subject) (docstore.Document, error) {
	if caller.Anonymous() {
		return docstore.Document{}, docstore.ErrNotAuthenticated
	}
	if !s.gate.IsAdmin(caller) {
		return docstore.Document{}, docstore.ErrUnauthorized
	}
	return s.deps.Docs.Create(ctx, caller, util.NewID(""), docstore.DefaultTitle, "")
}

type Rendered struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	HTML       string `json:"html"`
	ETag       string `json:"etag"`
}

func (s *Service) Render(ctx context.Context, caller access.Subject, documentID string) (Rendered, error) {
	doc, err := s.deps.Docs.Get(ctx, caller, documentID)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{DocumentID: doc.DocumentID, Title: doc.Title, HTML: s.deps.Formatter.Format(doc.Content), ETag: doc.ETag}, nil
}

// History lists commits of a readable document, newest first.
func (s *Service) History(ctx context.Context, caller access.Subject, documentID string, limit int) ([]history.CommitInfo, error) {
	if _, err := s.deps.Docs.Get(ctx, caller, documentID); err != nil {
		return nil, err
	}
	if s.deps.History == nil {
		return []history.CommitInfo{}, nil
	}
	commits, err := s.deps.History.Log(documentID, limit)
	if errors.Is(err, history.ErrNoHistory) {
		return []history.CommitInfo{}, nil
	}
	return commits, err
}

// Revision returns the document as of one commit.
func (s *Service) Revision(ctx context.Context, caller access.Subject, documentID, hash string) (history.Revision, error) {
	if _, err := s.deps.Docs.Get(ctx, caller, documentID); err != nil {
		return history.Revision{}, err
	}
	if s.deps.History == nil {
		return history.Revision{}, history.ErrNoHistory
	}
	return s.deps.History.ContentAt(documentID, hash)
}

type check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready pings the store and reports optional backends. Only the store
// decides readiness.
func (s *Service) Ready(ctx context.Context) (bool, map[string]check) {
	checks := map[string]check{}
	ready := true
	if err := s.deps.Store.Ping(ctx); err != nil {
		ready = false
		checks["database"] = check{Status: "error", Error: err.Error()}
	} else {
		checks["database"] = check{Status: "ok"}
	}
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Ping(ctx); err != nil {
			checks["redis"] = check{Status: "error", Error: err.Error()}
		} else {
			checks["redis"] = check{Status: "ok"}
		}
	}
	if s.deps.Index != nil {
		if s.deps.Index.Healthy() {
			checks["search"] = check{Status: "ok"}
		} else {
			checks["search"] = check{Status: "degraded"}
		}
	}
	return ready, checks
}
