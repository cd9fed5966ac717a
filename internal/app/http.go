package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     zerolog.Logger
	router     *mux.Router
}

func NewHTTPServer(service *Service, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/auth/session", s.handleSignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", s.handleSignOut).Methods(http.MethodDelete)
	api.HandleFunc("/viewer", s.handleViewer).Methods(http.MethodGet)
	api.HandleFunc("/allowed-email", s.handleAllowedEmail).Methods(http.MethodGet)
	api.HandleFunc("/menu", s.handleMenu).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	docs := api.PathPrefix("/documents").Subrouter()
	docs.HandleFunc("", s.handleListDocuments).Methods(http.MethodGet)
	docs.HandleFunc("", s.handleCreateDocument).Methods(http.MethodPost)
	docs.HandleFunc("/{id}", s.handleGetDocument).Methods(http.MethodGet)
	docs.HandleFunc("/{id}", s.handleUpdateDocument).Methods(http.MethodPut)
	docs.HandleFunc("/{id}/info", s.handleDocumentInfo).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/access", s.handleUpdateAccess).Methods(http.MethodPut)
	docs.HandleFunc("/{id}/access/users", s.handleAccessUsers).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/render", s.handleRender).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/history", s.handleHistory).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/history/{hash}", s.handleRevision).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/export", s.handleExport).Methods(http.MethodGet)
	docs.HandleFunc("/{id}/live", s.handleLive).Methods(http.MethodGet)

	r.HandleFunc("/new", s.handleNew).Methods(http.MethodGet)
	r.HandleFunc("/d/{id}", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/d/{id}/edit", s.handleEdit).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready, checks := s.service.Ready(ctx)
	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.SignIn(r.Context(), body.Token)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, strings.TrimSpace(body.Token), s.cookieOptions())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "viewer": s.service.Viewer(r.Context(), id, true)})
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.service.SignOut(r.Context(), auth.TokenFromRequest(r)); err != nil {
		s.logger.Warn().Err(err).Msg("session revoke failed")
	}
	auth.ClearSessionCookie(w, s.cookieOptions())
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) cookieOptions() auth.CookieOptions {
	return auth.CookieOptions{Secure: s.service.cfg.SessionCookieSecure, MaxAge: s.service.cfg.SessionTTL}
}

func (s *HTTPServer) handleViewer(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, s.service.Viewer(r.Context(), id, ok))
}

func (s *HTTPServer) handleAllowedEmail(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.AllowedEmail())
}

func (s *HTTPServer) handleMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.service.Menu(callerFrom(r.Context()))})
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

type requestIDKey struct{}
type identityKey struct{}

type resolvedIdentity struct {
	id auth.Identity
	ok bool
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	v, _ := ctx.Value(identityKey{}).(resolvedIdentity)
	return v.id, v.ok
}

func callerFrom(ctx context.Context) access.Subject {
	id, ok := identityFrom(ctx)
	if !ok {
		return access.Subject{}
	}
	return subjectOf(id)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		id, ok := s.service.Identify(ctx, auth.TokenFromRequest(r))
		ctx = context.WithValue(ctx, identityKey{}, resolvedIdentity{id: id, ok: ok})
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the live endpoint upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, If-Match")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "ETag, X-Request-ID")
	if corsOrigin != "*" {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeHTML(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page))
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
