package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"inkpad/api/internal/docstore"
	"inkpad/api/internal/export"
	"inkpad/api/internal/search"
	"inkpad/api/internal/util"
)

type documentInput struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

func quoteETag(etag string) string {
	return `"` + etag + `"`
}

// ifMatch accepts a strong or weak entity tag, quoted or bare.
func ifMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func (s *HTTPServer) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.deps.Docs.List(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *HTTPServer) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var body documentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	documentID := strings.TrimSpace(body.DocumentID)
	if documentID == "" {
		documentID = util.NewID("")
	}
	doc, err := s.service.deps.Docs.Create(r.Context(), callerFrom(r.Context()), documentID, body.Title, body.Content)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("ETag", quoteETag(doc.ETag))
	writeJSON(w, http.StatusCreated, doc)
}

func (s *HTTPServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.deps.Docs.Get(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("ETag", quoteETag(doc.ETag))
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var body documentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.service.deps.Docs.Update(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"],
		body.Title, body.Content, docstore.UpdateOptions{IfMatch: ifMatch(r)})
	if errors.Is(err, docstore.ErrConflict) {
		w.Header().Set("ETag", quoteETag(doc.ETag))
		writeError(w, http.StatusConflict, "CONFLICT", "Document changed since it was loaded",
			map[string]any{"etag": doc.ETag, "updatedAt": doc.UpdatedAt})
		return
	}
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("ETag", quoteETag(doc.ETag))
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleDocumentInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.deps.Docs.GetDocumentInfo(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *HTTPServer) handleUpdateAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessType  string   `json:"accessType"`
		AccessUsers []string `json:"accessUsers"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.service.deps.Docs.UpdateDocumentAccess(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"], body.AccessType, body.AccessUsers)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleAccessUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.deps.Docs.UsersWithAccess(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	out := make([]Viewer, 0, len(users))
	for _, u := range users {
		out = append(out, Viewer{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *HTTPServer) handleRender(w http.ResponseWriter, r *http.Request) {
	rendered, err := s.service.Render(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("ETag", quoteETag(rendered.ETag))
	writeJSON(w, http.StatusOK, rendered)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.History(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"], queryInt(r, "limit", 50))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *HTTPServer) handleRevision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rev, err := s.service.Revision(r.Context(), callerFrom(r.Context()), vars["id"], vars["hash"])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	req := export.Request{DocumentID: mux.Vars(r)["id"], Format: format}
	caller := callerFrom(r.Context())

	if r.URL.Query().Get("archive") == "1" {
		url, err := s.service.deps.Export.ArchiveExport(r.Context(), caller, req)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
		return
	}

	res, err := s.service.deps.Export.Export(r.Context(), caller, req)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}, Query: text})
		return
	}
	q := search.Query{Text: text, Limit: queryInt(r, "limit", 0), Offset: queryInt(r, "offset", 0)}
	writeJSON(w, http.StatusOK, s.service.deps.Search.Search(r.Context(), callerFrom(r.Context()), q))
}

func (s *HTTPServer) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.service.deps.Live == nil {
		writeError(w, http.StatusServiceUnavailable, "LIVE_UNAVAILABLE", "Live editing is disabled", nil)
		return
	}
	if err := s.service.deps.Live.Serve(w, r, callerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeMappedError(w, r, err)
	}
}
