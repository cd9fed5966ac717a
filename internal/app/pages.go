package app

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"inkpad/api/internal/auth"
	"inkpad/api/internal/docstore"
)

//go:embed templates/*.html
var pageFS embed.FS

var editorTemplate = template.Must(template.ParseFS(pageFS, "templates/editor.html"))

type editorPage struct {
	DocumentID string
	Title      string
}

// handleNew is the gateway for creating a document: only a live admin
// session gets through; everyone else goes home.
func (s *HTTPServer) handleNew(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	id, ok := identityFrom(r.Context())
	if !ok {
		auth.ClearSessionCookie(w, s.cookieOptions())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !s.service.IsAdminIdentity(id) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	doc, err := s.service.NewDocument(r.Context(), subjectOf(id))
	if err != nil {
		s.logger.Error().Err(err).Msg("create document failed")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/d/"+doc.DocumentID+"/edit", http.StatusFound)
}

func (s *HTTPServer) handleView(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.deps.Docs.Get(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writePageError(w, r, err)
		return
	}
	page, err := s.service.deps.Export.Page(doc)
	if err != nil {
		s.writePageError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

// handleEdit serves the block editor shell; callers who cannot write are
// sent to the read-only view.
func (s *HTTPServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	documentID := mux.Vars(r)["id"]
	if caller.Anonymous() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	doc, err := s.service.deps.Docs.Get(r.Context(), caller, documentID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		doc = docstore.Document{DocumentID: documentID, Title: docstore.DefaultTitle}
	case err != nil:
		s.writePageError(w, r, err)
		return
	case !s.service.gate.CanWrite(caller, doc.Resource()):
		http.Redirect(w, r, "/d/"+documentID, http.StatusFound)
		return
	}

	var buf bytes.Buffer
	if err := editorTemplate.Execute(&buf, editorPage{DocumentID: doc.DocumentID, Title: doc.Title}); err != nil {
		s.writePageError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.String())
}

func (s *HTTPServer) writePageError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, message, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("page failed")
	}
	writeHTML(w, status, "<!DOCTYPE html><title>"+template.HTMLEscapeString(message)+"</title><p>"+
		template.HTMLEscapeString(message)+`</p><p><a href="/">Home</a></p>`)
}
