package export

import (
	"context"
	"fmt"
	"html/template"

	"inkpad/api/internal/access"
	"inkpad/api/internal/docstore"
)

type documentReader interface {
	Get(ctx context.Context, caller access.Subject, documentID string) (docstore.Document, error)
}

type formatter interface {
	Format(raw string) string
}

// Renderer turns a rendered HTML page into another format.
type Renderer func(ctx context.Context, html, title string) (*Result, error)

type Option func(*Service)

func WithPDFRenderer(r Renderer) Option  { return func(s *Service) { s.pdf = r } }
func WithDOCXRenderer(r Renderer) Option { return func(s *Service) { s.docx = r } }
func WithArchive(a *Archive) Option      { return func(s *Service) { s.archive = a } }

// Service provides document export functionality
type Service struct {
	docs    documentReader
	format  formatter
	pdf     Renderer
	docx    Renderer
	archive *Archive
}

func NewService(docs documentReader, f formatter, opts ...Option) *Service {
	s := &Service{docs: docs, format: f, pdf: exportPDF, docx: exportDOCX}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export generates an export in the requested format for a caller who
// may read the document.
func (s *Service) Export(ctx context.Context, caller access.Subject, req Request) (*Result, error) {
	doc, err := s.docs.Get(ctx, caller, req.DocumentID)
	if err != nil {
		return nil, err
	}

	page, err := s.Page(doc)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(page),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return s.pdf(ctx, page, doc.Title)
	case FormatDOCX:
		return s.docx(ctx, page, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// Page renders doc as a standalone HTML page.
func (s *Service) Page(doc docstore.Document) (string, error) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       doc.Title,
		ContentHTML: template.HTML(s.format.Format(doc.Content)),
		Author:      doc.CreatedBy,
		UpdatedAt:   doc.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}

// ArchiveExport exports and stores the result, returning a time-limited
// download URL.
func (s *Service) ArchiveExport(ctx context.Context, caller access.Subject, req Request) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	res, err := s.Export(ctx, caller, req)
	if err != nil {
		return "", err
	}
	return s.archive.Store(ctx, req.DocumentID, res)
}
