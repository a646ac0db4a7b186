package export

import (
	"context"
	"fmt"
	"html/template"
)

// NoteLoader supplies the redacted rendering of a note at a given version.
type NoteLoader interface {
	LoadRenderedNote(ctx context.Context, eventID, version string) (Note, error)
}

// Service provides note export functionality
type Service struct {
	loader NoteLoader
}

// NewService creates a new export service
func NewService(loader NoteLoader) *Service {
	return &Service{loader: loader}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	note, err := s.loader.LoadRenderedNote(ctx, req.EventID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}

	data := TemplateData{
		Title:      note.Title,
		BodyHTML:   template.HTML(note.BodyHTML),
		Author:     note.AuthorName,
		UpdatedAt:  note.UpdatedAt,
		References: make([]TemplateReference, 0, len(note.References)),
	}
	for _, ref := range note.References {
		data.References = append(data.References, TemplateReference{
			Label: ref.Label,
			Role:  ref.Role,
		})
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, note.Title)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(note.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
