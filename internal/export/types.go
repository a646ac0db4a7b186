// Package export renders notes to PDF or standalone HTML. Only the redacted
// rendering of a note ever reaches the exporter.
package export

import (
	"errors"
	"fmt"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat maps a request parameter to a Format. Empty defaults to PDF.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatHTML:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("unsupported format: %q", raw)
	}
}

// Request contains parameters for an export operation
type Request struct {
	EventID string
	Version string // "latest" or commit hash
	Format  Format
}

// Note is the redacted note content handed to the exporter.
type Note struct {
	ID         string
	Title      string
	BodyHTML   string
	AuthorName string
	UpdatedAt  time.Time
	References []NoteReference
}

// NoteReference is one rendered mention line shown under the note.
type NoteReference struct {
	Label string
	Role  string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates note content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
