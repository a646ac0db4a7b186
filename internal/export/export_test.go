package export

import (
	"context"
	"html/template"
	"strings"
	"testing"
	"time"
)

type stubLoader struct {
	note Note
	err  error
}

func (s stubLoader) LoadRenderedNote(ctx context.Context, eventID, version string) (Note, error) {
	return s.note, s.err
}

func TestRenderNoteHTML(t *testing.T) {
	data := TemplateData{
		Title:     "Summer reunion",
		BodyHTML:  template.HTML("<p>Ask <b>a cousin</b> about it.</p>"),
		Author:    "Avery",
		UpdatedAt: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
		References: []TemplateReference{
			{Label: "Jane Doe", Role: "Host"},
			{Label: "a cousin"},
		},
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		t.Fatalf("RenderNoteHTML() error = %v", err)
	}

	for _, want := range []string{
		"Summer reunion",
		"<p>Ask <b>a cousin</b> about it.</p>",
		"Jane Doe",
		"(host)",
		"June 14, 2025",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderNoteHTMLEscapesLabels(t *testing.T) {
	data := TemplateData{
		Title: "Note",
		References: []TemplateReference{
			{Label: "<script>alert(1)</script>"},
		},
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		t.Fatalf("RenderNoteHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("reference label was not escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Summer reunion", "Summer-reunion"},
		{"a/b\\c:d", "abcd"},
		{"", "note"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodeDataURL(t *testing.T) {
	got := encodeDataURL("a b+c")
	if got != "a%20b%2Bc" {
		t.Errorf("encodeDataURL() = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatPDF, false},
		{"pdf", FormatPDF, false},
		{"html", FormatHTML, false},
		{"docx", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(stubLoader{note: Note{
		Title:      "Summer reunion",
		BodyHTML:   "<p>Ask <b>a cousin</b> about it.</p>",
		AuthorName: "Avery",
		UpdatedAt:  time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
	}})

	res, err := svc.Export(context.Background(), Request{EventID: "evt-1", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.MimeType != "text/html; charset=utf-8" {
		t.Errorf("MimeType = %q", res.MimeType)
	}
	if res.Filename != "Summer-reunion.html" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if !strings.Contains(string(res.Data), "a cousin") {
		t.Error("HTML export missing rendered body")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	svc := NewService(stubLoader{note: Note{Title: "Note"}})
	if _, err := svc.Export(context.Background(), Request{EventID: "evt-1", Format: "docx"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
