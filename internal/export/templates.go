package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var noteTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/note.html")
	if err != nil {
		// Fallback to built-in template if file not found
		noteTemplate = template.Must(template.New("note").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	noteTemplate = template.Must(template.New("note").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for note template rendering
type TemplateData struct {
	Title      string
	BodyHTML   template.HTML
	Author     string
	UpdatedAt  time.Time
	References []TemplateReference
}

// TemplateReference holds a rendered mention line for the template
type TemplateReference struct {
	Label string
	Role  string
}

// RenderNoteHTML renders the note template with provided data
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .reference { background: #f5f5f5; padding: 0.5rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  <div>{{.BodyHTML | safeHTML}}</div>
  {{if .References}}
  <h2>People in this note</h2>
  {{range .References}}<div class="reference">{{.Label}}{{if .Role}} ({{.Role | lower}}){{end}}</div>{{end}}
  {{end}}
</body>
</html>`
