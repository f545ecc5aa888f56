// Package web renders the server-side HTML pages and carries one-shot
// flash notices between a form post and the page it redirects to.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"safarank-api/internal/model"
)

//go:embed templates/*.html
var templateFiles embed.FS

const layoutFile = "templates/layout.html"

// Page is the data handed to every template.
type Page struct {
	Title string
	User  *model.SessionData
	Flash *Flash
	Data  interface{}
}

// Renderer holds one parsed template set per page, each combined with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"stars": func(score int) string {
		if score < 0 {
			score = 0
		}
		if score > model.MaxScore {
			score = model.MaxScore
		}
		return strings.Repeat("★", score) + strings.Repeat("☆", model.MaxScore-score)
	},
	"pct": func(n int, total int64) int {
		if total <= 0 {
			return 0
		}
		return int(int64(n) * 100 / total)
	},
	"tierClass": func(t model.Tier) string {
		return "tier-" + strings.ToLower(string(t))
	},
	"roles": func() []model.Role { return model.Roles },
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range names {
		if file == layoutFile {
			continue
		}
		t, err := template.New("layout").Funcs(funcs).ParseFS(templateFiles, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return r, nil
}

// MustNewRenderer is NewRenderer that panics on error.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes page name with status. The page is executed into a buffer
// first so that a template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data *Page) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("unknown template", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
