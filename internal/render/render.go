// Package render executes the site's HTML templates.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/viscend/internal/i18n"
)

// Session keys for one-shot status messages.
const (
	FlashKey     = "flash"
	FlashTypeKey = "flash_type"
)

// Renderer handles template rendering with caching.
type Renderer struct {
	templates      map[string]*template.Template
	sessionManager *scs.SessionManager
	logger         *slog.Logger
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS    fs.FS
	SessionManager *scs.SessionManager
	Logger         *slog.Logger
}

// New creates a new Renderer with parsed templates.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates:      make(map[string]*template.Template),
		sessionManager: cfg.SessionManager,
		logger:         cfg.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

// parseTemplates parses every page with the base layout and all partials.
func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	pages, err := templateFiles(templatesFS, "pages")
	if err != nil {
		return fmt.Errorf("getting pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	for _, tmplPath := range pages {
		name := strings.TrimSuffix(path.Base(tmplPath), ".html")

		files := []string{"layouts/base.html"}
		files = append(files, partials...)
		files = append(files, tmplPath)

		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return nil
}

// templateFiles returns all .html files in a directory. A missing
// directory yields no files.
func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	var files []string

	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		return files, nil
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"languages":  i18n.SupportedLanguages,
		"nativeName": i18n.NativeName,
		"dirOf":      i18n.Direction,
		"pageURL":    PageURL,
		"seconds": func(d time.Duration) int {
			s := int((d + time.Second - 1) / time.Second)
			if s < 1 {
				return 1
			}
			return s
		},
	}
}

// PageURL builds the language-prefixed URL of a page. The home page maps
// to the language root.
func PageURL(lang i18n.Language, page string) string {
	if page == "" || page == "home" {
		return "/" + string(lang)
	}
	return "/" + string(lang) + "/" + page
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Page string
	Data any

	// ScrollToTop asks the page to scroll smoothly to the top on load.
	ScrollToTop bool
	// Refresh reloads the page after the duration when positive.
	Refresh time.Duration

	Flash     string
	FlashType string

	Form   map[string]string
	Status string
	Error  bool

	Lang        i18n.Language
	Dir         string
	CurrentYear int

	loc i18n.Localizer
}

// T resolves a translation key in the request language.
func (d TemplateData) T(key string, fallback ...string) string {
	return d.loc.T(key, fallback...)
}

// Value returns a submitted form value for re-display.
func (d TemplateData) Value(field string) string {
	return d.Form[field]
}

// Render renders a page template with the given data and status code.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	data.loc = i18n.FromContext(req.Context())
	data.Lang = data.loc.Language()
	data.Dir = data.loc.Dir()
	data.CurrentYear = time.Now().Year()
	if data.Page == "" {
		data.Page = name
	}

	if r.sessionManager != nil {
		if flash := r.sessionManager.PopString(req.Context(), FlashKey); flash != "" {
			data.Flash = data.loc.T(flash)
			data.FlashType = r.sessionManager.PopString(req.Context(), FlashTypeKey)
			if data.FlashType == "" {
				data.FlashType = "info"
			}
		}
	}

	// Render to buffer first to catch errors
	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

// SetFlash stores a translation key to show on the next rendered page.
func (r *Renderer) SetFlash(req *http.Request, key, flashType string) {
	if r.sessionManager == nil {
		return
	}
	r.sessionManager.Put(req.Context(), FlashKey, key)
	r.sessionManager.Put(req.Context(), FlashTypeKey, flashType)
}

// ServerError logs err and writes a plain 500 response.
func (r *Renderer) ServerError(w http.ResponseWriter, req *http.Request, err error) {
	r.logger.Error("render failed", "path", req.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
