package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	csrf      *shared.CSRFManager
	prefix    string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Prefix      string
	Identity    *shared.Identity
	Lang        language.Tag
	Data        any
}

// T translates key into the page language.
func (d TemplateData) T(key string, args ...any) string {
	return i18n.Printer(d.Lang).Sprintf(key, args...)
}

// URL joins path onto the admin prefix.
func (d TemplateData) URL(path string) string {
	return d.Prefix + path
}

// NewEngine parses templates at build-time.
func NewEngine(csrf *shared.CSRFManager, prefix string) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatTimePtr": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, csrf: csrf, prefix: prefix}, nil
}

// Prefix returns the admin path prefix links are built from.
func (e *Engine) Prefix() string {
	if e == nil {
		return ""
	}
	return e.prefix
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if data.Prefix == "" {
		data.Prefix = e.prefix
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// Page renders name for r, consuming pending flash messages and issuing a
// CSRF token for forms.
func (e *Engine) Page(w http.ResponseWriter, r *http.Request, name, title string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	ctx := r.Context()
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Prefix:      e.prefix,
		Identity:    shared.IdentityFromContext(ctx),
		Lang:        i18n.LanguageFromContext(ctx),
		Data:        data,
	}
	if sess := shared.SessionFromContext(ctx); sess != nil {
		for msg := sess.PopFlash(); msg != nil; msg = sess.PopFlash() {
			td.Flashes = append(td.Flashes, *msg)
		}
		if e.csrf != nil {
			token, err := e.csrf.EnsureToken(ctx, sess)
			if err != nil {
				return err
			}
			td.CSRFToken = token
		}
	}
	return e.Render(w, name, td)
}
