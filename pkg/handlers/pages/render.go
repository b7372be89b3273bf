package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/findings"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = map[string]string{
	pages.NameDashboard:     "templates/dashboard.html",
	pages.NameAttackSurface: "templates/attack_surface.html",
	pages.NameCloud:         "templates/cloud.html",
}

type navLink struct {
	Title  string
	Href   string
	Active bool
}

type pageData struct {
	Title string
	Nav   []navLink
	Page  any
}

type statusControl struct {
	Finding findings.FindingView
	Action  string
	Dismiss string
}

var funcs = template.FuncMap{
	"formatTime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "Never"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"upper":     strings.ToUpper,
	"providers": func() []string { return cloud.Providers },
	"statusControl": func(page string, f findings.FindingView) statusControl {
		return statusControl{
			Finding: f,
			Action:  fmt.Sprintf("/%s/findings/%s/status", page, f.ID),
			Dismiss: fmt.Sprintf("/%s/findings/%s/dismiss", page, f.ID),
		}
	},
}

func parseTemplates() (map[string]*template.Template, error) {
	res := make(map[string]*template.Template, len(pageTemplates))
	for name, file := range pageTemplates {
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		res[name] = t
	}
	return res, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, page any) {
	logger := zerolog.Ctx(r.Context())

	nav := make([]navLink, 0, len(pages.Navigation))
	for _, n := range pages.Navigation {
		p, err := h.session.Page(n)
		if err != nil {
			continue
		}
		nav = append(nav, navLink{Title: p.Title(), Href: "/" + n, Active: n == name})
	}

	var buf bytes.Buffer
	err := h.templates[name].ExecuteTemplate(&buf, "layout", pageData{Title: title, Nav: nav, Page: page})
	if err != nil {
		logger.Error().Err(err).Str("page", name).Msg("failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		logger.Error().Err(err).Str("page", name).Msg("failed to write page")
	}
}
