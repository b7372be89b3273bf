package pages

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/de-tools/secboard/pkg/services/attacksurface"
	"github.com/de-tools/secboard/pkg/services/cloud"
	"github.com/de-tools/secboard/pkg/services/pages"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	session   *pages.Session
	templates map[string]*template.Template
}

func NewHandler(session *pages.Session) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{session: session, templates: templates}, nil
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := h.session.Dashboard()
	if err := page.Load(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to load dashboard")
	}
	h.render(w, r, pages.NameDashboard, page.Title(), page.Snapshot())
}

func (h *Handler) AttackSurface(w http.ResponseWriter, r *http.Request) {
	page := h.session.AttackSurface()
	if err := page.Load(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to load attack surface")
	}
	h.render(w, r, pages.NameAttackSurface, page.Title(), page.Snapshot())
}

func (h *Handler) Cloud(w http.ResponseWriter, r *http.Request) {
	page := h.session.Cloud()
	if err := page.Load(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to load cloud monitor")
	}
	h.render(w, r, pages.NameCloud, page.Title(), page.Snapshot())
}

func (h *Handler) OpenRepositoryForm(w http.ResponseWriter, r *http.Request) {
	h.session.AttackSurface().OpenAddForm()
	redirect(w, r, "/attack-surface")
}

func (h *Handler) CancelRepositoryForm(w http.ResponseWriter, r *http.Request) {
	h.session.AttackSurface().CancelAddForm()
	redirect(w, r, "/attack-surface")
}

func (h *Handler) AddRepository(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	form := attacksurface.RepositoryForm{
		Name:  r.PostForm.Get("repo_name"),
		URL:   r.PostForm.Get("repo_url"),
		Token: r.PostForm.Get("github_token"),
	}
	if err := h.session.AttackSurface().SubmitAddRepository(r.Context(), form); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("repo", form.Name).Msg("failed to add repository")
	}
	redirect(w, r, "/attack-surface")
}

func (h *Handler) ScanRepository(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	repoID := chi.URLParam(r, "id")
	token := attacksurface.StaticToken(r.PostForm.Get("github_token"))
	if err := h.session.AttackSurface().TriggerScan(r.Context(), repoID, token); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("repo_id", repoID).Msg("failed to trigger scan")
	}
	redirect(w, r, "/attack-surface")
}

func (h *Handler) AttackSurfaceFindingStatus(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.session.AttackSurface().ChangeFindingStatus, "/attack-surface")
}

func (h *Handler) DismissAttackSurfaceFindingError(w http.ResponseWriter, r *http.Request) {
	h.session.AttackSurface().DismissFindingError(chi.URLParam(r, "id"))
	redirect(w, r, "/attack-surface")
}

func (h *Handler) OpenAccountForm(w http.ResponseWriter, r *http.Request) {
	h.session.Cloud().OpenAddForm()
	redirect(w, r, "/cloud")
}

func (h *Handler) CancelAccountForm(w http.ResponseWriter, r *http.Request) {
	h.session.Cloud().CancelAddForm()
	redirect(w, r, "/cloud")
}

func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	form := cloud.AccountForm{
		AccountID: r.PostForm.Get("account_id"),
		Name:      r.PostForm.Get("account_name"),
		Provider:  r.PostForm.Get("cloud_provider"),
	}
	if err := h.session.Cloud().SubmitAddAccount(r.Context(), form); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("account_id", form.AccountID).Msg("failed to add cloud account")
	}
	redirect(w, r, "/cloud")
}

func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if err := h.session.Cloud().TriggerSync(r.Context(), accountID); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("account_id", accountID).Msg("failed to sync cloud account")
	}
	redirect(w, r, "/cloud")
}

func (h *Handler) CloudFindingStatus(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.session.Cloud().ChangeFindingStatus, "/cloud")
}

func (h *Handler) DismissCloudFindingError(w http.ResponseWriter, r *http.Request) {
	h.session.Cloud().DismissFindingError(chi.URLParam(r, "id"))
	redirect(w, r, "/cloud")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode health response")
	}
}

type statusChanger func(ctx context.Context, findingID, status string) error

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, change statusChanger, back string) {
	if !parseForm(w, r) {
		return
	}
	findingID := chi.URLParam(r, "id")
	status := r.PostForm.Get("status")
	if err := change(r.Context(), findingID, status); err != nil {
		zerolog.Ctx(r.Context()).Warn().
			Err(err).
			Str("finding_id", findingID).
			Str("status", status).
			Msg("failed to change finding status")
	}
	redirect(w, r, back)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}
	return true
}

// redirect answers a form post with a redirect to the page it came from.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
