// Package handler provides HTTP handlers for the application.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/mileusna/useragent"

	"github.com/olegiv/viscend/internal/i18n"
	"github.com/olegiv/viscend/internal/inquiry"
	"github.com/olegiv/viscend/internal/lifecycle"
	"github.com/olegiv/viscend/internal/middleware"
	"github.com/olegiv/viscend/internal/render"
	"github.com/olegiv/viscend/internal/session"
)

// maxFormBody bounds HTML form submissions.
const maxFormBody = 64 << 10

// FormOption is a select option. Value is submitted, Key is its label.
type FormOption struct {
	Value string
	Key   string
}

// ContactFormData holds the choices offered by the contact form.
type ContactFormData struct {
	ProjectTypes []FormOption
	BudgetRanges []FormOption
}

var contactForm = ContactFormData{
	ProjectTypes: []FormOption{
		{"3D Production", "contact.project.3d"},
		{"Video Advertising", "contact.project.video"},
		{"Visual Effects", "contact.project.vfx"},
		{"Visual Identity Design", "contact.project.identity"},
		{"Custom Project", "contact.project.custom"},
		{"Not Sure Yet", "contact.not_sure"},
	},
	BudgetRanges: []FormOption{
		{"Under $5,000", "contact.budget.under5k"},
		{"$5,000 - $15,000", "contact.budget.5k_15k"},
		{"$15,000 - $50,000", "contact.budget.15k_50k"},
		{"$50,000 - $100,000", "contact.budget.50k_100k"},
		{"$100,000+", "contact.budget.100k_plus"},
		{"Let's Discuss", "contact.budget.discuss"},
	},
}

// CheckTemplates reports the first page template the frontend needs that
// the renderer does not have.
func CheckTemplates(r *render.Renderer) error {
	names := []string{lifecycle.PhaseIntro.String(), lifecycle.PhaseLoading.String(), "notfound"}
	for _, p := range lifecycle.Pages() {
		names = append(names, string(p))
	}
	for _, name := range names {
		if !r.Has(name) {
			return fmt.Errorf("missing page template %q", name)
		}
	}
	return nil
}

// FrontendConfig holds the dependencies of a FrontendHandler.
type FrontendConfig struct {
	Renderer       *render.Renderer
	SessionManager *scs.SessionManager
	Visitors       *lifecycle.Registry
	Inquiries      *inquiry.Service
	Logger         *slog.Logger
}

// FrontendHandler serves the public site. Every visitor is driven through
// the intro and loading phases before content pages are shown.
type FrontendHandler struct {
	renderer  *render.Renderer
	sm        *scs.SessionManager
	visitors  *lifecycle.Registry
	inquiries *inquiry.Service
	logger    *slog.Logger
}

// NewFrontendHandler creates a new FrontendHandler.
func NewFrontendHandler(cfg FrontendConfig) *FrontendHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FrontendHandler{
		renderer:  cfg.Renderer,
		sm:        cfg.SessionManager,
		visitors:  cfg.Visitors,
		inquiries: cfg.Inquiries,
		logger:    logger,
	}
}

// isCrawler reports whether the request comes from a bot. Crawlers do not
// keep cookies, so they are served content directly without a lifecycle.
func isCrawler(r *http.Request) bool {
	return useragent.Parse(r.UserAgent()).Bot
}

// machine returns the lifecycle of the requesting visitor.
func (h *FrontendHandler) machine(r *http.Request) *lifecycle.Machine {
	return h.visitors.Get(session.VisitorID(r.Context(), h.sm))
}

// Root handles GET /. Before content is shown it renders the current
// phase; afterwards it resumes the visitor's current page.
func (h *FrontendHandler) Root(w http.ResponseWriter, r *http.Request) {
	if isCrawler(r) {
		http.Redirect(w, r, render.PageURL(middleware.GetLanguage(r), string(lifecycle.PageHome)), http.StatusFound)
		return
	}
	m := h.machine(r)
	st := m.State()
	if st.Phase != lifecycle.PhaseReady {
		h.renderPhase(w, r, m, st.Phase)
		return
	}
	http.Redirect(w, r, render.PageURL(middleware.GetLanguage(r), string(st.Page)), http.StatusFound)
}

// Segment handles GET /{seg}, which is either a language root such as
// /ar or a page without a language prefix such as /contact.
func (h *FrontendHandler) Segment(w http.ResponseWriter, r *http.Request) {
	seg := chi.URLParam(r, "seg")

	if _, ok := i18n.ParseLanguage(seg); ok {
		if isCrawler(r) {
			h.renderPage(w, r, http.StatusOK, lifecycle.PageHome, render.TemplateData{})
			return
		}
		m := h.machine(r)
		if st := m.State(); st.Phase != lifecycle.PhaseReady {
			h.renderPhase(w, r, m, st.Phase)
			return
		}
		h.show(w, r, m, lifecycle.PageHome)
		return
	}

	if page, ok := lifecycle.ParsePage(seg); ok {
		http.Redirect(w, r, render.PageURL(middleware.GetLanguage(r), string(page)), http.StatusFound)
		return
	}

	h.NotFound(w, r)
}

// Page handles GET /{lang}/{page}.
func (h *FrontendHandler) Page(w http.ResponseWriter, r *http.Request) {
	if _, ok := i18n.ParseLanguage(chi.URLParam(r, "lang")); !ok {
		h.NotFound(w, r)
		return
	}
	page, ok := lifecycle.ParsePage(chi.URLParam(r, "page"))
	if !ok {
		h.NotFound(w, r)
		return
	}

	if isCrawler(r) {
		h.renderPage(w, r, http.StatusOK, page, render.TemplateData{})
		return
	}

	m := h.machine(r)
	if m.State().Phase != lifecycle.PhaseReady {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.show(w, r, m, page)
}

// CompleteIntro handles POST /intro/complete.
func (h *FrontendHandler) CompleteIntro(w http.ResponseWriter, r *http.Request) {
	if h.machine(r).CompleteIntro() {
		h.logger.Debug("intro skipped", "visitor_id", session.VisitorID(r.Context(), h.sm))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SetLanguage handles POST /language. Unsupported codes keep the current
// language.
func (h *FrontendHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	lang, ok := i18n.ParseLanguage(r.PostFormValue("lang"))
	if ok {
		middleware.SetLanguageCookie(w, lang)
	} else {
		lang = middleware.GetLanguage(r)
	}

	page, ok := lifecycle.ParsePage(r.PostFormValue("page"))
	if !ok {
		page = lifecycle.PageHome
	}
	http.Redirect(w, r, render.PageURL(lang, string(page)), http.StatusSeeOther)
}

// SubmitContact handles POST /{lang}/contact. Success redirects back to
// the contact page; failures re-render the form with the input kept.
func (h *FrontendHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	lang, ok := i18n.ParseLanguage(chi.URLParam(r, "lang"))
	if !ok {
		h.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	in := inquiry.ContactInput{
		Name:        r.PostFormValue("name"),
		Email:       r.PostFormValue("email"),
		ProjectType: r.PostFormValue("projectType"),
		BudgetRange: r.PostFormValue("budgetRange"),
		Message:     r.PostFormValue("message"),
	}

	_, err := h.inquiries.SubmitContact(r.Context(), in)
	if err == nil {
		h.renderer.SetFlash(r, "contact.status.success", "success")
		http.Redirect(w, r, render.PageURL(lang, string(lifecycle.PageContact)), http.StatusSeeOther)
		return
	}

	status, key := http.StatusInternalServerError, "contact.status.error"
	var ve *inquiry.ValidationError
	if errors.As(err, &ve) {
		status, key = http.StatusBadRequest, ve.Key
	} else {
		h.logger.Error("contact form submission failed", "error", err)
	}

	loc := i18n.FromContext(r.Context())
	h.renderPage(w, r, status, lifecycle.PageContact, render.TemplateData{
		Form: map[string]string{
			"name":        in.Name,
			"email":       in.Email,
			"projectType": in.ProjectType,
			"budgetRange": in.BudgetRange,
			"message":     in.Message,
		},
		Status: loc.T(key),
		Error:  true,
	})
}

// Subscribe handles POST /{lang}/newsletter and returns to the page the
// form was posted from.
func (h *FrontendHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	lang, ok := i18n.ParseLanguage(chi.URLParam(r, "lang"))
	if !ok {
		h.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	page, ok := lifecycle.ParsePage(r.PostFormValue("page"))
	if !ok {
		page = lifecycle.PageHome
	}

	if _, err := h.inquiries.Subscribe(r.Context(), r.PostFormValue("email")); err != nil {
		key := "newsletter.status.error"
		var ve *inquiry.ValidationError
		if errors.As(err, &ve) {
			key = ve.Key
		} else {
			h.logger.Error("newsletter form submission failed", "error", err)
		}
		h.renderer.SetFlash(r, key, "error")
	} else {
		h.renderer.SetFlash(r, "newsletter.status.success", "success")
	}

	http.Redirect(w, r, render.PageURL(lang, string(page)), http.StatusSeeOther)
}

// NotFound renders the 404 page.
func (h *FrontendHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Render(w, r, http.StatusNotFound, "notfound", render.TemplateData{}); err != nil {
		h.renderer.ServerError(w, r, err)
	}
}

// show navigates the visitor to page and renders it.
func (h *FrontendHandler) show(w http.ResponseWriter, r *http.Request, m *lifecycle.Machine, page lifecycle.Page) {
	t, ok := m.Navigate(page)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.renderPage(w, r, http.StatusOK, page, render.TemplateData{ScrollToTop: t.ScrollToTop})
}

// renderPhase renders the intro or loading screen, refreshing once the
// phase is due to advance.
func (h *FrontendHandler) renderPhase(w http.ResponseWriter, r *http.Request, m *lifecycle.Machine, phase lifecycle.Phase) {
	// A phase whose timer is due but has not fired yet still needs a reload.
	refresh := m.Remaining()
	if refresh <= 0 {
		refresh = time.Second
	}
	data := render.TemplateData{Page: phase.String(), Refresh: refresh}
	if err := h.renderer.Render(w, r, http.StatusOK, phase.String(), data); err != nil {
		h.renderer.ServerError(w, r, err)
	}
}

func (h *FrontendHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, page lifecycle.Page, data render.TemplateData) {
	data.Page = string(page)
	if page == lifecycle.PageContact {
		data.Data = contactForm
	}
	if err := h.renderer.Render(w, r, status, string(page), data); err != nil {
		h.renderer.ServerError(w, r, err)
	}
}
