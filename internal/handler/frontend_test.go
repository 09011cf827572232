// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"io/fs"
	"net/http"
	"net/url"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/viscend/internal/inquiry"
	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/render"
	"github.com/olegiv/viscend/internal/testutil"
	"github.com/olegiv/viscend/web"
)

func TestFrontend_IntroLoadingContent(t *testing.T) {
	site := newTestSite(t)

	resp := site.get(t, "/")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `class="intro-title"`)
	assert.Contains(t, resp.Body, site.text("intro.skip"))
	assert.Contains(t, resp.Body, `http-equiv="refresh" content="4"`)

	// Content pages are not reachable during the intro.
	resp = site.get(t, "/en/about")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	site.clock.Advance(4 * time.Second)
	resp = site.get(t, "/")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, site.text("loading.text"))
	assert.Contains(t, resp.Body, `content="1"`)

	site.clock.Advance(500 * time.Millisecond)
	resp = site.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/en", resp.Header.Get("Location"))

	resp = site.get(t, "/en")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, site.text("home.hero.title"))
	assert.NotContains(t, resp.Body, "http-equiv")

	resp = site.get(t, "/en/about")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, site.text("about.hero.title"))
	assert.Contains(t, resp.Body, "window.scrollTo")
	assert.Contains(t, resp.Body, `href="/en/about" class="active" aria-current="page"`)

	// The root resumes the current page.
	resp = site.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/en/about", resp.Header.Get("Location"))
}

func TestFrontend_SkipIntro(t *testing.T) {
	site := newTestSite(t)

	site.get(t, "/")

	resp := site.postForm(t, "/intro/complete", nil)
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = site.get(t, "/")
	assert.Contains(t, resp.Body, site.text("loading.text"))

	// A second completion and the stale dwell timer are both no-ops.
	site.postForm(t, "/intro/complete", nil)
	assert.Equal(t, 1, site.clock.Pending())

	site.clock.Advance(4 * time.Second)
	assert.Equal(t, 0, site.clock.Pending())

	resp = site.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/en", resp.Header.Get("Location"))
}

func TestFrontend_NotFound(t *testing.T) {
	site := newTestSite(t)
	site.ready(t)

	site.get(t, "/en/services")

	for _, path := range []string{"/en/blog", "/xx/about", "/nothing", "/en/about/extra"} {
		resp := site.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.Status, path)
		assert.Contains(t, resp.Body, site.text("notfound.title"), path)
	}

	// Invalid navigation leaves the current page unchanged.
	resp := site.get(t, "/")
	assert.Equal(t, "/en/services", resp.Header.Get("Location"))
}

func TestFrontend_UnprefixedPage(t *testing.T) {
	site := newTestSite(t)

	resp := site.get(t, "/portfolio")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/en/portfolio", resp.Header.Get("Location"))
}

func TestFrontend_LanguageSwitch(t *testing.T) {
	site := newTestSite(t)
	site.ready(t)

	resp := site.postForm(t, "/language", url.Values{"lang": {"ar"}, "page": {"services"}})
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/ar/services", resp.Header.Get("Location"))

	resp = site.get(t, "/ar/services")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `<html lang="ar" dir="rtl">`)
	assert.Contains(t, resp.Body, site.catalog.Resolve("services.title", "ar"))

	// The cookie now decides the language of unprefixed URLs.
	resp = site.get(t, "/contact")
	assert.Equal(t, "/ar/contact", resp.Header.Get("Location"))

	// Unsupported codes keep the current language.
	resp = site.postForm(t, "/language", url.Values{"lang": {"xx"}, "page": {"about"}})
	assert.Equal(t, "/ar/about", resp.Header.Get("Location"))

	resp = site.postForm(t, "/language", url.Values{"lang": {"de"}, "page": {"intro"}})
	assert.Equal(t, "/de", resp.Header.Get("Location"))
}

func TestFrontend_ContactForm(t *testing.T) {
	site := newTestSite(t)
	site.ready(t)

	resp := site.get(t, "/en/contact")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `<option value="Visual Effects">`)
	assert.Contains(t, resp.Body, `action="/en/contact"`)

	// Missing email re-renders with the input kept.
	resp = site.postForm(t, "/en/contact", url.Values{
		"name":        {"Jane"},
		"message":     {"Hello <there>"},
		"projectType": {"Visual Effects"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Contains(t, resp.Body, site.text("contact.status.missing"))
	assert.Contains(t, resp.Body, `value="Jane"`)
	assert.Contains(t, resp.Body, "Hello &lt;there&gt;")
	assert.Contains(t, resp.Body, `<option value="Visual Effects" selected>`)

	resp = site.postForm(t, "/en/contact", url.Values{
		"name":    {"Jane"},
		"email":   {"not-an-email"},
		"message": {"Hello"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Contains(t, resp.Body, site.text("contact.status.invalid_email"))

	contacts, err := kv.GetAll[inquiry.Contact](t.Context(), site.store, inquiry.ContactPrefix)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	resp = site.postForm(t, "/en/contact", url.Values{
		"name":    {"Jane"},
		"email":   {"jane@x.com"},
		"message": {"Hello"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/en/contact", resp.Header.Get("Location"))

	resp = site.get(t, "/en/contact")
	assert.Contains(t, resp.Body, site.text("contact.status.success"))

	// The flash is shown once.
	resp = site.get(t, "/en/contact")
	assert.NotContains(t, resp.Body, site.text("contact.status.success"))

	contacts, err = kv.GetAll[inquiry.Contact](t.Context(), site.store, inquiry.ContactPrefix)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, inquiry.NotSpecified, contacts[0].ProjectType)
	assert.Equal(t, []string{"New Project Inquiry from Jane"}, site.mail.subjects())
}

func TestFrontend_ContactFormStoreFailure(t *testing.T) {
	site := newTestSite(t)
	site.ready(t)

	require.NoError(t, site.store.Close())

	resp := site.postForm(t, "/en/contact", url.Values{
		"name":    {"Jane"},
		"email":   {"jane@x.com"},
		"message": {"Hello"},
	})
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, resp.Body, site.text("contact.status.error"))
	assert.Contains(t, resp.Body, `value="jane@x.com"`)
	assert.Empty(t, site.mail.subjects())
}

func TestFrontend_NewsletterForm(t *testing.T) {
	site := newTestSite(t)
	site.ready(t)

	resp := site.postForm(t, "/en/newsletter", url.Values{"email": {"bad"}, "page": {"services"}})
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/en/services", resp.Header.Get("Location"))

	resp = site.get(t, "/en/services")
	assert.Contains(t, resp.Body, site.text("contact.status.invalid_email"))
	assert.Contains(t, resp.Body, "flash-error")

	resp = site.postForm(t, "/en/newsletter", url.Values{"email": {"fan@example.com"}, "page": {"nope"}})
	assert.Equal(t, "/en", resp.Header.Get("Location"))

	resp = site.get(t, "/en")
	assert.Contains(t, resp.Body, site.text("newsletter.status.success"))
	assert.Equal(t, []string{"New Newsletter Subscription"}, site.mail.subjects())
}

func TestFrontend_CrossOriginFormRejected(t *testing.T) {
	site := newTestSite(t)

	req, err := http.NewRequest(http.MethodPost, site.server.URL+"/intro/complete", nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://evil.example")

	resp := site.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

func TestFrontend_Static(t *testing.T) {
	site := newTestSite(t)

	resp := site.get(t, "/static/site.css")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `[dir="rtl"]`)
}

func TestFrontend_CrawlerSkipsLifecycle(t *testing.T) {
	site := newTestSite(t)
	const googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	crawl := func(path string) response {
		req, err := http.NewRequest(http.MethodGet, site.server.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", googlebot)
		return site.do(t, req)
	}

	resp := crawl("/")
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/en", resp.Header.Get("Location"))

	resp = crawl("/en/services")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, site.text("services.title"))
	assert.NotContains(t, resp.Body, "window.scrollTo")

	resp = crawl("/fr")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `<html lang="fr" dir="ltr">`)

	assert.Zero(t, site.visitors.Len())
}

func TestCheckTemplates(t *testing.T) {
	templatesFS, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)

	full, err := render.New(render.Config{TemplatesFS: templatesFS, Logger: testutil.TestLoggerSilent()})
	require.NoError(t, err)
	assert.NoError(t, CheckTemplates(full))

	partial, err := render.New(render.Config{
		TemplatesFS: fstest.MapFS{
			"layouts/base.html": {Data: []byte(`{{define "base"}}{{template "content" .}}{{end}}`)},
			"pages/intro.html":  {Data: []byte(`{{define "content"}}intro{{end}}`)},
		},
		Logger: testutil.TestLoggerSilent(),
	})
	require.NoError(t, err)
	assert.EqualError(t, CheckTemplates(partial), `missing page template "loading"`)
}
