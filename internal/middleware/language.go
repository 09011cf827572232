// Package middleware provides HTTP middleware for language detection,
// cross-origin access, rate limiting and response hardening.
package middleware

import (
	"net/http"
	"strings"

	"github.com/olegiv/viscend/internal/i18n"
)

// LanguageCookieName is the cookie name for language preference.
const LanguageCookieName = "viscend_lang"

// Language creates middleware that detects the visitor's language and
// stores an i18n.Localizer in the request context.
// Priority order:
// 1. Query parameter ?lang=XX (explicit language switch, updates cookie)
// 2. Language prefix in the path (e.g., /ar/about)
// 3. Cookie preference
// 4. Accept-Language header
// 5. Default language
//
// Unsupported codes are skipped at every step.
func Language(catalog *i18n.Catalog, def i18n.Language) func(http.Handler) http.Handler {
	if !i18n.IsSupported(string(def)) {
		def = i18n.DefaultLanguage
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := detectLanguage(w, r, catalog, def)
			ctx := i18n.WithLocalizer(r.Context(), catalog.Localizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(w http.ResponseWriter, r *http.Request, catalog *i18n.Catalog, def i18n.Language) i18n.Language {
	if q := r.URL.Query().Get("lang"); q != "" {
		if lang, ok := i18n.ParseLanguage(q); ok {
			SetLanguageCookie(w, lang)
			return lang
		}
	}

	if lang, ok := PathLanguage(r.URL.Path); ok {
		return lang
	}

	if cookie, err := r.Cookie(LanguageCookieName); err == nil {
		if lang, ok := i18n.ParseLanguage(cookie.Value); ok {
			return lang
		}
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return catalog.MatchLanguage(accept)
	}

	return def
}

// PathLanguage reports the language named by the first path segment.
func PathLanguage(path string) (i18n.Language, bool) {
	seg := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return "", false
	}
	return i18n.ParseLanguage(seg)
}

// GetLanguage returns the language detected for the request.
func GetLanguage(r *http.Request) i18n.Language {
	return i18n.FromContext(r.Context()).Language()
}

// SetLanguageCookie sets the language preference cookie.
func SetLanguageCookie(w http.ResponseWriter, lang i18n.Language) {
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookieName,
		Value:    string(lang),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
