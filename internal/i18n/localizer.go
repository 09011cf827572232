package i18n

import "context"

// Localizer binds a Catalog to the language of the current request.
// The zero value is usable: it resolves every key to its fallback or itself
// and reports the default language.
type Localizer struct {
	catalog *Catalog
	lang    Language
}

// T resolves key in the bound language.
func (l Localizer) T(key string, fallback ...string) string {
	return l.catalog.Resolve(key, l.Language(), fallback...)
}

// Language returns the bound language.
func (l Localizer) Language() Language {
	if l.lang == "" {
		return DefaultLanguage
	}
	return l.lang
}

// IsRTL reports whether the bound language is right-to-left.
func (l Localizer) IsRTL() bool {
	return IsRTL(l.Language())
}

// Dir returns "rtl" or "ltr" for the bound language.
func (l Localizer) Dir() string {
	return Direction(l.Language())
}

type contextKey struct{}

// WithLocalizer returns a copy of ctx carrying l.
func WithLocalizer(ctx context.Context, l Localizer) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Localizer stored in ctx, or the zero Localizer.
func FromContext(ctx context.Context) Localizer {
	l, _ := ctx.Value(contextKey{}).(Localizer)
	return l
}
