// Package i18n resolves localized display strings for the public site.
//
// The translation table is loaded once from embedded locale files into an
// immutable Catalog that is shared by reference. Lookups never fail: a
// missing key or a missing language value degrades to the caller's fallback
// or, without one, to the key itself.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales
var localesFS embed.FS

// Language is a supported site language code.
type Language string

// Supported languages.
const (
	English Language = "en"
	Arabic  Language = "ar"
	Spanish Language = "es"
	French  Language = "fr"
	German  Language = "de"
	Chinese Language = "zh"
)

// DefaultLanguage is used when no preference can be determined.
const DefaultLanguage = English

var supportedLanguages = []Language{English, Arabic, Spanish, French, German, Chinese}

// nativeNames are shown in the language selector.
var nativeNames = map[Language]string{
	English: "English",
	Arabic:  "العربية",
	Spanish: "Español",
	French:  "Français",
	German:  "Deutsch",
	Chinese: "中文",
}

// SupportedLanguages returns the supported language codes in selector order.
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// ParseLanguage converts a code such as "AR" into a supported Language.
func ParseLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range supportedLanguages {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}

// IsSupported checks if a language code is one of the site languages.
func IsSupported(code string) bool {
	_, ok := ParseLanguage(code)
	return ok
}

// IsRTL reports whether lang is written right-to-left.
func IsRTL(lang Language) bool {
	return lang == Arabic
}

// Direction returns the HTML dir attribute value for lang.
func Direction(lang Language) string {
	if IsRTL(lang) {
		return "rtl"
	}
	return "ltr"
}

// NativeName returns the language's own name, or the code for unknown languages.
func NativeName(lang Language) string {
	if name, ok := nativeNames[lang]; ok {
		return name
	}
	return string(lang)
}

// Message represents a single translatable message.
type Message struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Translation string `json:"translation"`
}

// MessageFile represents the structure of a messages JSON file.
type MessageFile struct {
	Language string    `json:"language"`
	Messages []Message `json:"messages"`
}

// Catalog is the immutable translation table: key -> language -> text.
type Catalog struct {
	entries map[string]map[Language]string
	matcher language.Matcher
	tags    []language.Tag
}

// New loads the catalog from the embedded locale files.
func New(logger *slog.Logger) (*Catalog, error) {
	sub, err := fs.Sub(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("opening locales: %w", err)
	}
	return NewFromFS(sub, logger)
}

// NewFromFS loads <lang>/messages.json for every supported language from fsys.
func NewFromFS(fsys fs.FS, logger *slog.Logger) (*Catalog, error) {
	c := newCatalog()

	for _, lang := range supportedLanguages {
		n, err := c.loadLanguage(fsys, lang)
		if err != nil {
			return nil, fmt.Errorf("loading language %s: %w", lang, err)
		}
		if logger != nil {
			logger.Debug("loaded translations", "language", lang, "count", n)
		}
	}

	if logger != nil {
		for _, lang := range supportedLanguages {
			if missing := c.Missing(lang); len(missing) > 0 {
				logger.Warn("incomplete translations", "language", lang,
					"translated", c.Count(lang), "missing", len(missing), "first_missing", missing[0])
			}
		}
		logger.Info("i18n initialized", "languages", supportedLanguages, "keys", len(c.entries))
	}
	return c, nil
}

// NewFromTable builds a catalog from an in-memory table. The table is copied.
func NewFromTable(table map[string]map[Language]string) *Catalog {
	c := newCatalog()
	for key, entry := range table {
		values := make(map[Language]string, len(entry))
		for lang, text := range entry {
			if text != "" {
				values[lang] = text
			}
		}
		c.entries[key] = values
	}
	return c
}

func newCatalog() *Catalog {
	tags := make([]language.Tag, 0, len(supportedLanguages))
	for _, lang := range supportedLanguages {
		tags = append(tags, language.MustParse(string(lang)))
	}
	return &Catalog{
		entries: make(map[string]map[Language]string),
		matcher: language.NewMatcher(tags),
		tags:    tags,
	}
}

// loadLanguage merges one language file into the table.
func (c *Catalog) loadLanguage(fsys fs.FS, lang Language) (int, error) {
	path := fmt.Sprintf("%s/messages.json", lang)
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var msgFile MessageFile
	if err := json.Unmarshal(data, &msgFile); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	n := 0
	for _, msg := range msgFile.Messages {
		if msg.ID == "" || msg.Translation == "" {
			continue
		}
		entry, ok := c.entries[msg.ID]
		if !ok {
			entry = make(map[Language]string, len(supportedLanguages))
			c.entries[msg.ID] = entry
		}
		entry[lang] = msg.Translation
		n++
	}
	return n, nil
}

// Resolve returns the text for key in lang. When the key is unknown or has no
// value for lang, the first non-empty fallback is returned, else the key.
func (c *Catalog) Resolve(key string, lang Language, fallback ...string) string {
	if c != nil {
		if text, ok := c.entries[key][lang]; ok {
			return text
		}
	}
	for _, f := range fallback {
		if f != "" {
			return f
		}
	}
	return key
}

// Keys returns all defined keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of keys that have a value for lang.
func (c *Catalog) Count(lang Language) int {
	n := 0
	for _, entry := range c.entries {
		if _, ok := entry[lang]; ok {
			n++
		}
	}
	return n
}

// Missing returns the sorted keys that have no value for lang.
func (c *Catalog) Missing(lang Language) []string {
	var out []string
	for _, key := range c.Keys() {
		if _, ok := c.entries[key][lang]; !ok {
			out = append(out, key)
		}
	}
	return out
}

// MatchLanguage finds the best supported language for an Accept-Language
// header or a single language tag. Unmatched input yields DefaultLanguage.
func (c *Catalog) MatchLanguage(accept string) Language {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		tag, err := language.Parse(accept)
		if err != nil {
			return DefaultLanguage
		}
		tags = []language.Tag{tag}
	}

	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(c.tags) {
		return DefaultLanguage
	}
	return supportedLanguages[idx]
}

// Localizer returns a resolution handle bound to lang.
func (c *Catalog) Localizer(lang Language) Localizer {
	return Localizer{catalog: c, lang: lang}
}
