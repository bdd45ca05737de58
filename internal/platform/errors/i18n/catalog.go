// Package i18n renders localized messages for authentication check error codes.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/tcrt-authprobe/internal/platform/i18n/catalog"
)

// errorsNamespace is the embedded catalog namespace holding error messages.
const errorsNamespace = "errors"

// Code is a machine-readable error code. Plain string because the errors
// package imports this one.
type Code = string

// message is one error template, parsed once. tmpl is nil when raw does
// not parse; raw is then returned as is.
type message struct {
	raw  string
	tmpl *template.Template
}

// Catalog holds the error templates of one locale.
type Catalog struct {
	locale   string
	messages map[Code]message
}

// registry caches catalogs by locale.
type registry struct {
	mu       sync.RWMutex
	byLocale map[string]*Catalog
}

var loaded = &registry{byLocale: map[string]*Catalog{}}

func (r *registry) get(locale string) (*Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byLocale[locale]
	return c, ok
}

func (r *registry) put(locale string, c *Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLocale[locale] = c
}

// keep stores c unless another catalog won the race, and returns the stored one.
func (r *registry) keep(locale string, c *Catalog) *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byLocale[locale]; ok {
		return existing
	}
	r.byLocale[locale] = c
	return c
}

// GetCatalog returns the catalog for locale. A blank locale means en-US;
// unknown ones map to the nearest embedded locale.
func GetCatalog(locale string) *Catalog {
	tag := strings.TrimSpace(locale)
	if tag == "" {
		tag = i18ncatalog.BaseLocale
	}
	if c, ok := loaded.get(tag); ok {
		return c
	}

	bundle := i18ncatalog.Default()
	tag = bundle.Resolve(tag)
	if c, ok := loaded.get(tag); ok {
		return c
	}

	resolved, texts := bundle.NamespaceMessagesWithFallback(tag, errorsNamespace)
	if c, ok := loaded.get(resolved); ok {
		return c
	}
	return loaded.keep(resolved, NewCatalog(resolved, texts))
}

// RegisterCatalog installs cat for locale, replacing any cached one.
func RegisterCatalog(locale string, cat *Catalog) {
	loaded.put(locale, cat)
}

// NewCatalog parses texts into a catalog for locale.
func NewCatalog(locale string, texts map[Code]string) *Catalog {
	c := &Catalog{locale: locale, messages: make(map[Code]message, len(texts))}
	for code, raw := range texts {
		m := message{raw: raw}
		if t, err := template.New(code).Parse(raw); err == nil {
			m.tmpl = t
		}
		c.messages[code] = m
	}
	return c
}

func (c *Catalog) Locale() string {
	return c.locale
}

// Format fills the template for code with metadata. An unknown code comes
// back unchanged; a template that fails comes back as its raw text.
// Missing keys render as "<no value>".
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	m, ok := c.messages[code]
	if !ok {
		return code
	}
	if m.tmpl == nil {
		return m.raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var sb strings.Builder
	if err := m.tmpl.Execute(&sb, metadata); err != nil {
		return m.raw
	}
	return sb.String()
}
