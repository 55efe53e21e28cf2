package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// BaseLocale is the canonical source locale; every deployment catalog
// must define it.
const BaseLocale = "en"

// Catalog holds localized messages for all configured locales. Immutable
// after New.
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	messages map[language.Tag]map[string]string
	tags     []language.Tag
	base     language.Tag
}

// New builds a catalog from locale -> key -> text maps. The base locale
// is required; other locales fall back to it per key.
func New(messages map[string]map[string]string) (*Catalog, error) {
	if _, ok := messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %q is not defined", BaseLocale)
	}

	locales := make([]string, 0, len(messages))
	for locale := range messages {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	builder := catalog.NewBuilder()
	byTag := make(map[language.Tag]map[string]string, len(messages))
	tags := make([]language.Tag, 0, len(locales))
	var base language.Tag

	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		for key, text := range messages[locale] {
			if err := builder.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
		byTag[tag] = messages[locale]
		if locale == BaseLocale {
			base = tag
			// The matcher prefers earlier tags; keep the base first.
			tags = append([]language.Tag{tag}, tags...)
			continue
		}
		tags = append(tags, tag)
	}

	return &Catalog{
		builder:  builder,
		matcher:  language.NewMatcher(tags),
		messages: byTag,
		tags:     tags,
		base:     base,
	}, nil
}

// Default returns a catalog with the built-in English messages the
// engine emits on its own (denials and settings confirmations).
// Deployments extend or replace it with their full message set.
func Default() *Catalog {
	c, err := New(map[string]map[string]string{
		BaseLocale: {
			"invalid_credentials": "These credentials do not match our records.",
			"updated_settings":    "Successfully updated settings",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// View is a catalog bound to a resolved locale. It satisfies the
// engine's MessageCatalog collaborator.
type View struct {
	catalog *Catalog
	tag     language.Tag
}

// Match resolves the best supported locale for the requested one and
// returns a bound view. Unknown locales resolve to the base locale.
func (c *Catalog) Match(locale string) *View {
	tag, err := language.Parse(locale)
	if err != nil {
		return &View{catalog: c, tag: c.base}
	}
	matched, _, _ := c.matcher.Match(tag)
	// Matcher may return a synthetic tag; snap to the closest
	// registered locale. Walk tags in registration order so the
	// result is stable when several locales share a base.
	if _, ok := c.messages[matched]; !ok {
		base, _ := matched.Base()
		snapped := false
		for _, registered := range c.tags {
			if rb, _ := registered.Base(); rb == base {
				matched = registered
				snapped = true
				break
			}
		}
		if !snapped {
			matched = c.base
		}
	}
	return &View{catalog: c, tag: matched}
}

// Base returns the view for the base locale.
func (c *Catalog) Base() *View {
	return &View{catalog: c, tag: c.base}
}

// Has reports whether the key resolves in this locale or the base
// locale.
func (v *View) Has(key string) bool {
	if _, ok := v.catalog.messages[v.tag][key]; ok {
		return true
	}
	_, ok := v.catalog.messages[v.catalog.base][key]
	return ok
}

// Translate returns the localized text for key. Unknown keys return the
// key itself; call Has first when absence matters.
func (v *View) Translate(key string) string {
	tag := v.tag
	if _, ok := v.catalog.messages[tag][key]; !ok {
		tag = v.catalog.base
	}
	printer := message.NewPrinter(tag, message.Catalog(v.catalog.builder))
	return printer.Sprintf(key)
}
