// Package localization resolves user-facing strings through golang.org/x/text catalogs.
package localization

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"training_server/core/port/out"
)

// Message keys.
const (
	KeyJoinLiveEvent = "join_live_event"
)

var entries = map[language.Tag]map[string]string{
	language.English: {
		KeyJoinLiveEvent: `Join the live event: <a href="%[1]s">%[1]s</a>`,
	},
	language.French: {
		KeyJoinLiveEvent: `Rejoindre l'événement en direct : <a href="%[1]s">%[1]s</a>`,
	},
	language.German: {
		KeyJoinLiveEvent: `Am Live-Event teilnehmen: <a href="%[1]s">%[1]s</a>`,
	},
}

// Catalog implements out.Localizer.
type Catalog struct {
	cat       *catalog.Builder
	matcher   language.Matcher
	supported []language.Tag
	fallback  language.Tag
}

// NewCatalog builds the message catalog. defaultLocale is used when a caller
// sends no locale or one that does not match.
func NewCatalog(defaultLocale string) *Catalog {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		fallback = language.English
	}

	supported := []language.Tag{language.English, language.French, language.German}
	cat := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, messages := range entries {
		for key, msg := range messages {
			// SetString only fails on an invalid message, and these are constants.
			_ = cat.SetString(tag, key, msg)
		}
	}

	c := &Catalog{cat: cat, supported: supported}
	c.matcher = language.NewMatcher(supported)
	c.fallback = c.match(fallback.String(), language.English)
	return c
}

// Localize formats key for locale; unknown keys fall back to the key itself.
func (c *Catalog) Localize(locale, key string, args ...any) string {
	tag := c.match(locale, c.fallback)
	p := message.NewPrinter(tag, message.Catalog(c.cat))
	return p.Sprintf(key, args...)
}

func (c *Catalog) match(locale string, fallback language.Tag) language.Tag {
	if locale == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return c.supported[idx]
}

var _ out.Localizer = (*Catalog)(nil)
