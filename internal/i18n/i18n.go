// Package i18n localizes the user-facing toast messages. The marketplace
// serves an Arabic-first audience, so every string the aggregator surfaces
// exists in both Arabic and English.
package i18n

import (
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var translationsFS embed.FS

// I18n resolves message IDs to localized strings.
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

// New creates a translator with the embedded catalogs loaded. lang selects
// the preferred language; lookups fall back to English.
func New(lang string) (*I18n, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := translationsFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embedded translations: %w", err)
	}
	for _, entry := range entries {
		if _, err := bundle.LoadMessageFileFS(translationsFS, entry.Name()); err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
	}

	return &I18n{bundle: bundle, defaultLang: tag}, nil
}

// Translate returns the localized string for msgID, or the ID itself when no
// catalog carries it.
func (i *I18n) Translate(msgID string, templateData map[string]interface{}) string {
	localizer := i18n.NewLocalizer(i.bundle, i.defaultLang.String(), language.English.String())

	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}
