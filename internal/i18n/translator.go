// Package i18n renders user-facing error messages from embedded TOML catalogs.
package i18n

import (
	"embed"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var catalogFiles = []string{"active.en.toml", "active.fr.toml"}

// Translator is a thin wrapper around go-i18n's Bundle.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          *slog.Logger
}

// NewTranslator builds a Translator with the given default locale (e.g. "en").
func NewTranslator(defaultLocale string, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range catalogFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			logger.Error("i18n: failed to load catalog", "file", file, "error", err)
		}
	}
	return &Translator{bundle: bundle, defaultLanguage: tag, logger: logger}
}

// Translate renders key for the Accept-Language header value. Unknown keys
// fall back to fallback.
func (t *Translator) Translate(acceptLanguage, key string, data map[string]string, fallback string) string {
	if key == "" {
		return fallback
	}
	localizer := i18n.NewLocalizer(t.bundle, acceptLanguage, t.defaultLanguage.String())
	var templateData map[string]any
	if len(data) > 0 {
		templateData = make(map[string]any, len(data))
		for k, v := range data {
			templateData[k] = v
		}
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		t.logger.Debug("i18n: localize failed", "key", key, "accept_language", acceptLanguage, "error", err)
		return fallback
	}
	// text/template renders missing keys as "<no value>".
	if strings.Contains(msg, "<no value>") {
		t.logger.Debug("i18n: template data missing", "key", key, "accept_language", acceptLanguage)
		return fallback
	}
	return msg
}
