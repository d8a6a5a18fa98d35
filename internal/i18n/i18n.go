// Package i18n negotiates the request language and formats user-facing
// messages through golang.org/x/text.
package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// TraditionalChinese is the second language shipped with the back office.
var TraditionalChinese = language.MustParse("zh-Hant")

var supported = []language.Tag{language.English, TraditionalChinese}

var matcher = language.NewMatcher(supported)

var messages = buildCatalog()

type languageContextKey struct{}

func buildCatalog() catalog.Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, translated := range zhHant {
		_ = builder.SetString(language.English, key, key)
		_ = builder.SetString(TraditionalChinese, key, translated)
	}
	return builder
}

// Parse resolves a configured language name, falling back to English.
func Parse(name string) language.Tag {
	tag, err := language.Parse(name)
	if err != nil {
		return language.English
	}
	_, index, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[index]
}

// Negotiate picks the best supported language for an Accept-Language header.
func Negotiate(header string, fallback language.Tag) language.Tag {
	if header == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[index]
}

// WithLanguage stores the negotiated language in context.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, languageContextKey{}, tag)
}

// LanguageFromContext returns the request language, English when unset.
func LanguageFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(languageContextKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// T formats key in the request language.
func T(ctx context.Context, key string, args ...any) string {
	return Printer(LanguageFromContext(ctx)).Sprintf(key, args...)
}

// Middleware negotiates the language of every request.
func Middleware(fallback language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := Negotiate(r.Header.Get("Accept-Language"), fallback)
			next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), tag)))
		})
	}
}
