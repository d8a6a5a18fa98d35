package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNegotiate(t *testing.T) {
	cases := []struct {
		header string
		want   language.Tag
	}{
		{"", language.English},
		{"zh-TW,zh;q=0.9", TraditionalChinese},
		{"zh-Hant", TraditionalChinese},
		{"en-US,en;q=0.8", language.English},
		{"fr-FR", language.English},
		{"not a header;;;", language.English},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Negotiate(tc.header, language.English), tc.header)
	}
}

func TestParseFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, language.English, Parse("xx-invalid-!!"))
	assert.Equal(t, TraditionalChinese, Parse("zh-Hant"))
}

func TestTranslate(t *testing.T) {
	ctx := WithLanguage(context.Background(), TraditionalChinese)
	assert.Equal(t, "請先登入。", T(ctx, MsgLoginRequired))
	assert.Equal(t, "歡迎回來，amy。", T(ctx, MsgWelcome, "amy"))
	assert.Equal(t, "Welcome back, amy.", T(context.Background(), MsgWelcome, "amy"))
	assert.Equal(t, "Renamed 2 functions, 1 failed.", T(context.Background(), MsgRefineResult, 2, 1))
}

func TestMiddlewareStoresLanguage(t *testing.T) {
	var got language.Tag
	handler := Middleware(language.English)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LanguageFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "zh-TW")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, TraditionalChinese, got)
}
