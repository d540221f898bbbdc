package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"omniwizz/internal/domain"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback domain.Language
		country  string
		want     domain.Language
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "zh-CN")
			},
			country: "US",
			want:    domain.LanguageChinese,
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: domain.LanguageEnglish,
		},
		{
			name: "accept-language zh preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh;q=0.9,en;q=0.5")
			},
			want: domain.LanguageChinese,
		},
		{
			name: "traditional chinese",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh-TW")
			},
			country: "TW",
			want:    domain.LanguageChinese,
		},
		{
			name: "unsupported language falls through to country",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "fr-FR")
			},
			country: "HK",
			want:    domain.LanguageChinese,
		},
		{
			name:    "country cn selects chinese",
			country: "CN",
			want:    domain.LanguageChinese,
		},
		{
			name:    "other country falls back to en",
			country: "US",
			want:    domain.LanguageEnglish,
		},
		{
			name:     "configured fallback",
			fallback: domain.LanguageChinese,
			want:     domain.LanguageChinese,
		},
		{
			name: "default to en",
			want: domain.LanguageEnglish,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "cn")
			},
			want: "US",
		},
		{
			name: "locale region fallback",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "en-AU")
			},
			want: "AU",
		},
		{
			name: "accept-language region",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "zh-HK,en;q=0.9")
			},
			want: "HK",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					return "", assertError("unexpected ip " + ip)
				}
				return "cn", nil
			},
			want: "CN",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NMiddlewareStoresLocale(t *testing.T) {
	var gotLocale domain.Language
	var gotCountry string
	h := I18N(domain.LanguageEnglish, func(string) (string, error) { return "tw", nil })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLocale = LocaleFromContext(r.Context())
			gotCountry = CountryFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotLocale != domain.LanguageChinese || gotCountry != "TW" {
		t.Fatalf("got locale %q country %q", gotLocale, gotCountry)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != domain.LanguageEnglish {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, domain.LanguageEnglish)
	}
	ctx = context.WithValue(ctx, LocaleKey, domain.LanguageChinese)
	if got := LocaleFromContext(ctx); got != domain.LanguageChinese {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, domain.LanguageChinese)
	}
}
