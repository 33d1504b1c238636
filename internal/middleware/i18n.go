package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// NarrationLanguages are the languages offered as a default narration
// language. The first entry is the fallback.
var NarrationLanguages = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Dutch,
	language.Polish,
	language.Indonesian,
	language.Hindi,
	language.Japanese,
	language.Korean,
	language.Chinese,
}

var narrationMatcher = language.NewMatcher(NarrationLanguages)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the client's preferred narration language and country in the
// request context. The language comes from X-Locale, then Accept-Language,
// then the most likely language of the resolved country.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return matchLanguage(tag)
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		return matchLanguage(tags...)
	}
	if country != "" {
		if region, err := language.ParseRegion(country); err == nil {
			if tag, err := language.Compose(region); err == nil {
				return matchLanguage(tag)
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return language.English.String()
}

// matchLanguage maps the given preferences to the closest narration language
// and returns its base subtag.
func matchLanguage(prefs ...language.Tag) string {
	_, idx, conf := narrationMatcher.Match(prefs...)
	if conf == language.No {
		return language.English.String()
	}
	base, _ := NarrationLanguages[idx].Base()
	return base.String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the narration language detected for the
// request, or "" when the middleware did not run.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion returns the explicit region of the first tag in accept.
func localeRegion(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	region, conf := tags[0].Region()
	if conf != language.Exact {
		return ""
	}
	return region.String()
}
