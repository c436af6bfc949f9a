package middleware

import (
	"context"
	"net"
	"net/http"

	"server/internal/infra/geoip"
)

type countryKey string

const countryCodeKey countryKey = "country_code"

// GeoCountry annotates the request context with the caller's ISO country
// code. A nil resolver disables the middleware entirely; lookup failures are
// silently skipped, the annotation is best-effort log enrichment.
func GeoCountry(resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if resolver == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip != "" {
				if code, err := resolver.CountryCode(ip); err == nil && code != "" {
					r = r.WithContext(context.WithValue(r.Context(), countryCodeKey, code))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryCodeKey).(string); ok {
		return v
	}
	return ""
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
