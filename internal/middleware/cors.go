package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultCORSMaxAge is how long browsers may cache a preflight answer.
const DefaultCORSMaxAge = 24 * time.Hour

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}

	corsRequestHeaders = strings.Join([]string{
		"Authorization", "X-API-Key", "Content-Type", RequestIDHeader, "Accept", "Accept-Language",
	}, ", ")

	corsExposedHeaders = strings.Join([]string{
		RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
	}, ", ")
)

// CORSConfig lists the browser origins allowed to call the API.
// The API authenticates with bearer keys, never cookies, so credentials
// are not allowed and "*" is accepted as an origin.
type CORSConfig struct {
	AllowedOrigins []string
	// MaxAge defaults to DefaultCORSMaxAge.
	MaxAge time.Duration
}

// CORS returns a middleware that answers preflight requests and tags
// responses for allowed origins. Requests without an Origin header pass
// through untouched. With no configured origins every cross-origin request
// is refused.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	anyOrigin := false
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
			continue
		}
		origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCORSMaxAge
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))
	methods := strings.Join(corsMethods, ", ")

	allowed := func(origin string) bool {
		if anyOrigin {
			return true
		}
		_, ok := origins[strings.ToLower(origin)]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !allowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				// The browser drops the response without the allow header.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)

			if !preflight {
				w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
				next.ServeHTTP(w, r)
				return
			}

			if !corsMethodAllowed(r.Header.Get("Access-Control-Request-Method")) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", corsRequestHeaders)
			w.Header().Set("Access-Control-Max-Age", maxAgeSeconds)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func corsMethodAllowed(method string) bool {
	for _, m := range corsMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
