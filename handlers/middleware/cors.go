package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// NewCorsMiddleware answers preflight requests and sets the CORS headers for
// origins matching one of the allowed patterns ("*" wildcards allowed).
func NewCorsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	patterns := make([]*regexp.Regexp, 0, len(allowedOrigins))
	for _, allowed := range allowedOrigins {
		if pattern := compileOrigin(allowed); pattern != nil {
			patterns = append(patterns, pattern)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				for _, pattern := range patterns {
					if pattern.MatchString(origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
						w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
						w.Header().Add("Vary", "Origin")
						break
					}
				}
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func compileOrigin(pattern string) *regexp.Regexp {
	if pattern == "*" {
		return regexp.MustCompile(".*")
	}

	// Escape special regex chars except *
	pattern = regexp.QuoteMeta(pattern)
	pattern = strings.ReplaceAll(pattern, "\\*", ".*")

	compiled, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil
	}
	return compiled
}
