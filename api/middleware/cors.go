package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// storefront and console dev servers
var devOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// CORS admits browser calls from the storefront and console origins. Blank
// entries are ignored and an empty list falls back to the dev servers. A "*"
// entry allows any origin but then drops credentials, as browsers require.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
			continue
		case "*":
			wildcard = true
		}
		allowed = append(allowed, origin)
	}
	if len(allowed) == 0 {
		allowed = devOrigins
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Requested-With",
			SessionHeader, IdempotencyHeader, requestIDHeader,
		},
		ExposedHeaders:   []string{SessionHeader, requestIDHeader, ReplayedHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
}
