// security.go - Response hardening headers.
package server

import "net/http"

// securityHeadersMiddleware adds baseline security headers to every
// response. The API is JSON-only, so the policy is strict: no framing,
// no MIME sniffing, and no referrer leakage of secret-bearing URLs.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
