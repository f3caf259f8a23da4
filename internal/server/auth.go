// auth.go - Path-secret authentication.
//
// Every API route carries the shared secret as its first path segment.
// Validation is an exact match; on mismatch the response is a uniform 401
// that reveals nothing about the route or the archives behind it.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
)

// authorize reports whether the caller-supplied path secret matches the
// configured one. Both sides are hashed so the comparison is constant
// time regardless of length. An empty configured secret never authorizes.
func authorize(supplied, configured string) bool {
	if configured == "" {
		return false
	}
	suppliedHash := sha256.Sum256([]byte(supplied))
	configuredHash := sha256.Sum256([]byte(configured))
	return hmac.Equal(suppliedHash[:], configuredHash[:])
}

// withAuth gates a handler behind the path secret.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r.PathValue("secret"), s.cfg.Secret) {
			writeError(w, http.StatusUnauthorized, "invalid access password")
			return
		}
		next(w, r)
	}
}
