package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requestToken extracts the shared secret from a request: Bearer header
// first, then the token query parameter (uptime monitors cannot usually
// set headers).
func requestToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return r.URL.Query().Get("token")
}

// authMiddleware requires the request to carry the correct secret.
func authMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !constantTimeEqual(requestToken(r), secret) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
