package api

import (
	"net/http"
	"strings"
)

// BearerAuthMiddleware guards mutating routes with a static bearer token.
// An unset token fails closed: nothing authenticates until one is
// configured.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, `{"error":"api token not configured"}`, http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			presented := strings.TrimPrefix(auth, "Bearer ")
			if presented == auth || presented != token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
