package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireToken guards routes with a static API token sent as
// "Authorization: Bearer <token>". With no token configured every request
// passes.
func RequireToken(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		if len(want) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
