package auth

import (
	"net/http"
	"strings"
)

// Middleware rejects requests without a valid bearer token by calling
// unauthorized instead of next. It is a no-op when v is disabled.
func Middleware(v Verifier, unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !v.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Verify(extractToken(r)); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="bootstrapoor"`)
				unauthorized(w, r)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the request.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Support both "Bearer <token>" and "<token>" formats.
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return authHeader
}
