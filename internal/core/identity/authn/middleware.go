package authn

import (
	"net/http"
	"strings"

	"github.com/syntrixbase/daybook/internal/core/identity"
)

// TokenValidator is the part of TokenService the middleware needs.
type TokenValidator interface {
	ValidateToken(tokenString string) (*identity.Owner, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Middleware rejects requests without a valid bearer token and puts the
// owner on the request context.
func Middleware(v TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeUnauthorized(w, "Authorization header required")
			return
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			writeUnauthorized(w, "Invalid authorization header format")
			return
		}

		owner, err := v.ValidateToken(tokenString)
		if err != nil {
			writeUnauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithOwner(r.Context(), owner)))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"code":"NOT_AUTHENTICATED","message":"` + message + `"}`))
}
