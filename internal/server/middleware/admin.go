package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth returns middleware that protects admin routes with a shared
// password checked against a bcrypt hash. The password is taken from the
// Authorization header (Bearer scheme) or the X-Admin-Password header.
// If passwordHash is empty, admin routes are open (dev mode).
func AdminAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			password := extractPassword(r)
			if password == "" {
				writeUnauthorized(w, "missing admin credentials")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
				writeUnauthorized(w, "invalid admin credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractPassword looks for credentials in the Authorization header (Bearer
// scheme) or in the X-Admin-Password header.
func extractPassword(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if pw := r.Header.Get("X-Admin-Password"); pw != "" {
		return strings.TrimSpace(pw)
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
