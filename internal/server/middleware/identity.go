package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ctxKey is a private context key type to avoid collisions.
type ctxKey int

const userIDKey ctxKey = iota

// Identity returns middleware that copies the X-User-ID header into the
// request context. Identity issuance lives outside this service; the engine
// trusts the gateway-provided header and re-validates ownership per record.
// Requests without the header pass through; handlers that need a caller
// reject them individually.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if userID != "" {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the caller identity stored by Identity, or "" when the
// request carried none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
