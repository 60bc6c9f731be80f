package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// WithUserID returns a context carrying the current user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the current user id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Resolver maps a bearer token to a user id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Middleware attaches the caller's user id to the request context. Bearer
// tokens are resolved through r; when allowHeader is set an X-User-ID header
// is trusted as-is.
func Middleware(r Resolver, allowHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") && r != nil {
				userID, err := r.Resolve(req.Context(), strings.TrimPrefix(h, "Bearer "))
				if err != nil {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				req = req.WithContext(WithUserID(req.Context(), userID))
			} else if allowHeader {
				if userID := strings.TrimSpace(req.Header.Get("X-User-ID")); userID != "" {
					req = req.WithContext(WithUserID(req.Context(), userID))
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireUser rejects requests without a resolved user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if UserID(req.Context()) == "" {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}
