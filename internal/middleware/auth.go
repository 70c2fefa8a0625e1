package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/logging"
)

// SessionResolver maps an access token to its live session.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken string) (auth.Session, error)
}

// RequireSession rejects requests without a valid bearer access token and
// stores the caller's principal on the request context.
func RequireSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			session, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("session rejected", "error", err)
				unauthorized(w, "session expired or invalid")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{
				UserID:      session.UserID,
				SessionID:   session.ID,
				AccessToken: token,
			})
			ctx = logging.WithUser(ctx, session.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an `Authorization: Bearer` header,
// falling back to the access_token query parameter used by EventSource
// clients.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="vidgallery"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
