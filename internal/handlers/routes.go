package handlers

import (
	"net/http"
	"time"

	"github.com/vidgallery/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	authH := AuthHandler{Accounts: deps.Accounts, SecureCookies: deps.SecureCookies}
	videos := VideoHandler{Gallery: deps.Gallery, Live: deps.Live, KeepAlive: deps.StreamKeepAlive}
	share := ShareHandler{Galleries: deps.Sharing, QR: deps.QR}

	requireSession := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSession(deps.Sessions)(h)
	}
	limited := func(scope string, h http.Handler) http.Handler {
		return middleware.RateLimit(deps.RateLimiter, scope, deps.TrustProxy)(h)
	}

	mux.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	mux.Handle("/api/v1/auth/signup", limited("auth", http.HandlerFunc(authH.SignUp)))
	mux.Handle("/api/v1/auth/login", limited("auth", http.HandlerFunc(authH.Login)))
	mux.Handle("/api/v1/auth/refresh", limited("auth", http.HandlerFunc(authH.Refresh)))
	mux.Handle("/api/v1/auth/oidc/login", limited("auth", http.HandlerFunc(authH.OIDCLogin)))
	mux.Handle("/api/v1/auth/oidc/callback", limited("auth", http.HandlerFunc(authH.OIDCCallback)))
	mux.Handle("/api/v1/auth/logout", limited("auth", http.HandlerFunc(authH.Logout)))
	mux.Handle("/api/v1/auth/session", requireSession(authH.Session))

	mux.Handle("/api/v1/videos", requireSession(videos.Collection))
	mux.Handle("/api/v1/videos/stream", requireSession(videos.Stream))
	mux.Handle("/api/v1/videos/{id}", requireSession(videos.Item))

	mux.Handle("/api/v1/share", requireSession(share.Link))
	mux.Handle("/api/v1/share/qr", requireSession(share.QRCode))
	mux.Handle("/api/v1/shared/{token}", limited("shared", http.HandlerFunc(share.Shared)))
	mux.Handle("/share/{token}", limited("shared", http.HandlerFunc(share.Shared)))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts        Accounts
	Sessions        SessionResolver
	Gallery         Gallery
	Live            Subscriber
	Sharing         SharedGalleries
	QR              QRRenderer
	Database        Pinger
	Metrics         http.Handler
	RateLimiter     middleware.RateLimiter
	TrustProxy      bool
	SecureCookies   bool
	StreamKeepAlive time.Duration
}
