package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidgallery/backend/internal/accounts"
	"github.com/vidgallery/backend/internal/auth"
	"github.com/vidgallery/backend/internal/config"
	"github.com/vidgallery/backend/internal/db"
	"github.com/vidgallery/backend/internal/gallery"
	"github.com/vidgallery/backend/internal/handlers"
	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/middleware"
	"github.com/vidgallery/backend/internal/oidc"
	"github.com/vidgallery/backend/internal/pubsub"
	"github.com/vidgallery/backend/internal/repositories"
	"github.com/vidgallery/backend/internal/sharing"
	"github.com/vidgallery/backend/internal/storage"
	"github.com/vidgallery/backend/internal/thumbnails"
)

const streamKeepAlive = 25 * time.Second

// stores groups the persistence chosen by configuration.
type stores struct {
	users    repositories.UserRepository
	videos   repositories.VideoRepository
	sessions auth.SessionStore
	pinger   handlers.Pinger
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repositories.NewMemoryStore()
		return stores{
			users:    mem.Users(),
			videos:   mem.Videos(),
			sessions: auth.NewInMemorySessionStore(),
			close:    func() {},
		}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return poolStores(pool), nil
}

func poolStores(pool *pgxpool.Pool) stores {
	return stores{
		users:    repositories.NewPostgresUserRepository(pool),
		videos:   repositories.NewPostgresVideoRepository(pool),
		sessions: repositories.NewPostgresSessionStore(pool),
		pinger:   pool,
		close:    pool.Close,
	}
}

// components is the wired application.
type components struct {
	deps handlers.Dependencies
	// closeStreams ends every live gallery subscription.
	closeStreams func()
	// cleanup stops background work and releases connections. Call it once
	// the HTTP server has stopped.
	cleanup func(context.Context) error
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var (
		closers []func(context.Context) error
		bgWait  = make(chan struct{})
	)
	bgCtx, stopBackground := context.WithCancel(context.Background())

	cleanup := func(ctx context.Context) error {
		stopBackground()
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		select {
		case <-bgWait:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
		st.close()
		return errors.Join(errs...)
	}
	fail := func(err error) (*components, error) {
		_ = cleanup(context.Background())
		return nil, err
	}

	videos := &gallery.Service{Videos: st.videos, Metrics: m}
	hub := gallery.NewHub(videos, logger, m)
	closers = append(closers, func(context.Context) error {
		hub.Close()
		return nil
	})

	var changes gallery.Publisher = hub
	if cfg.RedisURL != "" {
		bus, err := pubsub.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			close(bgWait)
			return fail(err)
		}
		changes = gallery.Relay{Local: hub, Remote: bus}
		closers = append(closers, func(context.Context) error { return bus.Close() })
		go func() {
			defer close(bgWait)
			if err := hub.Run(bgCtx, bus); err != nil {
				logger.Error("gallery change listener stopped", "error", err)
			}
		}()
		logger.Info("gallery changes distributed over redis")
	} else {
		close(bgWait)
	}
	videos.Changes = changes

	if cfg.ObjectStore.Enabled() {
		assets, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return fail(fmt.Errorf("configure thumbnail storage: %w", err))
		}
		mirror := thumbnails.NewMirror(
			thumbnails.HTTPFetcher{Client: &http.Client{Timeout: cfg.Mirror.JobTimeout}},
			assets,
			st.videos,
			changes,
			m,
			thumbnails.Config{
				QueueSize:  cfg.Mirror.QueueSize,
				Workers:    cfg.Mirror.Workers,
				JobTimeout: cfg.Mirror.JobTimeout,
			},
			logger,
		)
		videos.Thumbnails = mirror
		closers = append(closers, mirror.Shutdown)
	}

	sessions := auth.NewManager(cfg.Session.AccessTokenTTL, cfg.Session.RefreshTokenTTL, st.sessions)
	accts := &accounts.Service{
		Users:         st.users,
		Sessions:      sessions,
		Subscriptions: hub,
		Metrics:       m,
	}
	if cfg.OIDC.Enabled() {
		provider, err := oidc.NewProvider(ctx, oidc.Config{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("configure federated sign-in: %w", err))
		}
		accts.Federated = provider
	}

	links := sharing.Links{BaseURL: cfg.PublicBaseURL}
	reader := &sharing.Reader{Users: st.users, Videos: st.videos, Links: links, Metrics: m}

	limiter := middleware.NewKeyedRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 10*cfg.RateLimit.Window)

	deps := handlers.Dependencies{
		Accounts:        accts,
		Sessions:        sessions,
		Gallery:         videos,
		Live:            hub,
		Sharing:         reader,
		QR:              links,
		Metrics:         m.Handler(),
		RateLimiter:     limiter,
		TrustProxy:      cfg.TrustProxy,
		SecureCookies:   strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		Database:        st.pinger,
		StreamKeepAlive: streamKeepAlive,
	}

	return &components{deps: deps, closeStreams: hub.Close, cleanup: cleanup}, nil
}
