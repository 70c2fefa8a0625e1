package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vidgallery/backend/internal/config"
	"github.com/vidgallery/backend/internal/db"
	"github.com/vidgallery/backend/internal/handlers"
	"github.com/vidgallery/backend/internal/httpserver"
	"github.com/vidgallery/backend/internal/middleware"
)

// Run bootstraps the gallery backend.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or env")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(args[1:], os.Stdout)
	case "env":
		fmt.Fprintln(os.Stdout, config.Usage())
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	wired, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, wired.deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "port", cfg.AppPort, "memoryStore", cfg.UsesMemoryStore())

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	// live streams only end once their subscriptions close
	srv.RegisterOnShutdown(wired.closeStreams)

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	if err := wired.cleanup(shutdownCtx); err != nil {
		logger.Warn("shutdown background work", "error", err)
	}
	return serveErr
}

func runMigrations(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.UsesMemoryStore() {
		return errors.New("migrate: the in-memory store has no schema")
	}

	command := "up"
	if len(args) > 0 {
		command = strings.ToLower(args[0])
	}

	status, err := db.Migrate(cfg.DatabaseURL, command)
	if err != nil {
		return err
	}

	dirty := ""
	if status.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(out, "schema version %d%s\n", status.Version, dirty)
	return nil
}
