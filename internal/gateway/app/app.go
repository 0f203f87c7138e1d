package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agroisync/gateway/internal/gateway/session"
	"github.com/agroisync/gateway/internal/gateway/web"
	"github.com/agroisync/gateway/pkg/authapi"
	"github.com/agroisync/gateway/pkg/idx"
	"github.com/agroisync/gateway/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	registry *session.Registry
	router   *web.Router
	server   *http.Server
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "agroisync-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.AuthAPIURL == "" {
		return nil, fmt.Errorf("auth API URL must be configured")
	}

	api := authapi.NewClient(cfg.AuthAPIURL)

	opts := []session.RegistryOption{
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
		session.WithSweepInterval(cfg.SessionSweepEvery),
		session.WithMaxPerUser(cfg.MaxSessionsPerUser),
	}
	if cfg.SessionDir != "" {
		dir := cfg.SessionDir
		opts = append(opts, session.WithStorageFactory(func(id idx.ID) session.TokenStorage {
			return session.NewFileStorage(filepath.Join(dir, id.String()+".token"))
		}))
	}

	app.registry = session.NewRegistry(api, app.logger, opts...)

	app.router = web.NewRouter(app.registry, BuildVersion, app.logger)
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app, nil
}

// Run starts the gateway and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.registry.Start()

	app.logger.Info("session gateway starting",
		"port", app.cfg.Port,
		"auth_api", app.cfg.AuthAPIURL,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server and the session registry.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.registry.Stop()

	app.logger.Info("session gateway stopped")
	return nil
}
