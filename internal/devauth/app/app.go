// Package app wires the dev auth service together: sqlite store, auth
// services, HTTP router, and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	devhttp "github.com/agroisync/gateway/internal/devauth/http"
	"github.com/agroisync/gateway/internal/devauth/service"
	"github.com/agroisync/gateway/internal/devauth/store"
	"github.com/agroisync/gateway/internal/devauth/store/sqlite"
	"github.com/agroisync/gateway/internal/devauth/tokens"
	"github.com/agroisync/gateway/pkg/slogx"
)

// Application encapsulates the dev auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store        store.Store
	housekeeping *service.HousekeepingService
	router       *devhttp.Router
	server       *http.Server
}

// New creates an Application with all dependencies initialized: the database
// is opened and migrated, and the demo accounts are seeded.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "agroisync-devauth",
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	st, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	app.store = st

	if err := service.Bootstrap(context.Background(), app.store, app.logger); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
	}

	minter := tokens.NewMinter(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)

	login := &service.LoginService{Store: app.store, Tokens: minter, Logger: app.logger}
	accounts := &service.AccountService{Store: app.store, Tokens: minter, Logger: app.logger}

	app.housekeeping = service.NewHousekeepingService(app.store, app.logger, cfg.HousekeepingInterval)

	app.router = devhttp.NewRouter(login, accounts, app.logger)
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app, nil
}

// Run starts the service and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("dev auth service starting",
		"port", app.cfg.Port,
		"database", app.cfg.DatabaseFile,
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

// Shutdown gracefully stops the HTTP server and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dev auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
	}

	app.logger.Info("dev auth service stopped")
	return nil
}
