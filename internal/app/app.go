package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/efleague/admin/internal/account"
	"github.com/efleague/admin/internal/auth"
	"github.com/efleague/admin/internal/config"
	"github.com/efleague/admin/internal/mailer"
	"github.com/efleague/admin/internal/store"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config   *config.Config
	logger   *slog.Logger
	store    store.Store
	accounts *account.Service
}

func (app *App) Close() {
	if err := app.store.Close(); err != nil {
		app.logger.Error("close store", "err", err)
	}
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := auth.SeedAdmin(ctx, st, cfg.AdminEmail, cfg.SeedAdminPassword); err != nil {
		st.Close()
		return nil, err
	}

	m := mailer.New(mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		FromAddress: cfg.SMTPFromEmail,
		FromName:    cfg.SMTPFromName,
	})
	if !m.Configured() {
		logger.Warn("SMTP_HOST not set, password reset links cannot be delivered")
	}

	accounts, err := account.NewService(logger, st, m, account.Config{
		AdminEmail:        cfg.AdminEmail,
		ResetBaseURL:      cfg.ResetBaseURL,
		TokenTTL:          cfg.ResetTokenTTL,
		MinPasswordLength: cfg.MinPasswordLength,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		config:   cfg,
		logger:   logger,
		store:    st,
		accounts: accounts,
	}, nil
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or the listener to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
