// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/database"
	"codeberg.org/oliverandrich/donations/internal/handlers"
	"codeberg.org/oliverandrich/donations/internal/i18n"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/auth"
	"codeberg.org/oliverandrich/donations/internal/services/campaigns"
	"codeberg.org/oliverandrich/donations/internal/services/donations"
	"codeberg.org/oliverandrich/donations/internal/services/email"
	"codeberg.org/oliverandrich/donations/internal/services/media"
	"codeberg.org/oliverandrich/donations/internal/services/oauth"
	"codeberg.org/oliverandrich/donations/internal/services/receipts"
	"codeberg.org/oliverandrich/donations/internal/services/session"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations included
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	e, err := New(ctx, cfg, db)
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(e, cfg)
}

type options struct {
	mailer   email.Mailer
	store    media.Store
	provider oauth.Provider
}

// Option replaces a collaborator that is otherwise built from the
// configuration.
type Option func(*options)

// WithMailer sends account mail through m.
func WithMailer(m email.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithStore stores uploaded images in s.
func WithStore(s media.Store) Option {
	return func(o *options) { o.store = s }
}

// WithProvider enables Google sign-in with p.
func WithProvider(p oauth.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New wires services, middleware and routes on a fresh Echo instance.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB, opts ...Option) (*echo.Echo, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	repo := repository.New(db)
	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("jwt_secret_missing", "hint", "set auth.jwt_secret, token issuance and verification will fail")
	}

	mailer, err := buildMailer(cfg, o.mailer)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg, o.store)
	if err != nil {
		return nil, err
	}
	uploads := media.NewService(store, cfg.Uploads.MaxImageSize)

	provider := o.provider
	if provider == nil && cfg.GoogleEnabled() {
		provider = oauth.NewGoogleProvider(&cfg.Google)
	}
	var sessions *session.Manager
	if provider != nil {
		secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
		sessions, err = session.NewManager(&cfg.Session, secure)
		if err != nil {
			return nil, fmt.Errorf("failed to create session manager: %w", err)
		}
	} else {
		slog.Info("google_signin_disabled")
	}

	campaignSvc := campaigns.NewService(repo, uploads, cfg.Campaigns.RecomputeOnList)
	h := handlers.New(handlers.Services{
		Auth:      auth.NewService(repo, tokens, mailer, &cfg.Auth),
		OAuth:     oauth.NewService(repo, provider, tokens, cfg.Auth.OAuthExpiry),
		Sessions:  sessions,
		Campaigns: campaignSvc,
		Donations: donations.NewService(repo, campaignSvc),
		Receipts:  receipts.NewService(repo),
		Media:     uploads,
		ClientURL: cfg.Auth.ClientURL,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, &routerDeps{h: h, tokens: tokens, repo: repo})

	return e, nil
}

func buildMailer(cfg *config.Config, override email.Mailer) (email.Mailer, error) {
	if override != nil {
		return override, nil
	}
	links := email.Links{BaseURL: cfg.Server.BaseURL, ClientURL: cfg.Auth.ClientURL}
	if !cfg.SMTPEnabled() {
		slog.Warn("smtp_disabled", "hint", "account mail is written to the log")
		return email.LogMailer{Links: links}, nil
	}
	svc, err := email.NewService(&cfg.SMTP, links)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}
	return svc, nil
}

func buildStore(ctx context.Context, cfg *config.Config, override media.Store) (media.Store, error) {
	if override != nil {
		return override, nil
	}
	if !cfg.StorageEnabled() {
		slog.Warn("uploads_disabled", "hint", "set storage.bucket to accept images")
		return nil, nil
	}
	store, err := media.NewS3Store(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create media store: %w", err)
	}
	return store, nil
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	// Setup TLS
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP→HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeSelfSigned, TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
