// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	TLS       TLSConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Google    GoogleConfig
	Session   SessionConfig
	Storage   StorageConfig
	SMTP      SMTPConfig
	Campaigns CampaignsConfig
	Uploads   UploadsConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, selfsigned, manual, off
	CertDir  string // Directory for auto-generated certificates
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// AuthConfig controls bearer token issuance.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	JWTSecret   string
	JWTIssuer   string
	LoginExpiry time.Duration
	OAuthExpiry time.Duration
	ClientURL   string // Front end origin used for OAuth redirects
}

type CORSConfig struct {
	AllowedOrigins []string
}

// GoogleConfig holds the OAuth client registration. Login with Google is
// disabled unless client id and secret are set.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // OAuth state cookie name
	MaxAge     int    // State cookie max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// StorageConfig points at an S3-compatible bucket for uploaded images.
type StorageConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicURL    string // Base URL objects are served from
	UsePathStyle bool
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      string // none, starttls, tls
}

type CampaignsConfig struct {
	RecomputeOnList bool
}

type UploadsConfig struct {
	MaxImageSize int64 // in bytes
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// StorageEnabled reports whether image uploads have a bucket to go to.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

// SMTPEnabled reports whether outgoing mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Auth: AuthConfig{
			JWTSecret:   cmd.String("jwt-secret"),
			JWTIssuer:   cmd.String("jwt-issuer"),
			LoginExpiry: cmd.Duration("jwt-login-expiry"),
			OAuthExpiry: cmd.Duration("jwt-oauth-expiry"),
			ClientURL:   strings.TrimRight(cmd.String("client-url"), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins: cmd.StringSlice("cors-allowed-origins"),
		},
		Google: GoogleConfig{
			ClientID:     cmd.String("google-client-id"),
			ClientSecret: cmd.String("google-client-secret"),
			RedirectURL:  cmd.String("google-redirect-url"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Storage: StorageConfig{
			Endpoint:     cmd.String("storage-endpoint"),
			Region:       cmd.String("storage-region"),
			Bucket:       cmd.String("storage-bucket"),
			AccessKey:    cmd.String("storage-access-key"),
			SecretKey:    cmd.String("storage-secret-key"),
			PublicURL:    cmd.String("storage-public-url"),
			UsePathStyle: cmd.Bool("storage-use-path-style"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.String("smtp-tls"),
		},
		Campaigns: CampaignsConfig{
			RecomputeOnList: cmd.Bool("recompute-on-list"),
		},
		Uploads: UploadsConfig{
			MaxImageSize: int64(cmd.Int("max-image-size")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyDefaults(cfg)

	return cfg
}

// applyDefaults fills settings derived from the resolved BaseURL.
func applyDefaults(cfg *Config) {
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = strings.TrimRight(cfg.Server.BaseURL, "/") + "/api/auth/google/callback"
	}
	if cfg.Auth.ClientURL == "" {
		cfg.Auth.ClientURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{cfg.Auth.ClientURL}
	}
	if cfg.Auth.JWTIssuer == "" {
		cfg.Auth.JWTIssuer = cfg.Server.BaseURL
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	// Determine if TLS will be used
	useTLS := shouldUseTLS(mode, host)

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "selfsigned", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   6,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/donations.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, selfsigned, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign bearer tokens",
			Sources: source("JWT_SECRET", "auth.jwt_secret"),
		},
		&cli.StringFlag{
			Name:    "jwt-issuer",
			Usage:   "Issuer claim of bearer tokens (defaults to base_url)",
			Sources: source("JWT_ISSUER", "auth.jwt_issuer"),
		},
		&cli.DurationFlag{
			Name:    "jwt-login-expiry",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of tokens issued at signup and password login",
			Sources: source("JWT_LOGIN_EXPIRY", "auth.login_expiry"),
		},
		&cli.DurationFlag{
			Name:    "jwt-oauth-expiry",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of tokens issued after Google sign-in",
			Sources: source("JWT_OAUTH_EXPIRY", "auth.oauth_expiry"),
		},
		&cli.StringFlag{
			Name:    "client-url",
			Usage:   "Front end URL for OAuth redirects (defaults to base_url)",
			Sources: source("CLIENT_URL", "auth.client_url"),
		},
		&cli.StringSliceFlag{
			Name:    "cors-allowed-origins",
			Usage:   "Origins allowed to call the API (defaults to client_url)",
			Sources: source("CORS_ALLOWED_ORIGINS", "cors.allowed_origins"),
		},
		// Google flags
		&cli.StringFlag{
			Name:    "google-client-id",
			Usage:   "Google OAuth client ID",
			Sources: source("GOOGLE_CLIENT_ID", "google.client_id"),
		},
		&cli.StringFlag{
			Name:    "google-client-secret",
			Usage:   "Google OAuth client secret",
			Sources: source("GOOGLE_CLIENT_SECRET", "google.client_secret"),
		},
		&cli.StringFlag{
			Name:    "google-redirect-url",
			Usage:   "Google OAuth redirect URL (defaults to base_url + /api/auth/google/callback)",
			Sources: source("GOOGLE_REDIRECT_URL", "google.redirect_url"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_oauth_state",
			Usage:   "OAuth state cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   600, // 10 minutes in seconds
			Usage:   "OAuth state cookie max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Cookie hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Cookie block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// Storage flags
		&cli.StringFlag{
			Name:    "storage-endpoint",
			Usage:   "S3-compatible endpoint URL (empty for AWS)",
			Sources: source("STORAGE_ENDPOINT", "storage.endpoint"),
		},
		&cli.StringFlag{
			Name:    "storage-region",
			Value:   "us-east-1",
			Usage:   "Storage region",
			Sources: source("STORAGE_REGION", "storage.region"),
		},
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "Bucket for uploaded images (uploads disabled if empty)",
			Sources: source("STORAGE_BUCKET", "storage.bucket"),
		},
		&cli.StringFlag{
			Name:    "storage-access-key",
			Usage:   "Storage access key",
			Sources: source("STORAGE_ACCESS_KEY", "storage.access_key"),
		},
		&cli.StringFlag{
			Name:    "storage-secret-key",
			Usage:   "Storage secret key",
			Sources: source("STORAGE_SECRET_KEY", "storage.secret_key"),
		},
		&cli.StringFlag{
			Name:    "storage-public-url",
			Usage:   "Public base URL of the bucket",
			Sources: source("STORAGE_PUBLIC_URL", "storage.public_url"),
		},
		&cli.BoolFlag{
			Name:    "storage-use-path-style",
			Usage:   "Use path-style bucket addressing (MinIO, Garage)",
			Sources: source("STORAGE_USE_PATH_STYLE", "storage.use_path_style"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail is logged if empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Donations",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.StringFlag{
			Name:    "smtp-tls",
			Value:   "starttls",
			Usage:   "SMTP TLS policy (none, starttls, tls)",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Domain flags
		&cli.BoolFlag{
			Name:    "recompute-on-list",
			Value:   true,
			Usage:   "Recompute collected totals from donations whenever campaigns are listed",
			Sources: source("RECOMPUTE_ON_LIST", "campaigns.recompute_on_list"),
		},
		&cli.IntFlag{
			Name:    "max-image-size",
			Value:   5 << 20,
			Usage:   "Maximum size of uploaded images in bytes",
			Sources: source("MAX_IMAGE_SIZE", "uploads.max_image_size"),
		},
	}
}
