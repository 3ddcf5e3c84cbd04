// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends account mail and manages the one-time tokens it
// carries.
package email

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/i18n"
	"github.com/wneessen/go-mail"
)

const (
	// TokenLength is the number of random bytes for one-time tokens.
	TokenLength = 32
	// VerificationExpiry is how long e-mail verification tokens are valid.
	VerificationExpiry = 24 * time.Hour
	// ResetExpiry is how long password reset tokens are valid.
	ResetExpiry = time.Hour
)

// Mailer delivers account mail.
type Mailer interface {
	SendVerification(ctx context.Context, toEmail, name, token string) error
	SendPasswordReset(ctx context.Context, toEmail, name, token string) error
}

// Links builds the URLs embedded in account mail.
type Links struct {
	BaseURL   string // API origin, serves the verification endpoint
	ClientURL string // Front end origin, serves the reset form
}

// VerifyURL returns the link that verifies an e-mail address.
func (l Links) VerifyURL(token string) string {
	return strings.TrimSuffix(l.BaseURL, "/") + "/api/users/verify/" + url.PathEscape(token)
}

// ResetURL returns the link to the password reset form.
func (l Links) ResetURL(token string) string {
	return strings.TrimSuffix(l.ClientURL, "/") + "/reset-password/" + url.PathEscape(token)
}

// Service sends mail via SMTP.
type Service struct {
	cfg   *config.SMTPConfig
	links Links
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, links Links) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{cfg: cfg, links: links}, nil
}

// GenerateToken generates a new one-time token valid for ttl.
// Returns (plaintext token, SHA256 hash for storage, expiry time, error).
func GenerateToken(ttl time.Duration) (string, string, time.Time, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext := hex.EncodeToString(bytes)
	hash := HashToken(plaintext)
	expiresAt := time.Now().UTC().Add(ttl)

	return plaintext, hash, expiresAt, nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// SendVerification sends a verification email with the given token.
func (s *Service) SendVerification(ctx context.Context, toEmail, name, token string) error {
	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      name,
		"VerifyURL": s.links.VerifyURL(token),
	})

	return s.send(toEmail, subject, body)
}

// SendPasswordReset sends a password reset email with the given token.
func (s *Service) SendPasswordReset(ctx context.Context, toEmail, name, token string) error {
	subject := i18n.T(ctx, "password_reset_subject")
	body := i18n.TData(ctx, "password_reset_body", map[string]any{
		"Name":     name,
		"ResetURL": s.links.ResetURL(token),
	})

	return s.send(toEmail, subject, body)
}

// buildMessage assembles the message for an account mail.
func (s *Service) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// clientOptions maps the SMTP settings to go-mail client options.
func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	switch strings.ToLower(s.cfg.TLS) {
	case "none", "off":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "tls", "ssl":
		opts = append(opts, mail.WithSSL(), mail.WithTLSPolicy(mail.TLSMandatory))
	default: // starttls
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS on the submissions port
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(to, subject, body string) error {
	msg, err := s.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// LogMailer writes account mail to the log instead of sending it. It is used
// when no SMTP server is configured.
type LogMailer struct {
	Links Links
}

func (m LogMailer) SendVerification(_ context.Context, toEmail, _, token string) error {
	slog.Info("verification_mail_logged", "to", toEmail, "url", m.Links.VerifyURL(token))
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, toEmail, _, token string) error {
	slog.Info("password_reset_mail_logged", "to", toEmail, "url", m.Links.ResetURL(token))
	return nil
}
