// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package oauth signs users in with an external identity provider and links
// the provider identity to a local account.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/token"
)

// Identity is the profile asserted by the identity provider.
type Identity struct {
	Subject       string
	Name          string
	Email         string
	AvatarURL     string
	EmailVerified bool
}

// Provider runs the authorization code flow of an identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Service links provider identities to accounts. A nil provider disables it.
type Service struct {
	repo     *repository.Repository
	provider Provider
	tokens   *token.Service
	ttl      time.Duration
}

func NewService(repo *repository.Repository, provider Provider, tokens *token.Service, ttl time.Duration) *Service {
	return &Service{repo: repo, provider: provider, tokens: tokens, ttl: ttl}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.provider != nil
}

// AuthCodeURL returns the provider's consent page URL.
func (s *Service) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Link finds or creates the account for id. It reports whether the account
// was created. An existing password account is linked by e-mail only when
// the provider asserts the address is verified.
func (s *Service) Link(ctx context.Context, id Identity) (*models.User, bool, error) {
	addr := strings.ToLower(strings.TrimSpace(id.Email))
	if id.Subject == "" || addr == "" {
		return nil, false, apperr.Upstream("Identity provider returned an incomplete profile", nil)
	}

	user, err := s.repo.GetUserByGoogleID(ctx, id.Subject)
	switch {
	case err == nil:
		if user.IsDeleted() {
			return nil, false, apperr.Authorization("This account has been deactivated.")
		}
		if id.AvatarURL != "" && user.AvatarURL != id.AvatarURL {
			user.AvatarURL = id.AvatarURL
			if err := s.repo.UpdateUser(ctx, user); err != nil {
				return nil, false, apperr.Upstream("Failed to update user", err)
			}
		}
		return user, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, apperr.Upstream("Failed to load user", err)
	}

	user, err = s.repo.GetUserByEmail(ctx, addr)
	switch {
	case err == nil:
		if user.IsDeleted() {
			return nil, false, apperr.Authorization("This account has been deactivated.")
		}
		if !id.EmailVerified {
			slog.Warn("oauth_link_refused", "user_id", user.ID, "reason", "email_not_verified")
			return nil, false, apperr.Authorization("Email address is not verified by the identity provider.")
		}
		if user.GoogleID != nil && *user.GoogleID != "" && *user.GoogleID != id.Subject {
			slog.Warn("oauth_link_refused", "user_id", user.ID, "reason", "linked_to_other_subject")
			return nil, false, apperr.Authorization("This account is linked to a different Google account.")
		}
		subject := id.Subject
		user.GoogleID = &subject
		user.IsVerified = true
		if id.AvatarURL != "" {
			user.AvatarURL = id.AvatarURL
		}
		if err := s.repo.UpdateUser(ctx, user); err != nil {
			return nil, false, apperr.Upstream("Failed to link account", err)
		}
		slog.Info("oauth_account_linked", "user_id", user.ID)
		return user, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, apperr.Upstream("Failed to load user", err)
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(addr, "@")
	}
	subject := id.Subject
	user = &models.User{
		Name:       name,
		Email:      addr,
		GoogleID:   &subject,
		AvatarURL:  id.AvatarURL,
		Role:       models.RoleUser,
		IsVerified: true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, false, apperr.Upstream("Failed to create user", err)
	}

	slog.Info("oauth_account_created", "user_id", user.ID)
	return user, true, nil
}

// CallbackUser is the user part of the callback payload.
type CallbackUser struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Picture   string      `json:"picture"`
	GoogleID  string      `json:"googleId"`
	Provider  string      `json:"provider"`
	Role      models.Role `json:"role"`
	IsNewUser bool        `json:"isNewUser"`
}

// CallbackPayload is handed to the front end after a successful login.
type CallbackPayload struct {
	Login bool         `json:"login"`
	User  CallbackUser `json:"user"`
	Token string       `json:"token"`
}

// Complete exchanges code, links the identity and issues a token.
func (s *Service) Complete(ctx context.Context, code string) (*CallbackPayload, error) {
	if code == "" {
		return nil, apperr.Validation("Missing authorization code")
	}

	id, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Upstream("Identity provider exchange failed", err)
	}

	user, created, err := s.Link(ctx, *id)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(user, s.ttl)
	if err != nil {
		if errors.Is(err, token.ErrNoSecret) {
			return nil, apperr.Configuration("Server configuration error.")
		}
		return nil, apperr.Upstream("Failed to issue token", err)
	}

	var googleID string
	if user.GoogleID != nil {
		googleID = *user.GoogleID
	}

	slog.Info("oauth_login_success", "user_id", user.ID, "new_user", created)
	return &CallbackPayload{
		Login: true,
		User: CallbackUser{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Picture:   user.AvatarURL,
			GoogleID:  googleID,
			Provider:  "google",
			Role:      user.Role,
			IsNewUser: created,
		},
		Token: tok,
	}, nil
}

// RedirectURL returns the front end callback URL carrying the payload.
func (p *CallbackPayload) RedirectURL(clientURL string) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(clientURL, "/") + "/auth/callback?auth=" + url.QueryEscape(string(data)), nil
}

// FailureURL returns the front end login URL for a failed sign-in.
func FailureURL(clientURL string) string {
	return strings.TrimSuffix(clientURL, "/") + "/login?error=authentication_failed"
}
