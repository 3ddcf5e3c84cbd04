// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON endpoints of the donation API.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	authctx "codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/services/auth"
	"codeberg.org/oliverandrich/donations/internal/services/campaigns"
	"codeberg.org/oliverandrich/donations/internal/services/donations"
	"codeberg.org/oliverandrich/donations/internal/services/media"
	"codeberg.org/oliverandrich/donations/internal/services/oauth"
	"codeberg.org/oliverandrich/donations/internal/services/receipts"
	"codeberg.org/oliverandrich/donations/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Services are the collaborators of the handlers. OAuth and Sessions may be
// nil when Google sign-in is not configured.
type Services struct {
	Auth      *auth.Service
	OAuth     *oauth.Service
	Sessions  *session.Manager
	Campaigns *campaigns.Service
	Donations *donations.Service
	Receipts  *receipts.Service
	Media     *media.Service
	ClientURL string
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	auth      *auth.Service
	oauth     *oauth.Service
	sessions  *session.Manager
	campaigns *campaigns.Service
	donations *donations.Service
	receipts  *receipts.Service
	media     *media.Service
	clientURL string
}

// New creates a new Handlers instance.
func New(s Services) *Handlers {
	return &Handlers{
		auth:      s.Auth,
		oauth:     s.OAuth,
		sessions:  s.Sessions,
		campaigns: s.Campaigns,
		donations: s.Donations,
		receipts:  s.Receipts,
		media:     s.Media,
		clientURL: s.ClientURL,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// caller returns the authenticated identity of the request, or nil.
func caller(c echo.Context) *authctx.Identity {
	return authctx.FromContext(c.Request().Context())
}

// requireCaller returns the authenticated identity or a 401 error.
func requireCaller(c echo.Context) (*authctx.Identity, error) {
	id := caller(c)
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	return id, nil
}
