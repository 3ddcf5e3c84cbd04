// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/services/oauth"
	"github.com/labstack/echo/v4"
)

// GoogleLogin sets the state cookie and redirects to the consent page.
func (h *Handlers) GoogleLogin(c echo.Context) error {
	if !h.oauth.Enabled() || h.sessions == nil {
		return apperr.NotFound("Google sign-in is not configured.")
	}

	state, cookie, err := h.sessions.Create()
	if err != nil {
		return apperr.Upstream("Failed to start Google sign-in", err)
	}
	c.SetCookie(cookie)
	return c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// GoogleCallback completes the sign-in and hands the token to the front end.
// Every failure redirects to the front end login page.
func (h *Handlers) GoogleCallback(c echo.Context) error {
	if !h.oauth.Enabled() || h.sessions == nil {
		return apperr.NotFound("Google sign-in is not configured.")
	}

	r := c.Request()
	validState := h.sessions.Verify(r, c.QueryParam("state"))
	c.SetCookie(h.sessions.Clear())

	fail := func(reason string, err error) error {
		slog.Warn("oauth_login_failed", "reason", reason, "error", err)
		return c.Redirect(http.StatusFound, oauth.FailureURL(h.clientURL))
	}

	if !validState {
		return fail("state_mismatch", nil)
	}
	if providerErr := c.QueryParam("error"); providerErr != "" {
		return fail("provider_error", apperr.Authentication(providerErr))
	}

	payload, err := h.oauth.Complete(r.Context(), c.QueryParam("code"))
	if err != nil {
		return fail("complete", err)
	}
	target, err := payload.RedirectURL(h.clientURL)
	if err != nil {
		return fail("encode_payload", err)
	}
	return c.Redirect(http.StatusFound, target)
}
