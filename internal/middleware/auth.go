// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the echo middleware that resolves and checks the
// caller of a request.
package middleware

import (
	"context"
	"errors"
	"strings"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"github.com/labstack/echo/v4"
)

// UserLoader loads the account behind a token subject.
type UserLoader interface {
	GetActiveUserByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// Authenticate requires a valid bearer token for an active account and puts
// the caller into the request context.
func Authenticate(tokens TokenParser, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrNoSecret):
					return apperr.Configuration("Server configuration error.")
				case errors.Is(err, token.ErrExpiredToken):
					return apperr.Authentication("Token expired.")
				default:
					return apperr.Authentication("Invalid token.")
				}
			}

			ctx := c.Request().Context()
			user, err := users.GetActiveUserByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.Authentication("Invalid token (user not found).")
				}
				return apperr.Upstream("Authentication error.", err)
			}

			c.SetRequest(c.Request().WithContext(auth.WithIdentity(ctx, auth.IdentityFromUser(user))))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Authentication("Access denied. No token provided.")
	}
	scheme, value, ok := strings.Cut(header, " ")
	value = strings.TrimSpace(value)
	if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" || value == "null" || value == "undefined" {
		return "", apperr.Authentication("Access denied. Token format invalid.")
	}
	return value, nil
}

// RequireRole rejects callers that do not hold role. It must run after
// Authenticate.
func RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := auth.RequireRole(auth.FromContext(c.Request().Context()), role); err != nil {
				return err
			}
			return next(c)
		}
	}
}
