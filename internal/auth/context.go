// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the authenticated caller through a request.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/models"
)

type identityKey struct{}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Name  string      `json:"name"`
}

// IdentityFromUser builds the identity of a loaded account.
func IdentityFromUser(u *models.User) *Identity {
	return &Identity{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the authenticated caller, or nil.
func FromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated caller.
func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx) != nil
}

// RequireRole returns an authentication error for a nil identity and an
// authorization error when the role does not match. Admins pass every check.
func RequireRole(id *Identity, role models.Role) error {
	if id == nil {
		return apperr.Authentication("Authentication required.")
	}
	if id.Role != role && id.Role != models.RoleAdmin {
		return apperr.Authorization("Access denied. " + roleLabel(role) + " only.")
	}
	return nil
}

func roleLabel(r models.Role) string {
	if r == models.RoleAdmin {
		return "Admin"
	}
	return "User"
}
