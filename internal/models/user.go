// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Role is the coarse authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a donor or administrator account.
//
// An account has a password hash, a Google subject id, or both.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                    int64      `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          *string    `db:"password_hash" json:"-"`
	Role                  Role       `db:"role" json:"role"`
	GoogleID              *string    `db:"google_id" json:"googleId,omitempty"`
	AvatarURL             string     `db:"avatar_url" json:"picture,omitempty"`
	Phone                 string     `db:"phone" json:"phone,omitempty"`
	IsVerified            bool       `db:"is_verified" json:"isVerified"`
	VerificationTokenHash *string    `db:"verification_token_hash" json:"-"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at" json:"-"`
	ResetTokenHash        *string    `db:"reset_token_hash" json:"-"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at" json:"-"`
	DeletedAt             *time.Time `db:"deleted_at" json:"-"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Provider returns "google" for provider-linked accounts and "local" otherwise.
func (u *User) Provider() string {
	if u.GoogleID != nil && *u.GoogleID != "" {
		return "google"
	}
	return "local"
}

// IsDeleted reports whether the account was soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserSummary is the minimal donor identity joined onto donations and receipts.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
