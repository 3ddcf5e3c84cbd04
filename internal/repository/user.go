// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/donations/internal/models"
)

const userColumns = `id, name, email, password_hash, role, google_id, avatar_url, phone,
	is_verified, verification_token_hash, verification_expires_at, reset_token_hash,
	reset_expires_at, deleted_at, created_at, updated_at`

// CreateUser inserts user and fills in its ID and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := r.now()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	id, err := r.insert(ctx,
		`INSERT INTO users (name, email, password_hash, role, google_id, avatar_url, phone,
			is_verified, verification_token_hash, verification_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, user.Role, user.GoogleID, user.AvatarURL, user.Phone,
		user.IsVerified, user.VerificationTokenHash, user.VerificationExpiresAt, now, now)
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID, including soft-deleted accounts.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetActiveUserByID retrieves a user that has not been soft-deleted.
func (r *Repository) GetActiveUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by e-mail, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, email)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByGoogleID retrieves the user linked to a Google subject.
func (r *Repository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	if err := r.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByVerificationToken retrieves the user holding a verification token hash.
func (r *Repository) GetUserByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE verification_token_hash = ? AND deleted_at IS NULL`, tokenHash)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByResetToken retrieves the user holding a password reset token hash.
func (r *Repository) GetUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE reset_token_hash = ? AND deleted_at IS NULL`, tokenHash)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTaken reports whether another account than excludeID uses email.
func (r *Repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.get(ctx, &count,
		`SELECT count(*) FROM users WHERE lower(email) = lower(?) AND id != ?`, email, excludeID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUser writes every mutable column of user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	now := r.now()
	err := r.execOne(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, google_id = ?,
			avatar_url = ?, phone = ?, is_verified = ?, verification_token_hash = ?,
			verification_expires_at = ?, reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, user.Role, user.GoogleID,
		user.AvatarURL, user.Phone, user.IsVerified, user.VerificationTokenHash,
		user.VerificationExpiresAt, user.ResetTokenHash, user.ResetExpiresAt, now,
		user.ID)
	if err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

// ListUsers returns all active accounts, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.selectAll(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SoftDeleteUser marks an active account as deleted.
func (r *Repository) SoftDeleteUser(ctx context.Context, id int64) error {
	now := r.now()
	return r.execOne(ctx,
		`UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
}

// DeleteUser removes the account row.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// CountAdmins returns the number of active admin accounts.
func (r *Repository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.get(ctx, &count,
		`SELECT count(*) FROM users WHERE role = ? AND deleted_at IS NULL`, models.RoleAdmin)
	return count, err
}

// Now returns the repository clock's current time.
func (r *Repository) Now() time.Time {
	return r.now()
}
