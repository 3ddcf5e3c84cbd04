// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth manages password accounts: signup, login, profile changes,
// e-mail verification, password resets and account removal.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/email"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Session is an account together with a freshly issued bearer token.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type Service struct {
	repo              *repository.Repository
	tokens            *token.Service
	mailer            email.Mailer
	config            *config.AuthConfig
	passwordValidator *PasswordValidator
	cost              int
}

func NewService(repo *repository.Repository, tokens *token.Service, mailer email.Mailer, cfg *config.AuthConfig) *Service {
	return &Service{
		repo:              repo,
		tokens:            tokens,
		mailer:            mailer,
		config:            cfg,
		passwordValidator: DefaultPasswordValidator(),
		cost:              bcrypt.DefaultCost,
	}
}

// SetHashCost changes the bcrypt cost of new password hashes.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

// PasswordValidator returns the password validator for use in handlers
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.passwordValidator
}

// SignupParams holds the parameters for a password signup.
type SignupParams struct {
	Name     string
	Email    string
	Password string
}

// Signup creates an unverified password account, mails a verification link
// and logs the new user in.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*Session, error) {
	name := strings.TrimSpace(params.Name)
	addr := normalizeEmail(params.Email)
	if name == "" || addr == "" || params.Password == "" {
		return nil, apperr.Validation("Name, email and password are required")
	}
	if !validEmail(addr) {
		return nil, apperr.Validation("Invalid email format")
	}
	if result := s.passwordValidator.Validate(params.Password, addr, name); !result.Valid {
		return nil, apperr.Validation(result.FirstMessage())
	}

	_, err := s.repo.GetUserByEmail(ctx, addr)
	if err == nil {
		return nil, apperr.Validation("User already exists with this email")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Upstream("Failed to check existing user", err)
	}

	hash, err := s.hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	plain, tokenHash, expiresAt, err := email.GenerateToken(email.VerificationExpiry)
	if err != nil {
		return nil, apperr.Upstream("Failed to create verification token", err)
	}

	user := &models.User{
		Name:                  name,
		Email:                 addr,
		PasswordHash:          &hash,
		Role:                  models.RoleUser,
		VerificationTokenHash: &tokenHash,
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Validation("User already exists with this email")
		}
		return nil, apperr.Upstream("Failed to create user", err)
	}

	slog.Info("signup_success", "user_id", user.ID, "email", addr)
	s.sendVerification(ctx, user, plain)

	return s.session(user, s.config.LoginExpiry)
}

// Login authenticates a password account and issues a token.
func (s *Service) Login(ctx context.Context, addr, password string) (*Session, error) {
	addr = normalizeEmail(addr)
	if addr == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", addr, "reason", "user_not_found")
			return nil, apperr.Authentication("Invalid credentials")
		}
		return nil, apperr.Upstream("Failed to load user", err)
	}

	if user.IsDeleted() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.Warn("login_failed", "email", addr, "reason", "account_deactivated")
		return nil, apperr.Authentication("Invalid credentials")
	}

	if !user.HasPassword() {
		slog.Warn("login_failed", "email", addr, "reason", "provider_only")
		return nil, apperr.Authentication("This account uses Google sign-in. Please log in with Google.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", addr, "reason", "invalid_password")
		return nil, apperr.Authentication("Invalid credentials")
	}

	slog.Info("login_success", "user_id", user.ID, "email", addr)
	return s.session(user, s.config.LoginExpiry)
}

// Me returns the active account with the given ID.
func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.activeUser(ctx, userID)
}

// ProfileParams holds the editable profile fields.
type ProfileParams struct {
	Name  string
	Email string
	Phone string
}

// UpdateProfile changes name, e-mail and phone. A new e-mail address has to
// be verified again.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, params ProfileParams) (*models.User, error) {
	name := strings.TrimSpace(params.Name)
	addr := normalizeEmail(params.Email)
	if name == "" || addr == "" {
		return nil, apperr.Validation("Name and email are required")
	}
	if !validEmail(addr) {
		return nil, apperr.Validation("Invalid email format")
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailTaken(ctx, addr, user.ID)
	if err != nil {
		return nil, apperr.Upstream("Failed to check email", err)
	}
	if taken {
		return nil, apperr.Validation("Email is already taken by another user")
	}

	var plain string
	emailChanged := !strings.EqualFold(user.Email, addr)
	if emailChanged {
		var tokenHash string
		var expiresAt time.Time
		plain, tokenHash, expiresAt, err = email.GenerateToken(email.VerificationExpiry)
		if err != nil {
			return nil, apperr.Upstream("Failed to create verification token", err)
		}
		user.IsVerified = false
		user.VerificationTokenHash = &tokenHash
		user.VerificationExpiresAt = &expiresAt
	}

	user.Name = name
	user.Email = addr
	user.Phone = strings.TrimSpace(params.Phone)

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Validation("Email is already taken by another user")
		}
		return nil, apperr.Upstream("Failed to update profile", err)
	}

	slog.Info("profile_updated", "user_id", user.ID, "email_changed", emailChanged)
	if emailChanged {
		s.sendVerification(ctx, user, plain)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
// Provider-only accounts may set a first password without one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}

	if newPassword == "" || (user.HasPassword() && currentPassword == "") {
		return apperr.Validation("Current password and new password are required")
	}

	if result := s.passwordValidator.Validate(newPassword, user.Email, user.Name); !result.Valid {
		msg := result.FirstMessage()
		if result.Errors[0].Code == "min_length" {
			msg = "New " + lowerFirst(msg)
		}
		return apperr.Validation(msg)
	}

	if user.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)); err != nil {
			slog.Warn("password_change_failed", "user_id", user.ID, "reason", "invalid_password")
			return apperr.Validation("Current password is incorrect")
		}
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return apperr.Upstream("Failed to update password", err)
	}

	slog.Info("password_changed", "user_id", user.ID)
	return nil
}

// UpdateAvatar stores the URL of an uploaded profile picture.
func (s *Service) UpdateAvatar(ctx context.Context, userID int64, url string) (*models.User, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = url
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, apperr.Upstream("Failed to update profile picture", err)
	}
	return user, nil
}

// DeleteAccount removes the account. The user's donations are kept with
// their denormalized donor name and e-mail.
func (s *Service) DeleteAccount(ctx context.Context, userID int64) error {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return err
	}

	var severed int64
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		n, err := tx.SeverDonor(ctx, userID, tx.Now())
		if err != nil {
			return err
		}
		severed = n
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Upstream("Failed to delete account", err)
	}

	slog.Info("account_deleted", "user_id", userID, "donations_kept", severed)
	return nil
}

// Verify marks the account holding token as verified.
func (s *Service) Verify(ctx context.Context, plain string) (*models.User, error) {
	if plain == "" {
		return nil, apperr.Validation("Invalid or expired verification link")
	}

	user, err := s.repo.GetUserByVerificationToken(ctx, email.HashToken(plain))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation("Invalid or expired verification link")
		}
		return nil, apperr.Upstream("Failed to load verification token", err)
	}
	if user.VerificationExpiresAt == nil || s.repo.Now().After(*user.VerificationExpiresAt) {
		return nil, apperr.Validation("Invalid or expired verification link")
	}

	user.IsVerified = true
	user.VerificationTokenHash = nil
	user.VerificationExpiresAt = nil
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, apperr.Upstream("Failed to verify email", err)
	}

	slog.Info("email_verified", "user_id", user.ID)
	return user, nil
}

// ResendVerification mails a new verification link. Unknown addresses are
// not reported.
func (s *Service) ResendVerification(ctx context.Context, addr string) error {
	addr = normalizeEmail(addr)
	if addr == "" {
		return apperr.Validation("Email is required")
	}

	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperr.Upstream("Failed to load user", err)
	}
	if user.IsDeleted() {
		return nil
	}
	if user.IsVerified {
		return apperr.Validation("Email is already verified")
	}

	plain, tokenHash, expiresAt, err := email.GenerateToken(email.VerificationExpiry)
	if err != nil {
		return apperr.Upstream("Failed to create verification token", err)
	}
	user.VerificationTokenHash = &tokenHash
	user.VerificationExpiresAt = &expiresAt
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return apperr.Upstream("Failed to store verification token", err)
	}

	s.sendVerification(ctx, user, plain)
	return nil
}

// ForgotPassword mails a password reset link. Unknown addresses are not
// reported.
func (s *Service) ForgotPassword(ctx context.Context, addr string) error {
	addr = normalizeEmail(addr)
	if addr == "" {
		return apperr.Validation("Email is required")
	}

	user, err := s.repo.GetUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("password_reset_unknown_email", "email", addr)
			return nil
		}
		return apperr.Upstream("Failed to load user", err)
	}
	if user.IsDeleted() {
		return nil
	}

	plain, tokenHash, expiresAt, err := email.GenerateToken(email.ResetExpiry)
	if err != nil {
		return apperr.Upstream("Failed to create reset token", err)
	}
	user.ResetTokenHash = &tokenHash
	user.ResetExpiresAt = &expiresAt
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return apperr.Upstream("Failed to store reset token", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, plain); err != nil {
		slog.Error("password_reset_mail_failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password for the account holding token.
func (s *Service) ResetPassword(ctx context.Context, plain, password string) error {
	if plain == "" {
		return apperr.Validation("Invalid or expired reset link")
	}
	if password == "" {
		return apperr.Validation("Password is required")
	}

	user, err := s.repo.GetUserByResetToken(ctx, email.HashToken(plain))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation("Invalid or expired reset link")
		}
		return apperr.Upstream("Failed to load reset token", err)
	}
	if user.ResetExpiresAt == nil || s.repo.Now().After(*user.ResetExpiresAt) {
		return apperr.Validation("Invalid or expired reset link")
	}

	if result := s.passwordValidator.Validate(password, user.Email, user.Name); !result.Valid {
		return apperr.Validation(result.FirstMessage())
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash
	user.ResetTokenHash = nil
	user.ResetExpiresAt = nil
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return apperr.Upstream("Failed to reset password", err)
	}

	slog.Info("password_reset", "user_id", user.ID)
	return nil
}

// ListUsers returns all active accounts.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to list users", err)
	}
	return users, nil
}

// Deactivate soft-deletes an account. The account can no longer log in but
// its rows are kept.
func (s *Service) Deactivate(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return apperr.Validation("You cannot deactivate your own account")
	}
	if err := s.repo.SoftDeleteUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Upstream("Failed to deactivate user", err)
	}
	slog.Info("user_deactivated", "user_id", userID, "by", actorID)
	return nil
}

// EnsureAdmin ensures at least one admin exists, creating one if needed.
// An existing account with the given e-mail is promoted instead. It returns
// nil when an admin already exists.
func (s *Service) EnsureAdmin(ctx context.Context, name, addr, password string) (*models.User, error) {
	count, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to count admins", err)
	}
	if count > 0 {
		return nil, nil
	}

	addr = normalizeEmail(addr)
	existing, err := s.repo.GetUserByEmail(ctx, addr)
	if err == nil {
		existing.Role = models.RoleAdmin
		if err := s.repo.UpdateUser(ctx, existing); err != nil {
			return nil, apperr.Upstream("Failed to promote admin", err)
		}
		slog.Info("admin_promoted", "user_id", existing.ID, "email", addr)
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Upstream("Failed to load user", err)
	}

	if result := s.passwordValidator.Validate(password); !result.Valid {
		return nil, apperr.Validation(result.FirstMessage())
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        addr,
		PasswordHash: &hash,
		Role:         models.RoleAdmin,
		IsVerified:   true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, apperr.Upstream("Failed to create admin", err)
	}

	slog.Info("admin_created", "user_id", user.ID, "email", addr)
	return user, nil
}

func (s *Service) activeUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetActiveUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Upstream("Failed to load user", err)
	}
	return user, nil
}

func (s *Service) session(user *models.User, ttl time.Duration) (*Session, error) {
	tok, err := s.tokens.Issue(user, ttl)
	if err != nil {
		if errors.Is(err, token.ErrNoSecret) {
			return nil, apperr.Configuration("Server configuration error.")
		}
		return nil, apperr.Upstream("Failed to issue token", err)
	}
	return &Session{User: user, Token: tok}, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperr.Upstream("Failed to hash password", err)
	}
	return string(hash), nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User, plain string) {
	if err := s.mailer.SendVerification(ctx, user.Email, user.Name, plain); err != nil {
		slog.Error("verification_mail_failed", "user_id", user.ID, "error", err)
	}
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
