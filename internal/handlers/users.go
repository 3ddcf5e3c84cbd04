// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/services/auth"
	"codeberg.org/oliverandrich/donations/internal/services/media"
	"github.com/labstack/echo/v4"
)

// userView is the public shape of an account.
type userView struct {
	*models.User
	Provider string `json:"provider"`
}

func viewUser(u *models.User) *userView {
	return &userView{User: u, Provider: u.Provider()}
}

type sessionResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    *userView `json:"user"`
	Token   string    `json:"token"`
}

type userResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	User    *userView `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type signupRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

// Signup creates a password account.
func (h *Handlers) Signup(c echo.Context) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.Signup(c.Request().Context(), auth.SignupParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		Success: true,
		Message: "User created successfully",
		User:    viewUser(sess.User),
		Token:   sess.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

// Login authenticates with e-mail and password.
func (h *Handlers) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sessionResponse{
		Success: true,
		Message: "Login successful",
		User:    viewUser(sess.User),
		Token:   sess.Token,
	})
}

// Me returns the caller's account.
func (h *Handlers) Me(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}

	user, err := h.auth.Me(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, User: viewUser(user)})
}

type profileRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"max=254"`
	Phone string `json:"phone" validate:"max=32"`
}

// UpdateProfile changes name, e-mail and phone of the caller.
func (h *Handlers) UpdateProfile(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.Request().Context(), id.ID, auth.ProfileParams{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{
		Success: true,
		Message: "Profile updated successfully",
		User:    viewUser(user),
	})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"max=72"`
	NewPassword     string `json:"newPassword" validate:"max=72"`
}

// ChangePassword replaces the caller's password.
func (h *Handlers) ChangePassword(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.Request().Context(), id.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password updated successfully"})
}

// UpdateProfilePicture uploads the multipart field "image" as the caller's
// avatar.
func (h *Handlers) UpdateProfilePicture(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return apperr.Validation("No image uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("No image uploaded")
	}
	defer f.Close()

	ctx := c.Request().Context()
	url, err := h.media.UploadImage(ctx, media.FolderAvatars, f)
	if err != nil {
		return err
	}
	user, err := h.auth.UpdateAvatar(ctx, id.ID, url)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{
		Success: true,
		Message: "Profile picture updated successfully",
		User:    viewUser(user),
	})
}

// DeleteAccount removes the caller's account and keeps their donations.
func (h *Handlers) DeleteAccount(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}
	if err := h.auth.DeleteAccount(c.Request().Context(), id.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Account deleted successfully"})
}

// VerifyEmail consumes a verification token from an e-mail link.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	user, err := h.auth.Verify(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{
		Success: true,
		Message: "Email verified successfully",
		User:    viewUser(user),
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

// ResendVerification mails a new verification link.
func (h *Handlers) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "If an account exists for this email, a verification link has been sent",
	})
}

// ForgotPassword mails a password reset link.
func (h *Handlers) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "If an account exists for this email, a password reset link has been sent",
	})
}

type resetRequest struct {
	Password string `json:"password" validate:"max=72"`
}

// ResetPassword sets a new password using a reset token.
func (h *Handlers) ResetPassword(c echo.Context) error {
	var req resetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password has been reset successfully"})
}

type usersResponse struct {
	Success bool        `json:"success"`
	Users   []*userView `json:"users"`
}

// ListUsers returns all accounts. Admin only.
func (h *Handlers) ListUsers(c echo.Context) error {
	users, err := h.auth.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]*userView, 0, len(users))
	for i := range users {
		out = append(out, viewUser(&users[i]))
	}
	return c.JSON(http.StatusOK, usersResponse{Success: true, Users: out})
}

// DeactivateUser soft-deletes an account. Admin only.
func (h *Handlers) DeactivateUser(c echo.Context) error {
	id, err := requireCaller(c)
	if err != nil {
		return err
	}
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.auth.Deactivate(c.Request().Context(), id.ID, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "User deactivated"})
}
