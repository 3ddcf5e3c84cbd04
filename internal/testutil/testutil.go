// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/donations/internal/database"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of users created by NewTestUser.
const TestPassword = "secret123"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a verified password account with TestPassword.
func NewTestUser(t *testing.T, repo *repository.Repository, name, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: &h,
		Role:         models.RoleUser,
		IsVerified:   true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestAdmin creates an admin account with TestPassword.
func NewTestAdmin(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, "Admin", email)
	user.Role = models.RoleAdmin
	require.NoError(t, repo.UpdateUser(context.Background(), user))
	return user
}

// NewTestCampaign creates an active campaign with the given target in whole
// currency units.
func NewTestCampaign(t *testing.T, repo *repository.Repository, title string, target int64) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Title:        title,
		TargetAmount: money.FromMajor(target),
		Category:     models.DefaultCampaignCategory,
		Status:       models.CampaignActive,
	}
	require.NoError(t, repo.CreateCampaign(context.Background(), c))
	return c
}

// NewTestDonation inserts a pending donation without touching campaign totals.
func NewTestDonation(t *testing.T, repo *repository.Repository, campaign *models.Campaign, user *models.User, amount int64) *models.Donation {
	t.Helper()
	d := &models.Donation{
		CampaignID:    campaign.ID,
		CampaignTitle: campaign.Title,
		Amount:        money.FromMajor(amount),
		PaymentMethod: models.PaymentCard,
		DonationType:  models.DefaultDonationType,
		Category:      models.DefaultCampaignCategory,
		DonorName:     "Anonymous",
		DonorEmail:    "anon@example.com",
		Status:        models.DonationPending,
	}
	if user != nil {
		d.UserID = &user.ID
		d.DonorName = user.Name
		d.DonorEmail = user.Email
	}
	require.NoError(t, repo.CreateDonation(context.Background(), d))
	return d
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// SentMail is a message captured by RecordingMailer.
type SentMail struct {
	To    string
	Name  string
	Token string
}

// RecordingMailer captures account mail instead of sending it.
type RecordingMailer struct {
	mu            sync.Mutex
	Verifications []SentMail
	Resets        []SentMail
	Err           error
}

func (m *RecordingMailer) SendVerification(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verifications = append(m.Verifications, SentMail{To: to, Name: name, Token: token})
	return m.Err
}

func (m *RecordingMailer) SendPasswordReset(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets = append(m.Resets, SentMail{To: to, Name: name, Token: token})
	return m.Err
}

// LastVerification returns the most recent verification mail.
func (m *RecordingMailer) LastVerification(t *testing.T) SentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.Verifications, "no verification mail sent")
	return m.Verifications[len(m.Verifications)-1]
}

// LastReset returns the most recent password reset mail.
func (m *RecordingMailer) LastReset(t *testing.T) SentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.Resets, "no password reset mail sent")
	return m.Resets[len(m.Resets)-1]
}
