// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/server"
	"codeberg.org/oliverandrich/donations/internal/services/media"
	"codeberg.org/oliverandrich/donations/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientURL = "http://client.test"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			MaxBodySize: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret:   "test-secret",
			JWTIssuer:   "http://localhost:8080",
			LoginExpiry: time.Hour,
			OAuthExpiry: 7 * 24 * time.Hour,
			ClientURL:   clientURL,
		},
		CORS:      config.CORSConfig{AllowedOrigins: []string{clientURL}},
		Session:   config.SessionConfig{CookieName: "_oauth_state", MaxAge: 600},
		Campaigns: config.CampaignsConfig{RecomputeOnList: true},
	}
}

type app struct {
	e    *echo.Echo
	repo *repository.Repository
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	e, err := server.New(context.Background(), testConfig(), db,
		server.WithMailer(&testutil.RecordingMailer{}),
		server.WithStore(media.NewMemoryStore("https://cdn.test")),
	)
	require.NoError(t, err)
	return &app{e: e, repo: repo}
}

func (a *app) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// login returns a bearer token for an account created by testutil.
func (a *app) login(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/users/login",
		`{"email":"`+email+`","password":"`+testutil.TestPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestTrailingSlash(t *testing.T) {
	a := newApp(t)
	testutil.NewTestCampaign(t, a.repo, "Wells", 1000)

	rec := a.do(t, http.MethodGet, "/api/campaigns/", "", "")

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestUnknownRoute(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/api/unknown", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not Found"}`, rec.Body.String())
}

func TestRouteAccess(t *testing.T) {
	a := newApp(t)
	testutil.NewTestAdmin(t, a.repo, "admin@example.com")
	testutil.NewTestUser(t, a.repo, "Sana", "sana@example.com")
	adminToken := a.login(t, "admin@example.com")
	userToken := a.login(t, "sana@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"public campaigns", http.MethodGet, "/api/campaigns", "", http.StatusOK},
		{"public feed", http.MethodGet, "/api/donations/public", "", http.StatusOK},
		{"me without token", http.MethodGet, "/api/users/me", "", http.StatusUnauthorized},
		{"me with token", http.MethodGet, "/api/users/me", userToken, http.StatusOK},
		{"my donations without token", http.MethodGet, "/api/donations/my-donations", "", http.StatusUnauthorized},
		{"receipts without token", http.MethodGet, "/api/receipts/receipt", "", http.StatusUnauthorized},
		{"receipts with token", http.MethodGet, "/api/receipts/receipt", userToken, http.StatusOK},
		{"list users as user", http.MethodGet, "/api/users", userToken, http.StatusForbidden},
		{"list users as admin", http.MethodGet, "/api/users", adminToken, http.StatusOK},
		{"all donations as user", http.MethodGet, "/api/donations/donation", userToken, http.StatusForbidden},
		{"all donations as admin", http.MethodGet, "/api/donations/donation", adminToken, http.StatusOK},
		{"delete campaign without token", http.MethodDelete, "/api/campaigns/campaign/1", "", http.StatusUnauthorized},
		{"delete campaign as user", http.MethodDelete, "/api/campaigns/campaign/1", userToken, http.StatusForbidden},
		{"google disabled", http.MethodGet, "/api/auth/google", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, "", tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthenticationMessages(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/api/users/me", "", "")
	assert.JSONEq(t, `{"success":false,"message":"Access denied. No token provided."}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/users/me", "", "not-a-jwt")
	assert.JSONEq(t, `{"success":false,"message":"Invalid token."}`, rec.Body.String())
}

func TestDeactivatedUserIsLockedOut(t *testing.T) {
	a := newApp(t)
	admin := testutil.NewTestAdmin(t, a.repo, "admin@example.com")
	user := testutil.NewTestUser(t, a.repo, "Sana", "sana@example.com")
	adminToken := a.login(t, admin.Email)
	userToken := a.login(t, user.Email)

	rec := a.do(t, http.MethodDelete, "/api/users/"+itoa(user.ID), "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/users/me", "", userToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token (user not found).", decode(t, rec)["message"])
}

func TestCORSPreflight(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/campaigns", nil)
	req.Header.Set(echo.HeaderOrigin, clientURL)
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, clientURL, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization)
}

func TestBodyLimit(t *testing.T) {
	a := newApp(t)
	body := `{"email":"` + strings.Repeat("a", 2<<20) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestScenario_Wells(t *testing.T) {
	a := newApp(t)
	testutil.NewTestAdmin(t, a.repo, "admin@example.com")
	adminToken := a.login(t, "admin@example.com")

	rec := a.do(t, http.MethodPost, "/api/users/signup",
		`{"name":"Sana","email":"sana@example.com","password":"Rainy-Day-Fund-42"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	donorToken := decode(t, rec)["token"].(string)

	rec = a.do(t, http.MethodPost, "/api/campaigns/campaign",
		`{"title":"Help Build Clean Water Wells","targetAmount":1000}`, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	campaign := decode(t, rec)["campaign"].(map[string]any)
	assert.InDelta(t, 0.0, campaign["collectedAmount"], 0.001)
	campaignID := itoa(int64(campaign["id"].(float64)))

	rec = a.do(t, http.MethodPost, "/api/donations/donation",
		`{"campaignId":`+campaignID+`,"amount":250,"paymentMethod":"Card"}`, donorToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	donation := decode(t, rec)["donation"].(map[string]any)
	assert.Equal(t, "Pending", donation["status"])
	donationID := itoa(int64(donation["id"].(float64)))

	rec = a.do(t, http.MethodGet, "/api/campaigns/campaign/"+campaignID, "", "")
	assert.InDelta(t, 250.0, decode(t, rec)["collectedAmount"], 0.001)

	rec = a.do(t, http.MethodPut, "/api/donations/donation/"+donationID, `{"status":"Verified"}`, donorToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/donations/donation/"+donationID, `{"status":"Verified"}`, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Verified", decode(t, rec)["donation"].(map[string]any)["status"])

	rec = a.do(t, http.MethodGet, "/api/campaigns", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.InDelta(t, 250.0, list[0]["collectedAmount"], 0.001)

	rec = a.do(t, http.MethodPost, "/api/receipts/receipt", `{"donationId":`+donationID+`}`, donorToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := a.repo.GetCampaign(context.Background(), int64(campaign["id"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignActive, stored.Status)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
