// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/oauth"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"codeberg.org/oliverandrich/donations/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	identity *oauth.Identity
	err      error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(context.Context, string) (*oauth.Identity, error) {
	return f.identity, f.err
}

func newService(t *testing.T, provider oauth.Provider) (*oauth.Service, *repository.Repository, *token.Service) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	tokens := token.NewService("test-secret", "")
	return oauth.NewService(repo, provider, tokens, 7*24*time.Hour), repo, tokens
}

func TestLink_CreatesAccount(t *testing.T) {
	svc, repo, _ := newService(t, nil)

	user, created, err := svc.Link(context.Background(), oauth.Identity{
		Subject: "g-1", Name: "Hina", Email: "Hina@Example.com", AvatarURL: "https://img/1", EmailVerified: true,
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "hina@example.com", user.Email)
	assert.True(t, user.IsVerified)
	assert.False(t, user.HasPassword())
	assert.Equal(t, "google", user.Provider())

	again, created, err := svc.Link(context.Background(), oauth.Identity{Subject: "g-1", Email: "hina@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	stored, err := repo.GetUserByGoogleID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/1", stored.AvatarURL)
}

func TestLink_RefreshesAvatar(t *testing.T) {
	svc, repo, _ := newService(t, nil)
	ctx := context.Background()
	_, _, err := svc.Link(ctx, oauth.Identity{Subject: "g-1", Email: "hina@example.com", AvatarURL: "https://img/old"})
	require.NoError(t, err)

	_, _, err = svc.Link(ctx, oauth.Identity{Subject: "g-1", Email: "hina@example.com", AvatarURL: "https://img/new"})
	require.NoError(t, err)

	stored, err := repo.GetUserByGoogleID(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/new", stored.AvatarURL)
}

func TestLink_NameFallsBackToEmail(t *testing.T) {
	svc, _, _ := newService(t, nil)

	user, _, err := svc.Link(context.Background(), oauth.Identity{Subject: "g-2", Email: "kamran@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "kamran", user.Name)
}

func TestLink_VerifiedEmailLinksExistingAccount(t *testing.T) {
	svc, repo, _ := newService(t, nil)
	existing := testutil.NewTestUser(t, repo, "Bilal", "bilal@example.com")

	user, created, err := svc.Link(context.Background(), oauth.Identity{
		Subject: "g-3", Email: "BILAL@example.com", EmailVerified: true,
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, user.ID)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "g-3", *user.GoogleID)
	assert.True(t, user.HasPassword())
}

func TestLink_EmailOfOtherGoogleAccountIsRefused(t *testing.T) {
	svc, repo, _ := newService(t, nil)
	ctx := context.Background()
	first, _, err := svc.Link(ctx, oauth.Identity{Subject: "g-1", Email: "bilal@example.com", EmailVerified: true})
	require.NoError(t, err)

	_, _, err = svc.Link(ctx, oauth.Identity{Subject: "g-2", Email: "bilal@example.com", EmailVerified: true})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	stored, err := repo.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-1", *stored.GoogleID)
}

func TestLink_UnverifiedEmailIsRefused(t *testing.T) {
	svc, repo, _ := newService(t, nil)
	testutil.NewTestUser(t, repo, "Bilal", "bilal@example.com")

	_, _, err := svc.Link(context.Background(), oauth.Identity{Subject: "g-3", Email: "bilal@example.com"})

	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestLink_DeactivatedAccountIsRefused(t *testing.T) {
	svc, repo, _ := newService(t, nil)
	ctx := context.Background()
	byEmail := testutil.NewTestUser(t, repo, "Bilal", "bilal@example.com")
	require.NoError(t, repo.SoftDeleteUser(ctx, byEmail.ID))

	_, _, err := svc.Link(ctx, oauth.Identity{Subject: "g-3", Email: "bilal@example.com", EmailVerified: true})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	linked, _, err := svc.Link(ctx, oauth.Identity{Subject: "g-4", Email: "sara@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.SoftDeleteUser(ctx, linked.ID))

	_, _, err = svc.Link(ctx, oauth.Identity{Subject: "g-4", Email: "sara@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestLink_IncompleteProfile(t *testing.T) {
	svc, _, _ := newService(t, nil)

	_, _, err := svc.Link(context.Background(), oauth.Identity{Subject: "g-5"})

	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestComplete(t *testing.T) {
	provider := &fakeProvider{identity: &oauth.Identity{
		Subject: "g-9", Name: "Hina", Email: "hina@example.com", AvatarURL: "https://img/9", EmailVerified: true,
	}}
	svc, _, tokens := newService(t, provider)

	payload, err := svc.Complete(context.Background(), "code-123")

	require.NoError(t, err)
	assert.True(t, payload.Login)
	assert.True(t, payload.User.IsNewUser)
	assert.Equal(t, "google", payload.User.Provider)
	assert.Equal(t, "g-9", payload.User.GoogleID)
	assert.Equal(t, "https://img/9", payload.User.Picture)
	assert.Equal(t, models.RoleUser, payload.User.Role)

	claims, err := tokens.Parse(payload.Token)
	require.NoError(t, err)
	assert.Equal(t, payload.User.ID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestComplete_Failures(t *testing.T) {
	svc, _, _ := newService(t, &fakeProvider{err: errors.New("bad code")})

	_, err := svc.Complete(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Complete(context.Background(), "code")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestCallbackPayload_RedirectURL(t *testing.T) {
	payload := &oauth.CallbackPayload{
		Login: true,
		User:  oauth.CallbackUser{ID: 7, Name: "Hina", Provider: "google"},
		Token: "tok",
	}

	got, err := payload.RedirectURL("http://localhost:5173/")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", u.Path)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("auth")), &decoded))
	assert.Equal(t, true, decoded["login"])
	assert.Equal(t, "tok", decoded["token"])
	assert.Equal(t, "Hina", decoded["user"].(map[string]any)["name"])
}

func TestFailureURL(t *testing.T) {
	assert.Equal(t, "http://localhost:5173/login?error=authentication_failed", oauth.FailureURL("http://localhost:5173/"))
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := oauth.NewGoogleProvider(&config.GoogleConfig{
		ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost:8080/api/auth/google/callback",
	})

	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-1","name":"Hina","email":"hina@example.com","email_verified":true,"picture":"https://img/1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := oauth.NewGoogleProvider(&config.GoogleConfig{ClientID: "client", ClientSecret: "secret"},
		oauth.WithEndpoint(oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		oauth.WithUserInfoURL(srv.URL+"/userinfo"),
		oauth.WithHTTPClient(srv.Client()),
	)

	id, err := p.Exchange(context.Background(), "code-1")

	require.NoError(t, err)
	assert.Equal(t, "g-1", id.Subject)
	assert.Equal(t, "hina@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "https://img/1", id.AvatarURL)
}

func TestGoogleProvider_UserInfoError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := oauth.NewGoogleProvider(&config.GoogleConfig{ClientID: "client", ClientSecret: "secret"},
		oauth.WithEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}),
		oauth.WithUserInfoURL(srv.URL+"/userinfo"),
	)

	_, err := p.Exchange(context.Background(), "code-1")

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}
