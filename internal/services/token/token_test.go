// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = &models.User{ID: 7, Email: "donor@example.com", Role: models.RoleUser}

func TestIssueAndParse(t *testing.T) {
	svc := token.NewService("test-secret", "donations-test")

	signed, err := svc.Issue(testUser, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "donor@example.com", claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, "7", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	svc := token.NewService("test-secret", "")

	a, err := svc.Issue(testUser, time.Hour)
	require.NoError(t, err)
	b, err := svc.Issue(testUser, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParse_Expired(t *testing.T) {
	svc := token.NewService("test-secret", "")
	past := time.Now().Add(-48 * time.Hour)
	svc.SetClock(func() time.Time { return past })
	signed, err := svc.Issue(testUser, 24*time.Hour)
	require.NoError(t, err)

	svc.SetClock(time.Now)
	_, err = svc.Parse(signed)

	assert.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestParse_WrongSecret(t *testing.T) {
	signed, err := token.NewService("secret-a", "").Issue(testUser, time.Hour)
	require.NoError(t, err)

	_, err = token.NewService("secret-b", "").Parse(signed)

	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestParse_WrongIssuer(t *testing.T) {
	signed, err := token.NewService("secret", "issuer-a").Issue(testUser, time.Hour)
	require.NoError(t, err)

	_, err = token.NewService("secret", "issuer-b").Parse(signed)

	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	svc := token.NewService("secret", "")

	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := svc.Parse(raw)
		assert.ErrorIs(t, err, token.ErrInvalidToken, raw)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	svc := token.NewService("secret", "")
	claims := &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           1,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.Parse(signed)

	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestNoSecret(t *testing.T) {
	svc := token.NewService("", "")

	assert.False(t, svc.Configured())
	_, err := svc.Issue(testUser, time.Hour)
	assert.ErrorIs(t, err, token.ErrNoSecret)
	_, err = svc.Parse("anything")
	assert.ErrorIs(t, err, token.ErrNoSecret)
}
