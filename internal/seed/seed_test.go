// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/config"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/seed"
	"codeberg.org/oliverandrich/donations/internal/services/auth"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"codeberg.org/oliverandrich/donations/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSeeder(t *testing.T) (*seed.Seeder, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	svc := auth.NewService(repo, token.NewService("test-secret", ""), &testutil.RecordingMailer{},
		&config.AuthConfig{LoginExpiry: time.Hour})
	svc.SetHashCost(bcrypt.MinCost)
	return seed.New(repo, svc), repo
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
[admin]
email = "admin@example.com"
password = "Rainy-Day-Fund-42"

[[campaigns]]
title = "School Supplies"
target_amount = 2500.50

[[campaigns]]
title = "Winter Blankets"
target_amount = "800"
category = "Shelter"
`)

	f, err := seed.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "Admin", f.Admin.Name)
	assert.Equal(t, "admin@example.com", f.Admin.Email)
	require.Len(t, f.Campaigns, 2)
	assert.Equal(t, money.FromCents(250050), f.Campaigns[0].TargetAmount)
	assert.Equal(t, money.FromMajor(800), f.Campaigns[1].TargetAmount)
	assert.Equal(t, "Shelter", f.Campaigns[1].Category)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	f, err := seed.Load(filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, err)
	require.Len(t, f.Campaigns, 1)
	assert.Equal(t, "Help Build Clean Water Wells", f.Campaigns[0].Title)
	assert.Equal(t, money.FromMajor(10000), f.Campaigns[0].TargetAmount)
	assert.Empty(t, f.Admin.Email)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := seed.Load(writeFile(t, "[[campaigns]]\ntitle = \n"))

	assert.Error(t, err)
}

func TestRun_SeedsAdminAndCampaigns(t *testing.T) {
	s, repo := newSeeder(t)
	ctx := context.Background()
	f := seed.Default()
	f.Admin.Email = "Admin@Example.com"
	f.Admin.Password = "Rainy-Day-Fund-42"

	res, err := s.Run(ctx, f)

	require.NoError(t, err)
	require.NotNil(t, res.Admin)
	assert.Equal(t, models.RoleAdmin, res.Admin.Role)
	assert.Equal(t, "admin@example.com", res.Admin.Email)
	assert.Equal(t, 1, res.Campaigns)

	campaigns, err := repo.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	c := campaigns[0]
	assert.Equal(t, "Help Build Clean Water Wells", c.Title)
	assert.Equal(t, money.Amount(0), c.CollectedAmount)
	assert.Equal(t, models.CampaignActive, c.Status)
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, res.Admin.ID, *c.CreatedBy)
}

func TestRun_Idempotent(t *testing.T) {
	s, repo := newSeeder(t)
	ctx := context.Background()
	f := seed.Default()
	f.Admin.Email = "admin@example.com"
	f.Admin.Password = "Rainy-Day-Fund-42"

	_, err := s.Run(ctx, f)
	require.NoError(t, err)
	res, err := s.Run(ctx, f)
	require.NoError(t, err)

	assert.Nil(t, res.Admin)
	assert.Zero(t, res.Campaigns)
	count, err := repo.CountCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	admins, err := repo.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), admins)
}

func TestRun_WithoutAdmin(t *testing.T) {
	s, repo := newSeeder(t)
	ctx := context.Background()

	res, err := s.Run(ctx, seed.Default())

	require.NoError(t, err)
	assert.Nil(t, res.Admin)
	assert.Equal(t, 1, res.Campaigns)
	campaigns, err := repo.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Nil(t, campaigns[0].CreatedBy)
}

func TestRun_RejectsNonPositiveTarget(t *testing.T) {
	s, _ := newSeeder(t)

	_, err := s.Run(context.Background(), &seed.File{
		Campaigns: []seed.Campaign{{Title: "Broken"}},
	})

	assert.ErrorContains(t, err, "target_amount must be greater than 0")
}

func TestRun_WeakAdminPassword(t *testing.T) {
	s, _ := newSeeder(t)

	_, err := s.Run(context.Background(), &seed.File{
		Admin: seed.Admin{Name: "Admin", Email: "admin@example.com", Password: "123"},
	})

	assert.Error(t, err)
}
