// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package seed loads an admin account and sample campaigns into an empty
// database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/repository"
	authsvc "codeberg.org/oliverandrich/donations/internal/services/auth"
	"github.com/BurntSushi/toml"
)

// DefaultFile is read by the seed command when no path is given.
const DefaultFile = "seed.toml"

// File is the content of a seed file.
type File struct {
	Admin     Admin      `toml:"admin"`
	Campaigns []Campaign `toml:"campaigns"`
}

// Admin is the account created when no admin exists yet.
type Admin struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Campaign is a sample campaign.
type Campaign struct {
	Title        string       `toml:"title"`
	Description  string       `toml:"description"`
	TargetAmount money.Amount `toml:"target_amount"`
	Category     string       `toml:"category"`
	ImageURL     string       `toml:"image_url"`
}

// Default returns the sample data used when no seed file exists.
func Default() *File {
	return &File{
		Admin: Admin{Name: "Admin"},
		Campaigns: []Campaign{{
			Title:        "Help Build Clean Water Wells",
			Description:  "Provide clean drinking water to communities in need by building sustainable water wells.",
			TargetAmount: money.FromMajor(10000),
			Category:     models.DefaultCampaignCategory,
			ImageURL:     "https://images.unsplash.com/photo-1548413956-516d3cb52821?auto=format&fit=crop&w=1400&q=70",
		}},
	}
}

// Load reads a seed file. A missing file yields Default.
func Load(path string) (*File, error) {
	f := &File{}
	if _, err := toml.DecodeFile(path, f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("seed_file_missing", "path", path, "fallback", "defaults")
			return Default(), nil
		}
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	if f.Admin.Name == "" {
		f.Admin.Name = "Admin"
	}
	return f, nil
}

// Result reports what a seed run created.
type Result struct {
	Admin     *models.User
	Campaigns int
}

// Seeder writes seed data through the account service and the repository.
type Seeder struct {
	repo  *repository.Repository
	users *authsvc.Service
}

func New(repo *repository.Repository, users *authsvc.Service) *Seeder {
	return &Seeder{repo: repo, users: users}
}

// Run creates the admin account unless an admin exists and adds every
// campaign whose title is not taken yet. It is safe to run repeatedly.
func (s *Seeder) Run(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}

	if f.Admin.Email != "" {
		admin, err := s.users.EnsureAdmin(ctx, f.Admin.Name, f.Admin.Email, f.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("seeding admin: %w", err)
		}
		res.Admin = admin
	}

	creator, err := s.firstAdmin(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[strings.ToLower(c.Title)] = true
	}

	for _, sc := range f.Campaigns {
		title := strings.TrimSpace(sc.Title)
		if title == "" || taken[strings.ToLower(title)] {
			continue
		}
		if !sc.TargetAmount.IsPositive() {
			return nil, fmt.Errorf("campaign %q: target_amount must be greater than 0", title)
		}

		c := &models.Campaign{
			Title:        title,
			Description:  sc.Description,
			TargetAmount: sc.TargetAmount,
			Category:     sc.Category,
			Status:       models.CampaignActive,
			ImageURL:     sc.ImageURL,
		}
		if c.Category == "" {
			c.Category = models.DefaultCampaignCategory
		}
		if creator != nil {
			c.CreatedBy = &creator.ID
		}
		if err := s.repo.CreateCampaign(ctx, c); err != nil {
			return nil, fmt.Errorf("creating campaign %q: %w", title, err)
		}
		taken[strings.ToLower(title)] = true
		res.Campaigns++
		slog.Info("campaign_seeded", "campaign_id", c.ID, "title", title)
	}

	return res, nil
}

// firstAdmin returns the oldest admin account, or nil if there is none.
func (s *Seeder) firstAdmin(ctx context.Context) (*models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var first *models.User
	for i := range users {
		u := &users[i]
		if u.Role != models.RoleAdmin {
			continue
		}
		if first == nil || u.ID < first.ID {
			first = u
		}
	}
	return first, nil
}
