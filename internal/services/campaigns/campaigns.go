// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package campaigns manages fundraising campaigns and their collected
// totals.
package campaigns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/media"
)

// Service owns campaign records. The collected amount of a campaign is the
// sum of its Pending and Verified donations.
type Service struct {
	repo            *repository.Repository
	media           *media.Service
	recomputeOnList bool
}

func NewService(repo *repository.Repository, uploads *media.Service, recomputeOnList bool) *Service {
	return &Service{repo: repo, media: uploads, recomputeOnList: recomputeOnList}
}

// CreateParams holds the fields of a new campaign. A nil TargetAmount means
// the field was not supplied.
type CreateParams struct {
	Title        string
	Description  string
	TargetAmount *money.Amount
	Category     string
	Status       models.CampaignStatus
	StartDate    *time.Time
	EndDate      *time.Time
	Image        io.Reader
}

// Create stores a new campaign with a collected amount of zero. Only admins
// may create campaigns.
func (s *Service) Create(ctx context.Context, id *auth.Identity, p CreateParams) (*models.Campaign, error) {
	if !id.IsAdmin() {
		return nil, apperr.Authorization("Only admin can create campaigns.")
	}

	title := strings.TrimSpace(p.Title)
	if title == "" || p.TargetAmount == nil {
		return nil, apperr.Validation("title and targetAmount are required.")
	}
	if !p.TargetAmount.IsPositive() {
		return nil, apperr.Validation("targetAmount must be greater than 0.")
	}

	c := &models.Campaign{
		Title:        title,
		Description:  strings.TrimSpace(p.Description),
		TargetAmount: *p.TargetAmount,
		Category:     strings.TrimSpace(p.Category),
		Status:       p.Status,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		CreatedBy:    &id.ID,
	}
	if c.Category == "" {
		c.Category = models.DefaultCampaignCategory
	}
	if c.Status == "" {
		c.Status = models.CampaignActive
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	if p.Image != nil {
		url, err := s.media.UploadImage(ctx, media.FolderCampaigns, p.Image)
		if err != nil {
			return nil, err
		}
		c.ImageURL = url
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, apperr.Upstream("Failed to create campaign", err)
	}

	slog.Info("campaign_created", "campaign_id", c.ID, "created_by", id.ID, "target", c.TargetAmount.String())
	return c, nil
}

// Get returns a campaign.
func (s *Service) Get(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Campaign not found")
		}
		return nil, apperr.Upstream("Failed to load campaign", err)
	}
	return c, nil
}

// List returns all campaigns, newest first. Collected totals are recomputed
// first unless disabled.
func (s *Service) List(ctx context.Context) ([]models.Campaign, error) {
	if s.recomputeOnList {
		if _, err := s.RecomputeAll(ctx); err != nil {
			return nil, err
		}
	}

	campaigns, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to list campaigns", err)
	}
	return campaigns, nil
}

// Recompute overwrites a campaign's collected amount with the sum of its
// qualifying donations.
func (s *Service) Recompute(ctx context.Context, campaignID int64) (money.Amount, error) {
	total, err := s.repo.RecomputeCollected(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, apperr.NotFound("Campaign not found")
		}
		return 0, apperr.Upstream("Failed to recompute campaign total", err)
	}
	return total, nil
}

// RecomputeAll recomputes the collected amount of every campaign.
func (s *Service) RecomputeAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		var err error
		n, err = tx.RecomputeAllCollected(ctx)
		return err
	})
	if err != nil {
		return 0, apperr.Upstream("Failed to recompute campaign totals", err)
	}
	slog.Debug("campaigns_recomputed", "count", n)
	return n, nil
}

// IncrementCollected adds amount to a campaign's total using tx. A campaign
// that no longer exists is skipped.
func (s *Service) IncrementCollected(ctx context.Context, tx *repository.Repository, campaignID int64, amount money.Amount) error {
	ok, err := tx.AdjustCollected(ctx, campaignID, amount)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("collected_increment_skipped", "campaign_id", campaignID, "amount", amount.String())
	}
	return nil
}

// UpdateParams holds campaign changes. Nil fields are left alone.
type UpdateParams struct {
	Title        *string
	Description  *string
	TargetAmount *money.Amount
	Category     *string
	Status       *models.CampaignStatus
	StartDate    *time.Time
	EndDate      *time.Time
	Image        io.Reader
}

// Update changes the editable fields of a campaign. The collected amount is
// not editable.
func (s *Service) Update(ctx context.Context, id *auth.Identity, campaignID int64, p UpdateParams) (*models.Campaign, error) {
	if err := auth.RequireRole(id, models.RoleAdmin); err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
		if c.Title == "" {
			return nil, apperr.Validation("title cannot be empty.")
		}
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.TargetAmount != nil {
		if !p.TargetAmount.IsPositive() {
			return nil, apperr.Validation("targetAmount must be greater than 0.")
		}
		c.TargetAmount = *p.TargetAmount
	}
	if p.Category != nil {
		c.Category = strings.TrimSpace(*p.Category)
		if c.Category == "" {
			c.Category = models.DefaultCampaignCategory
		}
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.StartDate != nil {
		c.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = p.EndDate
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	if p.Image != nil {
		url, err := s.media.UploadImage(ctx, media.FolderCampaigns, p.Image)
		if err != nil {
			return nil, err
		}
		c.ImageURL = url
	}

	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Campaign not found")
		}
		return nil, apperr.Upstream("Failed to update campaign", err)
	}

	slog.Info("campaign_updated", "campaign_id", c.ID, "by", id.ID)
	return c, nil
}

// Delete removes a campaign. Its donations are kept and still carry the
// campaign title.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, campaignID int64) error {
	if err := auth.RequireRole(id, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Campaign not found")
		}
		return apperr.Upstream("Failed to delete campaign", err)
	}
	slog.Info("campaign_deleted", "campaign_id", campaignID, "by", id.ID)
	return nil
}

// Donor is one entry of a campaign's donor list.
type Donor struct {
	ID            int64                 `json:"id"`
	Amount        money.Amount          `json:"amount"`
	PaymentMethod models.PaymentMethod  `json:"paymentMethod"`
	Status        models.DonationStatus `json:"status"`
	DonorName     string                `json:"donorName"`
	CreatedAt     time.Time             `json:"createdAt"`
	Donor         *models.UserSummary   `json:"donor"`
}

// DonorList is the donor list of a campaign.
type DonorList struct {
	CampaignID int64   `json:"campaignId"`
	Donors     []Donor `json:"donors"`
}

// Donors lists a campaign's donations, newest first. Only the campaign's
// creator and admins may see them.
func (s *Service) Donors(ctx context.Context, id *auth.Identity, campaignID int64) (*DonorList, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}

	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() && (c.CreatedBy == nil || *c.CreatedBy != id.ID) {
		return nil, apperr.Authorization("Not authorized to view donors for this campaign.")
	}

	donations, err := s.repo.ListCampaignDonations(ctx, campaignID)
	if err != nil {
		return nil, apperr.Upstream("Failed to list donors", err)
	}

	out := &DonorList{CampaignID: campaignID, Donors: make([]Donor, 0, len(donations))}
	for _, d := range donations {
		out.Donors = append(out.Donors, Donor{
			ID:            d.ID,
			Amount:        d.Amount,
			PaymentMethod: d.PaymentMethod,
			Status:        d.Status,
			DonorName:     d.DonorName,
			CreatedAt:     d.CreatedAt,
			Donor:         d.Donor,
		})
	}
	return out, nil
}

func validate(c *models.Campaign) error {
	if !c.Status.Valid() {
		return apperr.Validation("Invalid campaign status.")
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return apperr.Validation("endDate must be after startDate.")
	}
	return nil
}
