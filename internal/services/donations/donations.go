// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package donations implements the donation ledger.
package donations

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/campaigns"
)

// RecentLimit is the number of donations on the public feed.
const RecentLimit = 10

// Service records donations and keeps campaign totals in step.
type Service struct {
	repo      *repository.Repository
	campaigns *campaigns.Service
}

func NewService(repo *repository.Repository, campaignSvc *campaigns.Service) *Service {
	return &Service{repo: repo, campaigns: campaignSvc}
}

// CreateParams holds the fields of a new donation. A zero CampaignID or nil
// Amount means the field was not supplied.
type CreateParams struct {
	CampaignID    int64
	CampaignTitle string
	Amount        *money.Amount
	PaymentMethod models.PaymentMethod
	DonationType  string
	Category      string
	DonorName     string
	DonorEmail    string
}

// Create records a pending donation and adds its amount to the campaign's
// collected total in the same transaction. id may be nil for anonymous
// donors.
func (s *Service) Create(ctx context.Context, id *auth.Identity, p CreateParams) (*models.Donation, error) {
	if p.CampaignID == 0 || p.Amount == nil || p.PaymentMethod == "" {
		return nil, apperr.Validation("campaignId, amount, paymentMethod are required.")
	}
	if !p.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than 0.")
	}
	if !p.PaymentMethod.Valid() {
		return nil, apperr.Validation("Invalid payment method.")
	}

	d := &models.Donation{
		CampaignID:    p.CampaignID,
		CampaignTitle: strings.TrimSpace(p.CampaignTitle),
		Amount:        *p.Amount,
		PaymentMethod: p.PaymentMethod,
		DonationType:  strings.TrimSpace(p.DonationType),
		Category:      strings.TrimSpace(p.Category),
		DonorName:     strings.TrimSpace(p.DonorName),
		DonorEmail:    strings.TrimSpace(p.DonorEmail),
		Status:        models.DonationPending,
	}
	if d.DonationType == "" {
		d.DonationType = models.DefaultDonationType
	}
	if d.Category == "" {
		d.Category = models.DefaultCampaignCategory
	}
	if id != nil {
		d.UserID = &id.ID
		if d.DonorName == "" {
			d.DonorName = id.Name
		}
		if d.DonorEmail == "" {
			d.DonorEmail = id.Email
		}
	}
	if d.DonorName == "" {
		d.DonorName = "Anonymous"
	}
	if d.DonorEmail == "" {
		return nil, apperr.Validation("donorEmail is required.")
	}
	if _, err := mail.ParseAddress(d.DonorEmail); err != nil {
		return nil, apperr.Validation("Invalid donor email.")
	}

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		c, err := tx.GetCampaign(ctx, d.CampaignID)
		if err != nil {
			return err
		}
		if d.CampaignTitle == "" {
			d.CampaignTitle = c.Title
		}
		if err := tx.CreateDonation(ctx, d); err != nil {
			return err
		}
		return s.campaigns.IncrementCollected(ctx, tx, d.CampaignID, d.Amount)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Campaign not found")
		}
		return nil, apperr.Upstream("Failed to create donation", err)
	}

	slog.Info("donation_created", "donation_id", d.ID, "campaign_id", d.CampaignID,
		"amount", d.Amount.String(), "anonymous", id == nil)
	return d, nil
}

// ListMine returns the caller's donations, including donations made with the
// caller's e-mail before an account link existed.
func (s *Service) ListMine(ctx context.Context, id *auth.Identity) ([]models.Donation, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	out, err := s.repo.ListDonationsForDonor(ctx, id.ID, id.Email)
	if err != nil {
		return nil, apperr.Upstream("Failed to list donations", err)
	}
	return out, nil
}

// ListAll returns every donation joined with its donor. Admin only.
func (s *Service) ListAll(ctx context.Context, id *auth.Identity) ([]models.DonationWithDonor, error) {
	if err := auth.RequireRole(id, models.RoleAdmin); err != nil {
		return nil, err
	}
	out, err := s.repo.ListDonationsWithDonor(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to list donations", err)
	}
	return out, nil
}

// Get returns a donation the caller owns. Admins may read any donation.
func (s *Service) Get(ctx context.Context, id *auth.Identity, donationID int64) (*models.DonationWithDonor, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	d, err := s.repo.GetDonationWithDonor(ctx, donationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Donation not found")
		}
		return nil, apperr.Upstream("Failed to load donation", err)
	}
	if !id.IsAdmin() && !d.OwnedBy(id.ID, id.Email) {
		return nil, apperr.Authorization("Not authorized to view this donation.")
	}
	return d, nil
}

// UpdateStatus moves a donation between Pending and Verified. Admin only.
// Both states count towards the campaign total, so the total is unchanged.
func (s *Service) UpdateStatus(ctx context.Context, id *auth.Identity, donationID int64, status models.DonationStatus) (*models.Donation, error) {
	if err := auth.RequireRole(id, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("Invalid status. Use Pending or Verified.")
	}

	if err := s.repo.UpdateDonationStatus(ctx, donationID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Donation not found")
		}
		return nil, apperr.Upstream("Failed to update donation", err)
	}

	d, err := s.repo.GetDonation(ctx, donationID)
	if err != nil {
		return nil, apperr.Upstream("Failed to load donation", err)
	}

	slog.Info("donation_status_updated", "donation_id", d.ID, "status", d.Status, "by", id.ID)
	return d, nil
}

// Delete removes a donation and takes its amount off the campaign total.
// Admin only.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, donationID int64) error {
	if err := auth.RequireRole(id, models.RoleAdmin); err != nil {
		return err
	}

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		d, err := tx.GetDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if err := tx.DeleteDonation(ctx, donationID); err != nil {
			return err
		}
		if !d.Status.CountsTowardsTotal() {
			return nil
		}
		return s.campaigns.IncrementCollected(ctx, tx, d.CampaignID, -d.Amount)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Donation not found")
		}
		return apperr.Upstream("Failed to delete donation", err)
	}

	slog.Info("donation_deleted", "donation_id", donationID, "by", id.ID)
	return nil
}

// PublicDonation is a donation as shown on the public feed.
type PublicDonation struct {
	ID            int64        `json:"id"`
	DonorName     string       `json:"donorName"`
	Amount        money.Amount `json:"amount"`
	CampaignID    int64        `json:"campaignId"`
	CampaignTitle string       `json:"campaignTitle"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Feed is the public donation overview.
type Feed struct {
	repository.DonationStats
	Recent []PublicDonation `json:"recentDonations"`
}

// PublicFeed returns overall totals and the most recent donations without
// donor e-mail addresses.
func (s *Service) PublicFeed(ctx context.Context) (*Feed, error) {
	stats, err := s.repo.GetDonationStats(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to load donation stats", err)
	}
	recent, err := s.repo.ListRecentDonations(ctx, RecentLimit)
	if err != nil {
		return nil, apperr.Upstream("Failed to load recent donations", err)
	}

	feed := &Feed{DonationStats: *stats, Recent: make([]PublicDonation, 0, len(recent))}
	for _, d := range recent {
		feed.Recent = append(feed.Recent, PublicDonation{
			ID:            d.ID,
			DonorName:     d.DonorName,
			Amount:        d.Amount,
			CampaignID:    d.CampaignID,
			CampaignTitle: d.CampaignTitle,
			CreatedAt:     d.CreatedAt,
		})
	}
	return feed, nil
}
