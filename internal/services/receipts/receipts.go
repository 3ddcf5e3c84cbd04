// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package receipts issues receipts for donations.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
)

type Service struct {
	repo *repository.Repository
	now  func() time.Time
}

func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetClock replaces the clock receipt numbers are derived from.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Number returns the receipt number for t.
func Number(t time.Time) string {
	return fmt.Sprintf("REC-%d", t.UnixMilli())
}

// Create issues a receipt for a donation the caller owns. Admins may issue
// receipts for any donation.
func (s *Service) Create(ctx context.Context, id *auth.Identity, donationID int64) (*models.Receipt, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	if donationID == 0 {
		return nil, apperr.Validation("donationId is required.")
	}

	d, err := s.repo.GetDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Donation not found")
		}
		return nil, apperr.Upstream("Failed to load donation", err)
	}
	if !id.IsAdmin() && !d.OwnedBy(id.ID, id.Email) {
		return nil, apperr.Authorization("Not authorized to create a receipt for this donation.")
	}

	receipt := &models.Receipt{
		DonationID:    d.ID,
		ReceiptNumber: Number(s.now()),
	}
	if err := s.repo.CreateReceipt(ctx, receipt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			slog.Error("receipt_number_collision", "receipt_number", receipt.ReceiptNumber)
			return nil, apperr.Upstream("Receipt number collision, please retry", err)
		}
		return nil, apperr.Upstream("Failed to create receipt", err)
	}

	slog.Info("receipt_created", "receipt_id", receipt.ID, "donation_id", d.ID, "receipt_number", receipt.ReceiptNumber)
	return receipt, nil
}

// Get returns a receipt with its donation, donor and campaign.
func (s *Service) Get(ctx context.Context, id *auth.Identity, receiptID int64) (*models.ReceiptDetail, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	r, err := s.repo.GetReceiptDetail(ctx, receiptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Receipt not found")
		}
		return nil, apperr.Upstream("Failed to load receipt", err)
	}
	if !id.IsAdmin() && !r.Donation.OwnedBy(id.ID, id.Email) {
		return nil, apperr.Authorization("Not authorized to view this receipt.")
	}
	return r, nil
}

// List returns the caller's receipts. Admins see all receipts.
func (s *Service) List(ctx context.Context, id *auth.Identity) ([]models.ReceiptDetail, error) {
	if id == nil {
		return nil, apperr.Authentication("Authentication required.")
	}
	var owner *repository.ReceiptOwner
	if !id.IsAdmin() {
		owner = &repository.ReceiptOwner{UserID: id.ID, Email: id.Email}
	}
	out, err := s.repo.ListReceiptDetails(ctx, owner)
	if err != nil {
		return nil, apperr.Upstream("Failed to list receipts", err)
	}
	return out, nil
}
