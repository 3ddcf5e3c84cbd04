// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
)

const donationColumns = `d.id, d.user_id, d.campaign_id, d.campaign_title, d.amount, d.payment_method,
	d.donation_type, d.category, d.donor_name, d.donor_email, d.status, d.donor_note,
	d.donor_deleted_at, d.created_at, d.updated_at`

const donorColumns = `u.id AS account_id, u.name AS account_name, u.email AS account_email`

type donationRow struct {
	models.Donation
	AccountID    sql.NullInt64  `db:"account_id"`
	AccountName  sql.NullString `db:"account_name"`
	AccountEmail sql.NullString `db:"account_email"`
}

func (row donationRow) toModel() models.DonationWithDonor {
	out := models.DonationWithDonor{Donation: row.Donation}
	if row.AccountID.Valid {
		out.Donor = &models.UserSummary{
			ID:    row.AccountID.Int64,
			Name:  row.AccountName.String,
			Email: row.AccountEmail.String,
		}
	}
	return out
}

func toDonationsWithDonor(rows []donationRow) []models.DonationWithDonor {
	out := make([]models.DonationWithDonor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

// CreateDonation inserts donation and fills in its ID and timestamps.
func (r *Repository) CreateDonation(ctx context.Context, d *models.Donation) error {
	now := r.now()
	id, err := r.insert(ctx,
		`INSERT INTO donations (user_id, campaign_id, campaign_title, amount, payment_method,
			donation_type, category, donor_name, donor_email, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.CampaignID, d.CampaignTitle, d.Amount, d.PaymentMethod,
		d.DonationType, d.Category, d.DonorName, d.DonorEmail, d.Status, now, now)
	if err != nil {
		return err
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// GetDonation retrieves a donation by ID.
func (r *Repository) GetDonation(ctx context.Context, id int64) (*models.Donation, error) {
	var d models.Donation
	if err := r.get(ctx, &d, `SELECT `+donationColumns+` FROM donations d WHERE d.id = ?`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDonationWithDonor retrieves a donation joined with its linked account.
func (r *Repository) GetDonationWithDonor(ctx context.Context, id int64) (*models.DonationWithDonor, error) {
	var row donationRow
	err := r.get(ctx, &row,
		`SELECT `+donationColumns+`, `+donorColumns+`
		FROM donations d LEFT JOIN users u ON u.id = d.user_id
		WHERE d.id = ?`, id)
	if err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// ListDonationsForDonor returns the donations linked to userID plus unlinked
// donations made with email, newest first.
func (r *Repository) ListDonationsForDonor(ctx context.Context, userID int64, email string) ([]models.Donation, error) {
	donations := []models.Donation{}
	err := r.selectAll(ctx, &donations,
		`SELECT `+donationColumns+` FROM donations d
		WHERE d.user_id = ? OR (d.user_id IS NULL AND ? != '' AND lower(d.donor_email) = lower(?))
		ORDER BY d.created_at DESC, d.id DESC`, userID, email, email)
	if err != nil {
		return nil, err
	}
	return donations, nil
}

// ListDonationsWithDonor returns every donation joined with its linked
// account, newest first.
func (r *Repository) ListDonationsWithDonor(ctx context.Context) ([]models.DonationWithDonor, error) {
	var rows []donationRow
	err := r.selectAll(ctx, &rows,
		`SELECT `+donationColumns+`, `+donorColumns+`
		FROM donations d LEFT JOIN users u ON u.id = d.user_id
		ORDER BY d.created_at DESC, d.id DESC`)
	if err != nil {
		return nil, err
	}
	return toDonationsWithDonor(rows), nil
}

// ListCampaignDonations returns the donations of one campaign joined with
// their linked accounts, newest first.
func (r *Repository) ListCampaignDonations(ctx context.Context, campaignID int64) ([]models.DonationWithDonor, error) {
	var rows []donationRow
	err := r.selectAll(ctx, &rows,
		`SELECT `+donationColumns+`, `+donorColumns+`
		FROM donations d LEFT JOIN users u ON u.id = d.user_id
		WHERE d.campaign_id = ?
		ORDER BY d.created_at DESC, d.id DESC`, campaignID)
	if err != nil {
		return nil, err
	}
	return toDonationsWithDonor(rows), nil
}

// UpdateDonationStatus sets the status of a donation.
func (r *Repository) UpdateDonationStatus(ctx context.Context, id int64, status models.DonationStatus) error {
	return r.execOne(ctx,
		`UPDATE donations SET status = ?, updated_at = ? WHERE id = ?`, status, r.now(), id)
}

// DeleteDonation removes a donation row.
func (r *Repository) DeleteDonation(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM donations WHERE id = ?`, id)
}

// SeverDonor unlinks every donation of userID from the account, stamping the
// deletion note and time. Donor name and e-mail are kept. It returns the
// number of donations touched.
func (r *Repository) SeverDonor(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := r.exec(ctx,
		`UPDATE donations SET user_id = NULL, donor_note = ?, donor_deleted_at = ?, updated_at = ?
		WHERE user_id = ?`,
		models.DeletedAccountNote, at.UTC(), r.now(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DonationStats is the aggregate shown on the public feed.
type DonationStats struct {
	TotalAmount        money.Amount `db:"total_amount" json:"totalAmount"`
	DonationCount      int64        `db:"donation_count" json:"totalDonations"`
	DonorCount         int64        `db:"donor_count" json:"totalDonors"`
	CampaignsSupported int64        `db:"campaigns_supported" json:"campaignsSupported"`
}

// GetDonationStats aggregates over all donations.
func (r *Repository) GetDonationStats(ctx context.Context) (*DonationStats, error) {
	var stats DonationStats
	err := r.get(ctx, &stats,
		`SELECT COALESCE(SUM(amount), 0) AS total_amount,
			count(*) AS donation_count,
			count(DISTINCT lower(donor_email)) AS donor_count,
			count(DISTINCT campaign_id) AS campaigns_supported
		FROM donations`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListRecentDonations returns at most limit donations, newest first.
func (r *Repository) ListRecentDonations(ctx context.Context, limit int) ([]models.Donation, error) {
	donations := []models.Donation{}
	err := r.selectAll(ctx, &donations,
		`SELECT `+donationColumns+` FROM donations d ORDER BY d.created_at DESC, d.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return donations, nil
}
