// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"codeberg.org/oliverandrich/donations/internal/models"
)

const receiptDetailQuery = `SELECT r.id AS receipt_id, r.donation_id AS receipt_donation_id,
		r.receipt_number, r.pdf_url, r.created_at AS receipt_created_at,
		` + donationColumns + `, ` + donorColumns + `,
		c.id AS campaign_ref_id, c.title AS campaign_ref_title,
		c.category AS campaign_ref_category, c.status AS campaign_ref_status
	FROM receipts r
	JOIN donations d ON d.id = r.donation_id
	LEFT JOIN users u ON u.id = d.user_id
	LEFT JOIN campaigns c ON c.id = d.campaign_id`

type receiptRow struct {
	donationRow
	ReceiptID         int64          `db:"receipt_id"`
	ReceiptDonationID int64          `db:"receipt_donation_id"`
	ReceiptNumber     string         `db:"receipt_number"`
	PDFURL            string         `db:"pdf_url"`
	ReceiptCreatedAt  time.Time      `db:"receipt_created_at"`
	CampaignRefID     sql.NullInt64  `db:"campaign_ref_id"`
	CampaignTitle     sql.NullString `db:"campaign_ref_title"`
	CampaignCategory  sql.NullString `db:"campaign_ref_category"`
	CampaignStatus    sql.NullString `db:"campaign_ref_status"`
}

func (row receiptRow) toModel() models.ReceiptDetail {
	withDonor := row.donationRow.toModel()
	out := models.ReceiptDetail{
		Receipt: models.Receipt{
			ID:            row.ReceiptID,
			DonationID:    row.ReceiptDonationID,
			ReceiptNumber: row.ReceiptNumber,
			PDFURL:        row.PDFURL,
			CreatedAt:     row.ReceiptCreatedAt,
		},
		Donation: models.ReceiptDonation{
			Donation: withDonor.Donation,
			Donor:    withDonor.Donor,
		},
	}
	if row.CampaignRefID.Valid {
		out.Donation.Campaign = &models.CampaignSummary{
			ID:       row.CampaignRefID.Int64,
			Title:    row.CampaignTitle.String,
			Category: row.CampaignCategory.String,
			Status:   models.CampaignStatus(row.CampaignStatus.String),
		}
	}
	return out
}

// ReceiptOwner restricts receipt reads to donations owned by an account.
type ReceiptOwner struct {
	UserID int64
	Email  string
}

// CreateReceipt inserts receipt and fills in its ID and creation time.
// A duplicate receipt number yields ErrDuplicate.
func (r *Repository) CreateReceipt(ctx context.Context, receipt *models.Receipt) error {
	now := r.now()
	id, err := r.insert(ctx,
		`INSERT INTO receipts (donation_id, receipt_number, pdf_url, created_at) VALUES (?, ?, ?, ?)`,
		receipt.DonationID, receipt.ReceiptNumber, receipt.PDFURL, now)
	if err != nil {
		return err
	}
	receipt.ID = id
	receipt.CreatedAt = now
	return nil
}

// GetReceiptDetail retrieves a receipt joined with its donation, donor and
// campaign.
func (r *Repository) GetReceiptDetail(ctx context.Context, id int64) (*models.ReceiptDetail, error) {
	var row receiptRow
	if err := r.get(ctx, &row, receiptDetailQuery+` WHERE r.id = ?`, id); err != nil {
		return nil, err
	}
	out := row.toModel()
	return &out, nil
}

// ListReceiptDetails returns receipts newest first. A nil owner returns all
// receipts.
func (r *Repository) ListReceiptDetails(ctx context.Context, owner *ReceiptOwner) ([]models.ReceiptDetail, error) {
	var rows []receiptRow
	var err error
	if owner == nil {
		err = r.selectAll(ctx, &rows, receiptDetailQuery+` ORDER BY r.created_at DESC, r.id DESC`)
	} else {
		err = r.selectAll(ctx, &rows, receiptDetailQuery+`
			WHERE d.user_id = ? OR (d.user_id IS NULL AND ? != '' AND lower(d.donor_email) = lower(?))
			ORDER BY r.created_at DESC, r.id DESC`, owner.UserID, owner.Email, owner.Email)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.ReceiptDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}
