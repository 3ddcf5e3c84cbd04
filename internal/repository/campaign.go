// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
)

const campaignColumns = `id, title, description, target_amount, collected_amount, category,
	status, image_url, start_date, end_date, created_by, created_at, updated_at`

// qualifyingSum is the collected total of the campaign bound to the outer
// "campaigns" row.
const qualifyingSum = `(SELECT COALESCE(SUM(d.amount), 0) FROM donations d
	WHERE d.campaign_id = campaigns.id AND d.status IN ('Pending', 'Verified'))`

// CreateCampaign inserts campaign and fills in its ID and timestamps.
func (r *Repository) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	now := r.now()
	id, err := r.insert(ctx,
		`INSERT INTO campaigns (title, description, target_amount, collected_amount, category,
			status, image_url, start_date, end_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.TargetAmount, c.CollectedAmount, c.Category,
		c.Status, c.ImageURL, c.StartDate, c.EndDate, c.CreatedBy, now, now)
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (r *Repository) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	var c models.Campaign
	if err := r.get(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCampaigns returns all campaigns, newest first.
func (r *Repository) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	campaigns := []models.Campaign{}
	err := r.selectAll(ctx, &campaigns,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// CountCampaigns returns the number of campaigns.
func (r *Repository) CountCampaigns(ctx context.Context) (int64, error) {
	var count int64
	err := r.get(ctx, &count, `SELECT count(*) FROM campaigns`)
	return count, err
}

// UpdateCampaign writes the editable columns of c. The collected amount is
// left alone.
func (r *Repository) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	now := r.now()
	err := r.execOne(ctx,
		`UPDATE campaigns SET title = ?, description = ?, target_amount = ?, category = ?,
			status = ?, image_url = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, c.TargetAmount, c.Category,
		c.Status, c.ImageURL, c.StartDate, c.EndDate, now,
		c.ID)
	if err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// DeleteCampaign removes a campaign. Its donations are kept.
func (r *Repository) DeleteCampaign(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
}

// AdjustCollected adds delta to a campaign's collected amount, clamping at
// zero. It reports whether the campaign row exists.
func (r *Repository) AdjustCollected(ctx context.Context, id int64, delta money.Amount) (bool, error) {
	res, err := r.exec(ctx,
		`UPDATE campaigns SET collected_amount = MAX(collected_amount + ?, 0), updated_at = ? WHERE id = ?`,
		delta, r.now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecomputeCollected overwrites one campaign's collected amount with the sum
// of its qualifying donations and returns the new value.
func (r *Repository) RecomputeCollected(ctx context.Context, id int64) (money.Amount, error) {
	if err := r.execOne(ctx,
		`UPDATE campaigns SET collected_amount = `+qualifyingSum+` WHERE id = ?`, id); err != nil {
		return 0, err
	}
	var total money.Amount
	err := r.get(ctx, &total, `SELECT collected_amount FROM campaigns WHERE id = ?`, id)
	return total, err
}

// RecomputeAllCollected overwrites every campaign's collected amount in a
// single statement and returns the number of campaigns touched.
func (r *Repository) RecomputeAllCollected(ctx context.Context) (int64, error) {
	res, err := r.exec(ctx, `UPDATE campaigns SET collected_amount = `+qualifyingSum)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SumQualifyingDonations returns the qualifying donation total of a campaign
// without touching the stored value.
func (r *Repository) SumQualifyingDonations(ctx context.Context, campaignID int64) (money.Amount, error) {
	var total money.Amount
	err := r.get(ctx, &total,
		`SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = ? AND status IN ('Pending', 'Verified')`,
		campaignID)
	return total, err
}
