// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUser_Provider(t *testing.T) {
	hash := "$2a$10$hash"
	empty := ""
	subject := "g-1"

	assert.Equal(t, "local", (&models.User{PasswordHash: &hash}).Provider())
	assert.Equal(t, "local", (&models.User{GoogleID: &empty}).Provider())
	assert.Equal(t, "google", (&models.User{GoogleID: &subject}).Provider())
}

func TestUser_HasPassword(t *testing.T) {
	hash := "$2a$10$hash"
	empty := ""

	assert.True(t, (&models.User{PasswordHash: &hash}).HasPassword())
	assert.False(t, (&models.User{PasswordHash: &empty}).HasPassword())
	assert.False(t, (&models.User{}).HasPassword())
}

func TestUser_IsDeleted(t *testing.T) {
	now := time.Now()

	assert.False(t, (&models.User{}).IsDeleted())
	assert.True(t, (&models.User{DeletedAt: &now}).IsDeleted())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, models.RoleUser.Valid())
	assert.True(t, models.RoleAdmin.Valid())
	assert.False(t, models.Role("owner").Valid())
}

func TestCampaignStatus_Valid(t *testing.T) {
	for _, s := range []models.CampaignStatus{
		models.CampaignActive, models.CampaignPending, models.CampaignCompleted,
		models.CampaignSuspended, models.CampaignClosed,
	} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, models.CampaignStatus("active").Valid())
	assert.False(t, models.CampaignStatus("").Valid())
}

func TestDonationStatus(t *testing.T) {
	assert.True(t, models.DonationPending.CountsTowardsTotal())
	assert.True(t, models.DonationVerified.CountsTowardsTotal())
	assert.False(t, models.DonationStatus("Refunded").Valid())
	assert.False(t, models.DonationStatus("Refunded").CountsTowardsTotal())
}

func TestPaymentMethod_Valid(t *testing.T) {
	tests := []struct {
		method models.PaymentMethod
		valid  bool
	}{
		{models.PaymentCard, true},
		{models.PaymentBankTransfer, true},
		{models.PaymentJazzCash, true},
		{models.PaymentEasyPaisa, true},
		{models.PaymentWallet, true},
		{"Cash", false},
		{"card", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.method.Valid())
		})
	}
}

func TestDonation_OwnedBy(t *testing.T) {
	owner := int64(7)

	linked := &models.Donation{UserID: &owner, DonorEmail: "sana@example.com"}
	assert.True(t, linked.OwnedBy(7, "other@example.com"))
	assert.False(t, linked.OwnedBy(8, "sana@example.com"))

	severed := &models.Donation{DonorEmail: "Sana@Example.com"}
	assert.True(t, severed.OwnedBy(8, "sana@example.com"))
	assert.False(t, severed.OwnedBy(8, ""))
	assert.False(t, severed.OwnedBy(8, "omar@example.com"))
}
