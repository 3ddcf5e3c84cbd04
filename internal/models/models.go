// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models holds the database records of the donation system.
package models

import (
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/money"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "Active"
	CampaignPending   CampaignStatus = "Pending"
	CampaignCompleted CampaignStatus = "Completed"
	CampaignSuspended CampaignStatus = "Suspended"
	CampaignClosed    CampaignStatus = "Closed"
)

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignActive, CampaignPending, CampaignCompleted, CampaignSuspended, CampaignClosed:
		return true
	}
	return false
}

// DefaultCampaignCategory is used when a campaign or donation has no category.
const DefaultCampaignCategory = "General Relief"

// Campaign is a fundraising goal managed by an admin.
type Campaign struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64          `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	TargetAmount    money.Amount   `db:"target_amount" json:"targetAmount"`
	CollectedAmount money.Amount   `db:"collected_amount" json:"collectedAmount"`
	Category        string         `db:"category" json:"category"`
	Status          CampaignStatus `db:"status" json:"status"`
	ImageURL        string         `db:"image_url" json:"imageUrl"`
	StartDate       *time.Time     `db:"start_date" json:"startDate,omitempty"`
	EndDate         *time.Time     `db:"end_date" json:"endDate,omitempty"`
	CreatedBy       *int64         `db:"created_by" json:"createdBy"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// DonationStatus is the verification state of a donation.
type DonationStatus string

const (
	DonationPending  DonationStatus = "Pending"
	DonationVerified DonationStatus = "Verified"
)

// Valid reports whether s is a known donation status.
func (s DonationStatus) Valid() bool {
	return s == DonationPending || s == DonationVerified
}

// CountsTowardsTotal reports whether donations in this status are part of a
// campaign's collected amount.
func (s DonationStatus) CountsTowardsTotal() bool {
	return s.Valid()
}

// PaymentMethod is how the donor paid.
type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "Card"
	PaymentBank         PaymentMethod = "Bank"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentJazzCash     PaymentMethod = "JazzCash"
	PaymentEasyPaisa    PaymentMethod = "EasyPaisa"
	PaymentWallet       PaymentMethod = "Wallet"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentBank, PaymentBankTransfer, PaymentJazzCash, PaymentEasyPaisa, PaymentWallet:
		return true
	}
	return false
}

// DefaultDonationType is used when a donation has no type.
const DefaultDonationType = "General"

// DeletedAccountNote is stamped on donations whose donor deleted their account.
const DeletedAccountNote = "deleted account"

// Donation is a single ledger entry. Donor identity is denormalized so the row
// survives deletion of both the donor account and the campaign.
type Donation struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64          `db:"id" json:"id"`
	UserID         *int64         `db:"user_id" json:"userId"`
	CampaignID     int64          `db:"campaign_id" json:"campaignId"`
	CampaignTitle  string         `db:"campaign_title" json:"campaignTitle"`
	Amount         money.Amount   `db:"amount" json:"amount"`
	PaymentMethod  PaymentMethod  `db:"payment_method" json:"paymentMethod"`
	DonationType   string         `db:"donation_type" json:"donationType"`
	Category       string         `db:"category" json:"category"`
	DonorName      string         `db:"donor_name" json:"donorName"`
	DonorEmail     string         `db:"donor_email" json:"donorEmail"`
	Status         DonationStatus `db:"status" json:"status"`
	DonorNote      string         `db:"donor_note" json:"donorNote,omitempty"`
	DonorDeletedAt *time.Time     `db:"donor_deleted_at" json:"donorDeletedAt,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// OwnedBy reports whether the donation belongs to the given account. Donations
// whose donor link was severed match on the stored donor e-mail.
func (d *Donation) OwnedBy(userID int64, email string) bool {
	if d.UserID != nil {
		return *d.UserID == userID
	}
	return email != "" && strings.EqualFold(d.DonorEmail, email)
}

// DonationWithDonor is a donation joined with the linked donor account, if any.
type DonationWithDonor struct {
	Donation
	Donor *UserSummary `json:"donor"`
}

// Receipt acknowledges a donation.
type Receipt struct {
	ID            int64     `db:"id" json:"id"`
	DonationID    int64     `db:"donation_id" json:"donationId"`
	ReceiptNumber string    `db:"receipt_number" json:"receiptNumber"`
	PDFURL        string    `db:"pdf_url" json:"pdfUrl"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ReceiptDetail is a receipt joined with its donation, donor and campaign.
type ReceiptDetail struct {
	Receipt
	Donation ReceiptDonation `json:"donation"`
}

// ReceiptDonation is the donation part of a ReceiptDetail.
type ReceiptDonation struct {
	Donation
	Donor    *UserSummary     `json:"donor"`
	Campaign *CampaignSummary `json:"campaign"`
}

// CampaignSummary is the campaign part of a joined read. Nil when the campaign
// was deleted after the donation was made.
type CampaignSummary struct {
	ID       int64          `json:"id"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Status   CampaignStatus `json:"status"`
}
