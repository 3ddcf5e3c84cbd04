// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/services/donations"
	"github.com/labstack/echo/v4"
)

type donationRequest struct {
	CampaignID    int64         `json:"campaignId"`
	CampaignTitle string        `json:"campaignTitle" validate:"max=200"`
	Amount        *money.Amount `json:"amount"`
	PaymentMethod string        `json:"paymentMethod"`
	DonationType  string        `json:"donationType" validate:"max=100"`
	Category      string        `json:"category" validate:"max=100"`
	DonorName     string        `json:"donorName" validate:"max=100"`
	DonorEmail    string        `json:"donorEmail" validate:"max=254"`
}

type donationResponse struct {
	Message  string           `json:"message"`
	Donation *models.Donation `json:"donation"`
}

// CreateDonation records a pending donation for the caller.
func (h *Handlers) CreateDonation(c echo.Context) error {
	var req donationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	d, err := h.donations.Create(c.Request().Context(), caller(c), donations.CreateParams{
		CampaignID:    req.CampaignID,
		CampaignTitle: req.CampaignTitle,
		Amount:        req.Amount,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		DonationType:  req.DonationType,
		Category:      req.Category,
		DonorName:     req.DonorName,
		DonorEmail:    req.DonorEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, donationResponse{Message: "Donation created", Donation: d})
}

// MyDonations lists the caller's donations.
func (h *Handlers) MyDonations(c echo.Context) error {
	list, err := h.donations.ListMine(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// ListDonations lists every donation with its donor. Admin only.
func (h *Handlers) ListDonations(c echo.Context) error {
	list, err := h.donations.ListAll(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// GetDonation returns a donation to its donor or an admin.
func (h *Handlers) GetDonation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.donations.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type donationStatusRequest struct {
	Status string `json:"status"`
}

// UpdateDonation changes the verification status of a donation. Admin only.
func (h *Handlers) UpdateDonation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req donationStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	d, err := h.donations.UpdateStatus(c.Request().Context(), caller(c), id, models.DonationStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, donationResponse{Message: "Donation updated", Donation: d})
}

// DeleteDonation removes a donation and its contribution to the campaign
// total. Admin only.
func (h *Handlers) DeleteDonation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.donations.Delete(c.Request().Context(), caller(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Donation deleted"})
}

// PublicDonations returns the public donation totals and recent donations.
func (h *Handlers) PublicDonations(c echo.Context) error {
	feed, err := h.donations.PublicFeed(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, feed)
}
