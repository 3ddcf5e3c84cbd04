// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/donations/internal/models"
	"github.com/labstack/echo/v4"
)

type receiptRequest struct {
	DonationID int64 `json:"donationId"`
}

type receiptResponse struct {
	Message string          `json:"message"`
	Receipt *models.Receipt `json:"receipt"`
}

// CreateReceipt issues a receipt for a donation of the caller.
func (h *Handlers) CreateReceipt(c echo.Context) error {
	var req receiptRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.receipts.Create(c.Request().Context(), caller(c), req.DonationID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, receiptResponse{Message: "Receipt created", Receipt: r})
}

// ListReceipts lists the receipts visible to the caller.
func (h *Handlers) ListReceipts(c echo.Context) error {
	list, err := h.receipts.List(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// GetReceipt returns one receipt with its donation.
func (h *Handlers) GetReceipt(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.receipts.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}
