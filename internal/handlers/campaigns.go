// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/money"
	"codeberg.org/oliverandrich/donations/internal/services/campaigns"
	"github.com/labstack/echo/v4"
)

// campaignForm is a campaign request sent either as JSON or as a form. Nil
// fields were not supplied.
type campaignForm struct {
	Title        *string       `json:"title" validate:"omitempty,max=200"`
	Description  *string       `json:"description" validate:"omitempty,max=5000"`
	TargetAmount *money.Amount `json:"targetAmount"`
	Category     *string       `json:"category" validate:"omitempty,max=100"`
	Status       *string       `json:"status"`
	StartDate    *string       `json:"startDate"`
	EndDate      *string       `json:"endDate"`

	startDate *time.Time
	endDate   *time.Time
	image     multipart.File
}

func (f *campaignForm) close() {
	if f.image != nil {
		_ = f.image.Close()
	}
}

func (f *campaignForm) status() *models.CampaignStatus {
	if f.Status == nil || strings.TrimSpace(*f.Status) == "" {
		return nil
	}
	s := models.CampaignStatus(strings.TrimSpace(*f.Status))
	return &s
}

func isForm(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEMultipartForm) || strings.HasPrefix(ct, echo.MIMEApplicationForm)
}

// decodeCampaign reads a campaign request. Multipart requests may carry an
// image in the field "image".
func decodeCampaign(c echo.Context) (*campaignForm, error) {
	f := &campaignForm{}

	if isForm(c) {
		params, err := c.FormParams()
		if err != nil {
			return nil, apperr.Validation("Invalid request body.")
		}
		value := func(name string) *string {
			if vals, ok := params[name]; ok && len(vals) > 0 {
				v := vals[0]
				return &v
			}
			return nil
		}
		f.Title = value("title")
		f.Description = value("description")
		f.Category = value("category")
		f.Status = value("status")
		f.StartDate = value("startDate")
		f.EndDate = value("endDate")
		if raw := value("targetAmount"); raw != nil && strings.TrimSpace(*raw) != "" {
			amount, err := money.Parse(*raw)
			switch {
			case errors.Is(err, money.ErrRange):
				return nil, apperr.Validation("targetAmount is too large.")
			case err != nil:
				return nil, apperr.Validation("targetAmount must be a number.")
			}
			f.TargetAmount = &amount
		}

		fh, err := c.FormFile("image")
		switch {
		case err == nil:
			file, openErr := fh.Open()
			if openErr != nil {
				return nil, apperr.Validation("No image uploaded")
			}
			f.image = file
		case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
			return nil, apperr.Validation("Invalid request body.")
		}
	} else if err := c.Bind(f); err != nil {
		return nil, apperr.Validation("Invalid request body.")
	}

	if c.Echo().Validator != nil {
		if err := c.Validate(f); err != nil {
			f.close()
			return nil, err
		}
	}

	var err error
	if f.StartDate != nil {
		if f.startDate, err = parseDate("startDate", *f.StartDate); err != nil {
			f.close()
			return nil, err
		}
	}
	if f.EndDate != nil {
		if f.endDate, err = parseDate("endDate", *f.EndDate); err != nil {
			f.close()
			return nil, err
		}
	}
	return f, nil
}

type campaignResponse struct {
	Message  string           `json:"message"`
	Campaign *models.Campaign `json:"campaign"`
}

// CreateCampaign stores a new campaign. Admin only.
func (h *Handlers) CreateCampaign(c echo.Context) error {
	f, err := decodeCampaign(c)
	if err != nil {
		return err
	}
	defer f.close()

	p := campaigns.CreateParams{
		TargetAmount: f.TargetAmount,
		StartDate:    f.startDate,
		EndDate:      f.endDate,
	}
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Category != nil {
		p.Category = *f.Category
	}
	if s := f.status(); s != nil {
		p.Status = *s
	}
	if f.image != nil {
		p.Image = f.image
	}

	campaign, err := h.campaigns.Create(c.Request().Context(), caller(c), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, campaignResponse{Message: "Campaign created", Campaign: campaign})
}

// ListCampaigns returns all campaigns.
func (h *Handlers) ListCampaigns(c echo.Context) error {
	list, err := h.campaigns.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// GetCampaign returns one campaign.
func (h *Handlers) GetCampaign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	campaign, err := h.campaigns.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign changes a campaign. Admin only.
func (h *Handlers) UpdateCampaign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	f, err := decodeCampaign(c)
	if err != nil {
		return err
	}
	defer f.close()

	p := campaigns.UpdateParams{
		Title:        f.Title,
		Description:  f.Description,
		TargetAmount: f.TargetAmount,
		Category:     f.Category,
		Status:       f.status(),
		StartDate:    f.startDate,
		EndDate:      f.endDate,
	}
	if f.image != nil {
		p.Image = f.image
	}

	campaign, err := h.campaigns.Update(c.Request().Context(), caller(c), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, campaignResponse{Message: "Campaign updated", Campaign: campaign})
}

// DeleteCampaign removes a campaign. Admin only.
func (h *Handlers) DeleteCampaign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.campaigns.Delete(c.Request().Context(), caller(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Campaign deleted"})
}

// CampaignDonors lists the donations of a campaign for its creator or an
// admin.
func (h *Handlers) CampaignDonors(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.campaigns.Donors(c.Request().Context(), caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
