// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/donations/internal/handlers"
	"codeberg.org/oliverandrich/donations/internal/middleware"
	"codeberg.org/oliverandrich/donations/internal/models"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/token"
	"github.com/labstack/echo/v4"
)

// routerDeps holds dependencies needed to set up routes
type routerDeps struct {
	h      *handlers.Handlers
	tokens *token.Service
	repo   *repository.Repository
}

func setupRoutes(e *echo.Echo, deps *routerDeps) {
	h := deps.h
	authn := middleware.Authenticate(deps.tokens, deps.repo)
	admin := []echo.MiddlewareFunc{authn, middleware.RequireRole(models.RoleAdmin)}

	e.GET("/health", h.Health)

	api := e.Group("/api")

	// Accounts
	users := api.Group("/users")
	users.POST("/signup", h.Signup)
	users.POST("/login", h.Login)
	users.GET("/verify/:token", h.VerifyEmail)
	users.POST("/resend-verification", h.ResendVerification)
	users.POST("/forgot-password", h.ForgotPassword)
	users.POST("/reset-password/:token", h.ResetPassword)
	users.GET("/me", h.Me, authn)
	users.PUT("/profile", h.UpdateProfile, authn)
	users.PUT("/password", h.ChangePassword, authn)
	users.POST("/profile-picture", h.UpdateProfilePicture, authn)
	users.DELETE("/delete-account", h.DeleteAccount, authn)
	users.GET("", h.ListUsers, admin...)
	users.DELETE("/:id", h.DeactivateUser, admin...)

	// Campaigns
	campaigns := api.Group("/campaigns")
	campaigns.GET("", h.ListCampaigns)
	campaigns.GET("/campaign/:id", h.GetCampaign)
	campaigns.GET("/campaign/:id/donors", h.CampaignDonors, authn)
	campaigns.POST("/campaign", h.CreateCampaign, admin...)
	campaigns.PUT("/campaign/:id", h.UpdateCampaign, admin...)
	campaigns.DELETE("/campaign/:id", h.DeleteCampaign, admin...)

	// Donations
	donations := api.Group("/donations")
	donations.GET("/public", h.PublicDonations)
	donations.POST("/donation", h.CreateDonation, authn)
	donations.GET("/my-donations", h.MyDonations, authn)
	donations.GET("/donation/:id", h.GetDonation, authn)
	donations.GET("/donation", h.ListDonations, admin...)
	donations.PUT("/donation/:id", h.UpdateDonation, admin...)
	donations.DELETE("/donation/:id", h.DeleteDonation, admin...)

	// Receipts
	receipts := api.Group("/receipts")
	receipts.POST("/receipt", h.CreateReceipt, authn)
	receipts.GET("/receipt", h.ListReceipts, authn)
	receipts.GET("/receipt/:id", h.GetReceipt, authn)

	// Google sign-in
	api.GET("/auth/google", h.GoogleLogin)
	api.GET("/auth/google/callback", h.GoogleCallback)
}
