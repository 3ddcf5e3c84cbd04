// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"net/http"
	"testing"

	"codeberg.org/oliverandrich/donations/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonationFlow_Wells(t *testing.T) {
	f := newFixture(t)
	admin := testutil.NewTestAdmin(t, f.repo, "admin@example.com")
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")

	rec := f.serve(t, f.h.CreateCampaign, jsonRequest(http.MethodPost, "/api/campaigns/campaign",
		`{"title":"Help Build Clean Water Wells","targetAmount":1000}`), admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	campaignID := int64(decode(t, rec)["campaign"].(map[string]any)["id"].(float64))

	rec = f.serve(t, f.h.CreateDonation, jsonRequest(http.MethodPost, "/api/donations/donation",
		`{"campaignId":`+itoa(campaignID)+`,"amount":250,"paymentMethod":"Card"}`), donor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Donation created", body["message"])
	donation := body["donation"].(map[string]any)
	assert.Equal(t, "Pending", donation["status"])
	assert.Equal(t, "Sana", donation["donorName"])
	assert.Equal(t, "sana@example.com", donation["donorEmail"])
	assert.Equal(t, "Help Build Clean Water Wells", donation["campaignTitle"])
	donationID := itoa(int64(donation["id"].(float64)))

	rec = f.serve(t, f.h.GetCampaign, jsonRequest(http.MethodGet, "/api/campaigns/campaign/"+itoa(campaignID), ""), nil, "id", itoa(campaignID))
	assert.InDelta(t, 250.0, decode(t, rec)["collectedAmount"], 0.001)

	rec = f.serve(t, f.h.UpdateDonation, jsonRequest(http.MethodPut, "/api/donations/donation/"+donationID,
		`{"status":"Verified"}`), admin, "id", donationID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "Donation updated", body["message"])
	assert.Equal(t, "Verified", body["donation"].(map[string]any)["status"])

	rec = f.serve(t, f.h.ListCampaigns, jsonRequest(http.MethodGet, "/api/campaigns", ""), nil)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.InDelta(t, 250.0, list[0]["collectedAmount"], 0.001)
}

func TestCreateDonation_Failures(t *testing.T) {
	f := newFixture(t)
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	id := itoa(c.ID)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"missing amount", `{"campaignId":` + id + `,"paymentMethod":"Card"}`, http.StatusBadRequest, "campaignId, amount, paymentMethod are required."},
		{"missing campaign", `{"amount":10,"paymentMethod":"Card"}`, http.StatusBadRequest, "campaignId, amount, paymentMethod are required."},
		{"zero amount", `{"campaignId":` + id + `,"amount":0,"paymentMethod":"Card"}`, http.StatusBadRequest, "amount must be greater than 0."},
		{"negative amount", `{"campaignId":` + id + `,"amount":-5,"paymentMethod":"Card"}`, http.StatusBadRequest, "amount must be greater than 0."},
		{"bad method", `{"campaignId":` + id + `,"amount":10,"paymentMethod":"Cash"}`, http.StatusBadRequest, "Invalid payment method."},
		{"unknown campaign", `{"campaignId":999,"amount":10,"paymentMethod":"Card"}`, http.StatusNotFound, "Campaign not found"},
		{"amount too large", `{"campaignId":` + id + `,"amount":184467440737095516.17,"paymentMethod":"Card"}`, http.StatusBadRequest, "Invalid request body."},
		{"amount not a number", `{"campaignId":` + id + `,"amount":"lots","paymentMethod":"Card"}`, http.StatusBadRequest, "Invalid request body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(t, f.h.CreateDonation, jsonRequest(http.MethodPost, "/api/donations/donation", tt.body), donor)
			assertFailure(t, rec, tt.status, tt.message)
		})
	}
}

func TestMyDonations(t *testing.T) {
	f := newFixture(t)
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	other := testutil.NewTestUser(t, f.repo, "Omar", "omar@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	testutil.NewTestDonation(t, f.repo, c, donor, 10)
	testutil.NewTestDonation(t, f.repo, c, donor, 20)
	testutil.NewTestDonation(t, f.repo, c, other, 30)

	rec := f.serve(t, f.h.MyDonations, jsonRequest(http.MethodGet, "/api/donations/my-donations", ""), donor)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)
}

func TestListDonations_AdminOnly(t *testing.T) {
	f := newFixture(t)
	admin := testutil.NewTestAdmin(t, f.repo, "admin@example.com")
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	testutil.NewTestDonation(t, f.repo, c, donor, 10)

	rec := f.serve(t, f.h.ListDonations, jsonRequest(http.MethodGet, "/api/donations/donation", ""), admin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "sana@example.com", list[0]["donor"].(map[string]any)["email"])

	rec = f.serve(t, f.h.ListDonations, jsonRequest(http.MethodGet, "/api/donations/donation", ""), donor)
	assertFailure(t, rec, http.StatusForbidden, "Access denied. Admin only.")
}

func TestGetDonation_Ownership(t *testing.T) {
	f := newFixture(t)
	admin := testutil.NewTestAdmin(t, f.repo, "admin@example.com")
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	other := testutil.NewTestUser(t, f.repo, "Omar", "omar@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, f.repo, c, donor, 10)
	id := itoa(d.ID)

	rec := f.serve(t, f.h.GetDonation, jsonRequest(http.MethodGet, "/api/donations/donation/"+id, ""), donor, "id", id)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(t, f.h.GetDonation, jsonRequest(http.MethodGet, "/api/donations/donation/"+id, ""), admin, "id", id)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.serve(t, f.h.GetDonation, jsonRequest(http.MethodGet, "/api/donations/donation/"+id, ""), other, "id", id)
	assertFailure(t, rec, http.StatusForbidden, "Not authorized to view this donation.")

	rec = f.serve(t, f.h.GetDonation, jsonRequest(http.MethodGet, "/api/donations/donation/999", ""), admin, "id", "999")
	assertFailure(t, rec, http.StatusNotFound, "Donation not found")
}

func TestUpdateDonation_Failures(t *testing.T) {
	f := newFixture(t)
	admin := testutil.NewTestAdmin(t, f.repo, "admin@example.com")
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, f.repo, c, donor, 10)
	id := itoa(d.ID)

	rec := f.serve(t, f.h.UpdateDonation, jsonRequest(http.MethodPut, "/api/donations/donation/"+id, `{"status":"Verified"}`), donor, "id", id)
	assertFailure(t, rec, http.StatusForbidden, "Access denied. Admin only.")

	rec = f.serve(t, f.h.UpdateDonation, jsonRequest(http.MethodPut, "/api/donations/donation/"+id, `{"status":"Refunded"}`), admin, "id", id)
	assertFailure(t, rec, http.StatusBadRequest, "Invalid status. Use Pending or Verified.")
}

func TestDeleteDonation(t *testing.T) {
	f := newFixture(t)
	admin := testutil.NewTestAdmin(t, f.repo, "admin@example.com")
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	cid := itoa(c.ID)

	rec := f.serve(t, f.h.CreateDonation, jsonRequest(http.MethodPost, "/api/donations/donation",
		`{"campaignId":`+cid+`,"amount":75,"paymentMethod":"JazzCash"}`), donor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := itoa(int64(decode(t, rec)["donation"].(map[string]any)["id"].(float64)))

	rec = f.serve(t, f.h.DeleteDonation, jsonRequest(http.MethodDelete, "/api/donations/donation/"+id, ""), admin, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Donation deleted", decode(t, rec)["message"])

	rec = f.serve(t, f.h.GetCampaign, jsonRequest(http.MethodGet, "/api/campaigns/campaign/"+cid, ""), nil, "id", cid)
	assert.InDelta(t, 0.0, decode(t, rec)["collectedAmount"], 0.001)
}

func TestPublicDonations(t *testing.T) {
	f := newFixture(t)
	donor := testutil.NewTestUser(t, f.repo, "Sana", "sana@example.com")
	c := testutil.NewTestCampaign(t, f.repo, "Wells", 1000)
	testutil.NewTestDonation(t, f.repo, c, donor, 10)
	testutil.NewTestDonation(t, f.repo, c, nil, 15)

	rec := f.serve(t, f.h.PublicDonations, jsonRequest(http.MethodGet, "/api/donations/public", ""), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 25.0, body["totalAmount"], 0.001)
	assert.InDelta(t, 2.0, body["totalDonations"], 0.001)
	assert.Len(t, body["recentDonations"], 2)
	assert.NotContains(t, rec.Body.String(), "sana@example.com")
}
