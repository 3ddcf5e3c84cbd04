// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package receipts_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"codeberg.org/oliverandrich/donations/internal/auth"
	"codeberg.org/oliverandrich/donations/internal/repository"
	"codeberg.org/oliverandrich/donations/internal/services/receipts"
	"codeberg.org/oliverandrich/donations/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newService(t *testing.T) (*receipts.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	svc := receipts.NewService(repo)
	svc.SetClock(func() time.Time { return fixedTime })
	return svc, repo
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "REC-1741944413589", receipts.Number(fixedTime))
}

func TestCreate(t *testing.T) {
	svc, repo := newService(t)
	user := testutil.NewTestUser(t, repo, "Ayesha", "ayesha@example.com")
	c := testutil.NewTestCampaign(t, repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, repo, c, user, 100)

	r, err := svc.Create(context.Background(), auth.IdentityFromUser(user), d.ID)

	require.NoError(t, err)
	assert.Equal(t, d.ID, r.DonationID)
	assert.Equal(t, "REC-1741944413589", r.ReceiptNumber)
	assert.Empty(t, r.PDFURL)
}

func TestCreate_Collision(t *testing.T) {
	svc, repo := newService(t)
	admin := auth.IdentityFromUser(testutil.NewTestAdmin(t, repo, "admin@example.com"))
	c := testutil.NewTestCampaign(t, repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, repo, c, nil, 100)

	_, err := svc.Create(context.Background(), admin, d.ID)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), admin, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestCreate_Failures(t *testing.T) {
	svc, repo := newService(t)
	owner := testutil.NewTestUser(t, repo, "Ayesha", "ayesha@example.com")
	other := auth.IdentityFromUser(testutil.NewTestUser(t, repo, "Sana", "sana@example.com"))
	c := testutil.NewTestCampaign(t, repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, repo, c, owner, 100)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))

	_, err = svc.Create(ctx, other, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, other, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Create(ctx, other, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestGet(t *testing.T) {
	svc, repo := newService(t)
	owner := testutil.NewTestUser(t, repo, "Ayesha", "ayesha@example.com")
	ownerID := auth.IdentityFromUser(owner)
	other := auth.IdentityFromUser(testutil.NewTestUser(t, repo, "Sana", "sana@example.com"))
	admin := auth.IdentityFromUser(testutil.NewTestAdmin(t, repo, "admin@example.com"))
	c := testutil.NewTestCampaign(t, repo, "Wells", 1000)
	d := testutil.NewTestDonation(t, repo, c, owner, 100)
	ctx := context.Background()

	r, err := svc.Create(ctx, ownerID, d.ID)
	require.NoError(t, err)

	detail, err := svc.Get(ctx, ownerID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ReceiptNumber, detail.ReceiptNumber)
	assert.Equal(t, d.ID, detail.Donation.ID)
	require.NotNil(t, detail.Donation.Donor)
	assert.Equal(t, "Ayesha", detail.Donation.Donor.Name)
	require.NotNil(t, detail.Donation.Campaign)
	assert.Equal(t, "Wells", detail.Donation.Campaign.Title)

	_, err = svc.Get(ctx, admin, r.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, other, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = svc.Get(ctx, ownerID, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestList(t *testing.T) {
	svc, repo := newService(t)
	ayesha := testutil.NewTestUser(t, repo, "Ayesha", "ayesha@example.com")
	sana := testutil.NewTestUser(t, repo, "Sana", "sana@example.com")
	admin := auth.IdentityFromUser(testutil.NewTestAdmin(t, repo, "admin@example.com"))
	c := testutil.NewTestCampaign(t, repo, "Wells", 1000)
	ctx := context.Background()

	clock := fixedTime
	svc.SetClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})

	_, err := svc.Create(ctx, admin, testutil.NewTestDonation(t, repo, c, ayesha, 1).ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, testutil.NewTestDonation(t, repo, c, sana, 2).ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.List(ctx, auth.IdentityFromUser(ayesha))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ayesha@example.com", mine[0].Donation.DonorEmail)

	_, err = svc.List(ctx, nil)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}
