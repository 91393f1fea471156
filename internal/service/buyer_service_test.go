package service

import (
	"context"
	"errors"
	"testing"

	"einvoice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBuyerService_CRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.buyers.CreateBuyer(ctx, e.actor, BuyerRequest{NTNCNIC: "7654321", BusinessName: "Buyer Co", Province: "Sindh"})
	require.NoError(t, err)

	_, err = e.buyers.CreateBuyer(ctx, e.actor, BuyerRequest{NTNCNIC: "7654321", BusinessName: "Again"})
	assert.ErrorIs(t, err, ErrConflict)

	id := uuid.MustParse(created.ID)
	updated, err := e.buyers.UpdateBuyer(ctx, e.actor, id, BuyerRequest{NTNCNIC: "7654321", BusinessName: "Buyer Company", Province: "Sindh"})
	require.NoError(t, err)
	assert.Equal(t, "Buyer Company", updated.BusinessName)

	list, total, err := e.buyers.ListBuyers(ctx, e.actor, "company", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, created.ID, list[0].ID)

	require.NoError(t, e.buyers.DeleteBuyer(ctx, e.actor, id))
	_, err = e.buyers.GetBuyer(ctx, e.actor, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuyerService_CheckRegistrationIsCached(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fbr.On("RegistrationType", mock.Anything, "fbr-token", "7654321", mock.Anything).
		Return(model.RegistrationRegistered, nil).Once()

	first, err := e.buyers.CheckRegistration(ctx, e.actor, " 7654321 ")
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationRegistered, first.RegistrationType)
	assert.False(t, first.Cached)

	second, err := e.buyers.CheckRegistration(ctx, e.actor, "7654321")
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationRegistered, second.RegistrationType)
	assert.True(t, second.Cached)

	e.fbr.AssertNumberOfCalls(t, "RegistrationType", 1)

	_, err = e.buyers.CheckRegistration(ctx, e.actor, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuyerService_RefreshStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.buyers.CreateBuyer(ctx, e.actor, BuyerRequest{NTNCNIC: "1112223", BusinessName: "Walk-in"})
	require.NoError(t, err)

	e.fbr.On("RegistrationType", mock.Anything, "fbr-token", "1112223", mock.Anything).
		Return("", errors.New("connection reset")).Once()
	_, err = e.buyers.RefreshStatus(ctx, e.actor, uuid.MustParse(created.ID))
	assert.ErrorIs(t, err, ErrFBRUnavailable)

	e.fbr.On("RegistrationType", mock.Anything, "fbr-token", "1112223", mock.Anything).
		Return(model.RegistrationUnregistered, nil).Once()
	refreshed, err := e.buyers.RefreshStatus(ctx, e.actor, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationUnregistered, refreshed.RegistrationType)
	assert.NotNil(t, refreshed.StatusCheckedAt)
}
