package redemption_test

import (
	"context"
	"errors"
	"testing"

	"ms-redemption/internal/models"
	"ms-redemption/internal/redemption"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionHappyPath(t *testing.T) {
	store := newStore(t, sample...)
	s := redemption.NewSession(redemption.NewEngine(store, nil, nil))
	ctx := context.Background()

	assert.Equal(t, redemption.StateIdle, s.State())
	_, ok := s.Current()
	assert.False(t, ok)

	res, err := s.Scan(ctx, "MI3AD-001")
	require.NoError(t, err)
	assert.Equal(t, redemption.KindValid, res.Kind)
	assert.Equal(t, redemption.StateClassified, s.State())

	res, err = s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, redemption.KindCommitted, res.Kind)
	assert.Equal(t, redemption.StateCommitted, s.State())

	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, redemption.ErrNotConfirmable)

	s.Reset()
	res, err = s.Scan(ctx, "MI3AD-001")
	require.NoError(t, err)
	assert.Equal(t, redemption.KindAlreadyUsed, res.Kind)
}

func TestSessionRefusesConfirmForCancelled(t *testing.T) {
	store := newStore(t, sample...)
	s := redemption.NewSession(redemption.NewEngine(store, nil, nil))
	ctx := context.Background()

	res, err := s.Scan(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, redemption.KindCancelled, res.Kind)

	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, redemption.ErrNotConfirmable)

	b, err := store.FindByID(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, b.Status)
}

func TestSessionRefusesConfirmForNotFoundAndUsed(t *testing.T) {
	s := redemption.NewSession(redemption.NewEngine(newStore(t, sample...), nil, nil))
	ctx := context.Background()

	for _, code := range []string{"DOES-NOT-EXIST", "USED-1"} {
		_, err := s.Scan(ctx, code)
		require.NoError(t, err)
		_, err = s.Confirm(ctx)
		assert.ErrorIs(t, err, redemption.ErrNotConfirmable, code)
		s.Reset()
	}
}

func TestSessionRequiresReset(t *testing.T) {
	s := redemption.NewSession(redemption.NewEngine(newStore(t, sample...), nil, nil))
	ctx := context.Background()

	first, err := s.Scan(ctx, "X")
	require.NoError(t, err)

	res, err := s.Scan(ctx, "MI3AD-001")
	assert.ErrorIs(t, err, redemption.ErrScanInProgress)
	assert.Equal(t, first, res)

	s.Reset()
	assert.Equal(t, redemption.StateIdle, s.State())
	res, err = s.Scan(ctx, "MI3AD-001")
	require.NoError(t, err)
	assert.Equal(t, redemption.KindValid, res.Kind)
}

func TestSessionConfirmBeforeScan(t *testing.T) {
	s := redemption.NewSession(redemption.NewEngine(newStore(t), nil, nil))
	_, err := s.Confirm(context.Background())
	assert.ErrorIs(t, err, redemption.ErrNotConfirmable)
}

func TestSessionRaceLost(t *testing.T) {
	store := newStore(t, sample...)
	engine := redemption.NewEngine(store, nil, nil)
	ctx := context.Background()

	a := redemption.NewSession(engine)
	b := redemption.NewSession(engine)

	_, err := a.Scan(ctx, "MI3AD-001")
	require.NoError(t, err)
	_, err = b.Scan(ctx, "MI3AD-001")
	require.NoError(t, err)

	resA, err := a.Confirm(ctx)
	require.NoError(t, err)
	resB, err := b.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, redemption.KindCommitted, resA.Kind)
	assert.Equal(t, redemption.KindRaceLost, resB.Kind)
	assert.Equal(t, redemption.StateRaceLost, b.State())
}

func TestSessionConfirmRetryAfterOutage(t *testing.T) {
	ctx := context.Background()
	booking := &models.Booking{ID: "b1", QRCode: "C", Status: models.BookingStatusConfirmed, TicketCount: 1}
	used := *booking
	used.Status = models.BookingStatusUsed

	store := new(MockStore)
	store.On("FindByCode", mock.Anything, "C").Return(booking, nil)
	store.On("CompareAndSetStatus", mock.Anything, "b1", models.BookingStatusConfirmed, models.BookingStatusUsed).
		Return(false, errors.New("timeout")).Once()
	store.On("CompareAndSetStatus", mock.Anything, "b1", models.BookingStatusConfirmed, models.BookingStatusUsed).
		Return(true, nil).Once()
	store.On("FindByID", mock.Anything, "b1").Return(&used, nil)

	s := redemption.NewSession(redemption.NewEngine(store, nil, nil))
	_, err := s.Scan(ctx, "C")
	require.NoError(t, err)

	res, err := s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, redemption.KindStoreUnavailable, res.Kind)
	assert.Equal(t, redemption.StateClassified, s.State())

	res, err = s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, redemption.KindCommitted, res.Kind)
	store.AssertExpectations(t)
}
