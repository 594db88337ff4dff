package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, id, code string, status models.BookingStatus) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), models.Booking{
		ID:          id,
		QRCode:      code,
		Status:      status,
		TicketCount: 1,
	}))
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	s := NewStore()
	seed(t, s, "b1", "CODE", models.BookingStatusConfirmed)

	err := s.Create(context.Background(), models.Booking{ID: "b2", QRCode: "CODE", Status: models.BookingStatusConfirmed, TicketCount: 1})
	assert.ErrorIs(t, err, bookings.ErrDuplicateCode)
}

func TestFindByCodeIsExactMatch(t *testing.T) {
	s := NewStore()
	seed(t, s, "b1", "MI3AD-001", models.BookingStatusConfirmed)

	b, err := s.FindByCode(context.Background(), "MI3AD-001")
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)

	_, err = s.FindByCode(context.Background(), "mi3ad-001")
	assert.ErrorIs(t, err, bookings.ErrNotFound)
	_, err = s.FindByCode(context.Background(), " MI3AD-001")
	assert.ErrorIs(t, err, bookings.ErrNotFound)
}

func TestFindReturnsCopy(t *testing.T) {
	s := NewStore()
	seed(t, s, "b1", "C", models.BookingStatusConfirmed)

	b, err := s.FindByID(context.Background(), "b1")
	require.NoError(t, err)
	b.Status = models.BookingStatusUsed

	again, err := s.FindByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, again.Status)
}

func TestCompareAndSetStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seed(t, s, "b1", "C", models.BookingStatusConfirmed)

	ok, err := s.CompareAndSetStatus(ctx, "b1", models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndSetStatus(ctx, "b1", models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)
	assert.False(t, ok)

	b, _ := s.FindByID(ctx, "b1")
	assert.Equal(t, models.BookingStatusUsed, b.Status)
	assert.False(t, b.UsedAt.IsZero())

	_, err = s.CompareAndSetStatus(ctx, "missing", models.BookingStatusConfirmed, models.BookingStatusUsed)
	assert.ErrorIs(t, err, bookings.ErrNotFound)
}

func TestCompareAndSetStatusConcurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seed(t, s, "b1", "C", models.BookingStatusConfirmed)

	const workers = 50
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSetStatus(ctx, "b1", models.BookingStatusConfirmed, models.BookingStatusUsed)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestListAndCount(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Create(ctx, models.Booking{
			ID: fmt.Sprintf("b%d", i), EventID: "ev1", QRCode: fmt.Sprintf("C%d", i),
			Status: models.BookingStatusConfirmed, TicketCount: 1,
		}))
	}
	require.NoError(t, s.Create(ctx, models.Booking{
		ID: "other", EventID: "ev2", QRCode: "O", Status: models.BookingStatusCancelled, TicketCount: 1,
	}))
	_, err := s.CompareAndSetStatus(ctx, "b0", models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)

	list, err := s.List(ctx, models.BookingFilter{EventID: "ev1"})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	used, err := s.List(ctx, models.BookingFilter{Status: models.BookingStatusUsed})
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "b0", used[0].ID)

	counts, err := s.CountByStatus(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.BookingStatusConfirmed])
	assert.Equal(t, 1, counts[models.BookingStatusUsed])
	assert.Equal(t, 0, counts[models.BookingStatusCancelled])
}
