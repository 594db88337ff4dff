package db_test

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/bookings/db"
	"ms-redemption/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every new connection would get its own empty :memory: database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })

	return &db.DB{Bun: bunDB}, bunDB
}

func newBooking(code string, status models.BookingStatus) models.Booking {
	return models.Booking{
		ID:          uuid.New().String(),
		EventID:     "event-1",
		QRCode:      code,
		Status:      status,
		TicketCount: 2,
		TotalPrice:  40,
	}
}

func TestCreateAndFind(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	b := newBooking("MI3AD-001", models.BookingStatusConfirmed)
	require.NoError(t, store.Create(ctx, b))

	byID, err := store.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "MI3AD-001", byID.QRCode)
	assert.Equal(t, models.BookingStatusConfirmed, byID.Status)
	assert.Equal(t, 2, byID.TicketCount)
	assert.Equal(t, 40.0, byID.TotalPrice)
	assert.True(t, byID.UsedAt.IsZero())

	byCode, err := store.FindByCode(ctx, "MI3AD-001")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byCode.ID)

	_, err = store.FindByCode(ctx, "mi3ad-001")
	assert.ErrorIs(t, err, bookings.ErrNotFound)

	_, err = store.FindByID(ctx, "non-existent")
	assert.ErrorIs(t, err, bookings.ErrNotFound)
}

func TestCreateDuplicateCode(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newBooking("SAME", models.BookingStatusConfirmed)))
	err := store.Create(ctx, newBooking("SAME", models.BookingStatusConfirmed))
	assert.ErrorIs(t, err, bookings.ErrDuplicateCode)
}

func TestCompareAndSetStatus(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	b := newBooking("C1", models.BookingStatusConfirmed)
	require.NoError(t, store.Create(ctx, b))

	ok, err := store.CompareAndSetStatus(ctx, b.ID, models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSetStatus(ctx, b.ID, models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := store.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusUsed, updated.Status)
	assert.False(t, updated.UsedAt.IsZero())

	_, err = store.CompareAndSetStatus(ctx, "missing", models.BookingStatusConfirmed, models.BookingStatusUsed)
	assert.ErrorIs(t, err, bookings.ErrNotFound)
}

func TestCompareAndSetStatusConcurrent(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	b := newBooking("RACE", models.BookingStatusConfirmed)
	require.NoError(t, store.Create(ctx, b))

	const workers = 20
	var wins, losses int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndSetStatus(ctx, b.ID, models.BookingStatusConfirmed, models.BookingStatusUsed)
			if err != nil {
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			} else {
				atomic.AddInt32(&losses, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(workers-1), losses)
}

func TestListAndCountByStatus(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	a := newBooking("A", models.BookingStatusConfirmed)
	b := newBooking("B", models.BookingStatusConfirmed)
	c := newBooking("C", models.BookingStatusCancelled)
	other := newBooking("D", models.BookingStatusConfirmed)
	other.EventID = "event-2"
	for _, booking := range []models.Booking{a, b, c, other} {
		require.NoError(t, store.Create(ctx, booking))
	}
	_, err := store.CompareAndSetStatus(ctx, a.ID, models.BookingStatusConfirmed, models.BookingStatusUsed)
	require.NoError(t, err)

	all, err := store.List(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	ev1, err := store.List(ctx, models.BookingFilter{EventID: "event-1"})
	require.NoError(t, err)
	assert.Len(t, ev1, 3)

	used, err := store.List(ctx, models.BookingFilter{Status: models.BookingStatusUsed})
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, a.ID, used[0].ID)

	counts, err := store.CountByStatus(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.BookingStatusUsed])
	assert.Equal(t, 1, counts[models.BookingStatusConfirmed])
	assert.Equal(t, 1, counts[models.BookingStatusCancelled])

	total, err := store.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total[models.BookingStatusConfirmed])
}

func TestMigrateIsIdempotent(t *testing.T) {
	_, bunDB := setupTestDB(t)
	assert.NoError(t, db.Migrate(context.Background(), bunDB))
}
