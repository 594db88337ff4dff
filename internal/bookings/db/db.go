package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) Create(ctx context.Context, booking models.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	_, err := d.Bun.NewInsert().Model(&booking).Exec(ctx)
	if err == nil {
		return nil
	}

	// The unique constraint on qr_code is the authority; look up which key
	// clashed so callers get a sentinel instead of a driver error.
	taken, existsErr := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("qr_code = ?", booking.QRCode).
		WhereOr("id = ?", booking.ID).
		Exists(ctx)
	if existsErr == nil && taken {
		return bookings.ErrDuplicateCode
	}
	return fmt.Errorf("insert booking %s: %w", booking.ID, err)
}

func (d *DB) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

func (d *DB) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("qr_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// CompareAndSetStatus applies next only when the row still holds expected.
// The check and the write are one UPDATE statement.
func (d *DB) CompareAndSetStatus(ctx context.Context, id string, expected, next models.BookingStatus) (bool, error) {
	now := time.Now().UTC()
	q := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", next).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", expected)
	if next == models.BookingStatusUsed {
		q = q.Set("used_at = ?", now)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update booking %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for booking %s: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}

	exists, err := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check booking %s: %w", id, err)
	}
	if !exists {
		return false, bookings.ErrNotFound
	}
	return false, nil
}

func (d *DB) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	list := make([]models.Booking, 0)
	q := d.Bun.NewSelect().Model(&list)
	if filter.EventID != "" {
		q = q.Where("event_id = ?", filter.EventID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	err := q.Order("created_at ASC", "id ASC").Scan(ctx)
	return list, err
}

func (d *DB) CountByStatus(ctx context.Context, eventID string) (map[models.BookingStatus]int, error) {
	var rows []struct {
		Status models.BookingStatus `bun:"status"`
		Count  int                  `bun:"count"`
	}
	q := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status")
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.BookingStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return bookings.ErrNotFound
	}
	return err
}
