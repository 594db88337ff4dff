// Package bookings holds the booking repository contract shared by every
// store backend and the service that issues and cancels bookings.
package bookings

import (
	"context"
	"errors"

	"ms-redemption/internal/models"
)

// ErrNotFound is returned by a store when no booking matches the lookup.
var ErrNotFound = errors.New("booking not found")

// ErrDuplicateCode is returned by Create when another booking already owns
// the QR code.
var ErrDuplicateCode = errors.New("qr code already issued")

// ErrNotCancellable is returned when cancelling a booking that is no longer
// confirmed.
var ErrNotCancellable = errors.New("booking cannot be cancelled")

// ErrInvalidBooking wraps validation failures on issue.
var ErrInvalidBooking = errors.New("invalid booking")

// Repository is implemented by the postgres, redis and memory backends.
type Repository interface {
	Create(ctx context.Context, booking models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindByCode(ctx context.Context, code string) (*models.Booking, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next models.BookingStatus) (bool, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	CountByStatus(ctx context.Context, eventID string) (map[models.BookingStatus]int, error)
}
