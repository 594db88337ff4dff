// Package redemption decides whether a scanned ticket code admits its holder
// and performs the one-time confirmed -> used transition.
//
// Classify is read-only. Commit relies on the store's compare-and-set, so any
// number of scanners may race on the same booking and at most one of them
// redeems it.
package redemption

import (
	"context"
	"errors"
	"fmt"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/models"
)

// Store is the part of the booking store the engine consumes.
type Store interface {
	FindByCode(ctx context.Context, code string) (*models.Booking, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next models.BookingStatus) (bool, error)
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event models.BookingEvent) error
}

var errInconsistentStatus = errors.New("compare-and-set refused but booking is still confirmed")

type Engine struct {
	store  Store
	events EventPublisher
	log    *logger.Logger
}

// NewEngine builds an engine over store. events and log may be nil.
func NewEngine(store Store, events EventPublisher, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{store: store, events: events, log: log}
}

// Classify looks up code and reports whether it currently represents a
// valid, used, cancelled or unknown ticket. It never writes to the store.
func (e *Engine) Classify(ctx context.Context, code string) Result {
	if code == "" {
		return notFound(code)
	}

	booking, err := e.store.FindByCode(ctx, code)
	if errors.Is(err, bookings.ErrNotFound) {
		return notFound(code)
	}
	if err != nil {
		e.log.Error("REDEEM", fmt.Sprintf("lookup of code %q failed: %v", code, err))
		return storeUnavailable(code, err)
	}

	switch booking.Status {
	case models.BookingStatusConfirmed:
		return valid(code, booking)
	case models.BookingStatusUsed:
		return alreadyUsed(code, booking)
	case models.BookingStatusCancelled:
		return cancelled(code, booking)
	default:
		return storeUnavailable(code, fmt.Errorf("booking %s has unknown status %q", booking.ID, booking.Status))
	}
}

// Commit redeems a booking previously classified Valid. The status is
// re-checked by the store, never taken from the caller.
func (e *Engine) Commit(ctx context.Context, bookingID string) Result {
	if bookingID == "" {
		return notFound("")
	}

	applied, err := e.store.CompareAndSetStatus(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusUsed)
	if errors.Is(err, bookings.ErrNotFound) {
		return notFound("")
	}
	if err != nil {
		e.log.Error("REDEEM", fmt.Sprintf("compare-and-set on %s failed: %v", bookingID, err))
		return storeUnavailable("", err)
	}

	booking, err := e.store.FindByID(ctx, bookingID)
	if err != nil && !errors.Is(err, bookings.ErrNotFound) && !applied {
		return storeUnavailable("", err)
	}

	if applied {
		e.log.LogRedemption("COMMIT", bookingID, "redeemed")
		if booking == nil {
			e.log.Warn("REDEEM", fmt.Sprintf("booking %s redeemed but could not be read back: %v", bookingID, err))
			e.publish(ctx, models.NewBookingEvent(models.BookingEventRedeemed,
				models.Booking{ID: bookingID, Status: models.BookingStatusUsed}, ActorFrom(ctx)))
			return committedUnread(bookingID)
		}
		e.publish(ctx, models.NewBookingEvent(models.BookingEventRedeemed, *booking, ActorFrom(ctx)))
		return committed(booking)
	}

	if booking == nil {
		return notFound("")
	}

	switch booking.Status {
	case models.BookingStatusUsed:
		e.log.LogRedemption("RACE_LOST", bookingID, "already redeemed")
		return raceLost(booking)
	case models.BookingStatusCancelled:
		return cancelled(booking.QRCode, booking)
	default:
		return storeUnavailable(booking.QRCode, errInconsistentStatus)
	}
}

func (e *Engine) publish(ctx context.Context, event models.BookingEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishBookingEvent(ctx, event); err != nil {
		e.log.Warn("KAFKA", fmt.Sprintf("failed to publish %s for %s: %v", event.Type, event.BookingID, err))
	}
}

type actorKey struct{}

// WithActor attaches the staff member performing a scan to ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok {
		return id
	}
	return ""
}
