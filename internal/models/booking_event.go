package models

import (
	"time"
)

type BookingEventType string

const (
	BookingEventIssued    BookingEventType = "booking.issued"
	BookingEventRedeemed  BookingEventType = "booking.redeemed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is the Kafka payload for booking lifecycle changes.
// Issued events from the purchase flow carry the full booking fields.
type BookingEvent struct {
	Type        BookingEventType `json:"type"`
	BookingID   string           `json:"booking_id"`
	EventID     string           `json:"event_id,omitempty"`
	QRCode      string           `json:"qr_code,omitempty"`
	Status      BookingStatus    `json:"status"`
	TicketCount int              `json:"ticket_count"`
	TotalPrice  float64          `json:"total_price"`
	ActorID     string           `json:"actor_id,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// NewBookingEvent builds an event snapshot of b.
func NewBookingEvent(eventType BookingEventType, b Booking, actorID string) BookingEvent {
	return BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		EventID:     b.EventID,
		QRCode:      b.QRCode,
		Status:      b.Status,
		TicketCount: b.TicketCount,
		TotalPrice:  b.TotalPrice,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}
