package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusUsed      BookingStatus = "used"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusUsed, BookingStatusCancelled:
		return true
	}
	return false
}

// Booking is one purchased admission unit. QRCode is unique across all
// bookings and never changes after issue.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          string        `bun:"id,pk" json:"id"`
	EventID     string        `bun:"event_id" json:"event_id,omitempty"`
	QRCode      string        `bun:"qr_code,notnull,unique" json:"qr_code"`
	Status      BookingStatus `bun:"status,notnull" json:"status"`
	TicketCount int           `bun:"ticket_count,notnull" json:"ticket_count"`
	TotalPrice  float64       `bun:"total_price,notnull" json:"total_price"`
	CreatedAt   time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull" json:"updated_at"`
	UsedAt      time.Time     `bun:"used_at,nullzero" json:"used_at,omitempty"`
}

// IsFree reports whether the booking was issued at no cost.
func (b Booking) IsFree() bool {
	return b.TotalPrice == 0
}

// BookingFilter narrows List queries. Zero values match everything.
type BookingFilter struct {
	EventID string
	Status  BookingStatus
}

// Matches reports whether b passes the filter.
func (f BookingFilter) Matches(b Booking) bool {
	if f.EventID != "" && b.EventID != f.EventID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}
