package redemption

import (
	"fmt"

	"ms-redemption/internal/models"
)

// Kind classifies the outcome of a Classify or Commit call.
type Kind string

const (
	KindValid            Kind = "valid"
	KindNotFound         Kind = "not_found"
	KindAlreadyUsed      Kind = "already_used"
	KindCancelled        Kind = "cancelled"
	KindCommitted        Kind = "committed"
	KindRaceLost         Kind = "race_lost"
	KindStoreUnavailable Kind = "store_unavailable"
)

// Severity is how the presentation layer should render a result.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Snapshot carries the booking fields a scanner screen needs so it never has
// to query the store again.
type Snapshot struct {
	BookingID   string               `json:"booking_id"`
	EventID     string               `json:"event_id,omitempty"`
	Status      models.BookingStatus `json:"status"`
	TicketCount int                  `json:"ticket_count"`
	TotalPrice  float64              `json:"total_price"`
}

// Result is returned by every engine call. Err is only set for
// KindStoreUnavailable.
type Result struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"`
	Booking  *Snapshot `json:"booking,omitempty"`
	Err      error     `json:"-"`
}

// Accepted reports whether the result lets the holder in (or already did).
func (r Result) Accepted() bool {
	return r.Kind == KindValid || r.Kind == KindCommitted
}

// Unavailable reports an infrastructure failure rather than a ticket problem.
func (r Result) Unavailable() bool {
	return r.Kind == KindStoreUnavailable
}

func snapshotOf(b *models.Booking) *Snapshot {
	if b == nil {
		return nil
	}
	return &Snapshot{
		BookingID:   b.ID,
		EventID:     b.EventID,
		Status:      b.Status,
		TicketCount: b.TicketCount,
		TotalPrice:  b.TotalPrice,
	}
}

// FormatPrice renders a total price, with zero shown as "free".
func FormatPrice(price float64) string {
	if price == 0 {
		return "free"
	}
	return fmt.Sprintf("%.2f", price)
}

func ticketSummary(b *models.Booking) string {
	return fmt.Sprintf("%d ticket(s), %s", b.TicketCount, FormatPrice(b.TotalPrice))
}

func notFound(code string) Result {
	return Result{
		Kind:     KindNotFound,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Code %q does not match any known ticket", code),
		Code:     code,
	}
}

func valid(code string, b *models.Booking) Result {
	return Result{
		Kind:     KindValid,
		Severity: SeveritySuccess,
		Message:  "Valid ticket: " + ticketSummary(b),
		Code:     code,
		Booking:  snapshotOf(b),
	}
}

func alreadyUsed(code string, b *models.Booking) Result {
	msg := "Ticket already used: " + ticketSummary(b)
	if !b.UsedAt.IsZero() {
		msg += fmt.Sprintf(" (redeemed at %s)", b.UsedAt.UTC().Format("15:04:05"))
	}
	return Result{
		Kind:     KindAlreadyUsed,
		Severity: SeverityWarning,
		Message:  msg,
		Code:     code,
		Booking:  snapshotOf(b),
	}
}

func cancelled(code string, b *models.Booking) Result {
	return Result{
		Kind:     KindCancelled,
		Severity: SeverityError,
		Message:  "Booking has been cancelled",
		Code:     code,
		Booking:  snapshotOf(b),
	}
}

func committed(b *models.Booking) Result {
	return Result{
		Kind:     KindCommitted,
		Severity: SeveritySuccess,
		Message:  "Entry confirmed: " + ticketSummary(b),
		Code:     b.QRCode,
		Booking:  snapshotOf(b),
	}
}

// committedUnread is used when the swap succeeded but the booking could not
// be read back, so no ticket details are shown.
func committedUnread(bookingID string) Result {
	return Result{
		Kind:     KindCommitted,
		Severity: SeveritySuccess,
		Message:  "Entry confirmed",
		Booking:  &Snapshot{BookingID: bookingID, Status: models.BookingStatusUsed},
	}
}

func raceLost(b *models.Booking) Result {
	return Result{
		Kind:     KindRaceLost,
		Severity: SeverityWarning,
		Message:  "Ticket was already redeemed on another device: " + ticketSummary(b),
		Code:     b.QRCode,
		Booking:  snapshotOf(b),
	}
}

func storeUnavailable(code string, err error) Result {
	return Result{
		Kind:     KindStoreUnavailable,
		Severity: SeverityError,
		Message:  "Booking system unavailable, please try again",
		Code:     code,
		Err:      err,
	}
}
