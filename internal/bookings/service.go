package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ms-redemption/internal/logger"
	"ms-redemption/internal/models"
	"ms-redemption/internal/qr"
)

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event models.BookingEvent) error
}

// IssueRequest describes a booking handed over by the purchase flow or an
// admin. ID and QRCode are generated when empty.
type IssueRequest struct {
	ID          string               `json:"id,omitempty"`
	EventID     string               `json:"event_id,omitempty"`
	QRCode      string               `json:"qr_code,omitempty"`
	Status      models.BookingStatus `json:"status,omitempty"`
	TicketCount int                  `json:"ticket_count"`
	TotalPrice  float64              `json:"total_price"`
}

type Stats struct {
	EventID   string `json:"event_id,omitempty"`
	Confirmed int    `json:"confirmed"`
	Used      int    `json:"used"`
	Cancelled int    `json:"cancelled"`
	Total     int    `json:"total"`
}

type Service struct {
	Repo   Repository
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(repo Repository, events EventPublisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{Repo: repo, Events: events, Logger: log}
}

func (r IssueRequest) validate() error {
	if r.TicketCount <= 0 {
		return fmt.Errorf("%w: ticket_count must be positive", ErrInvalidBooking)
	}
	if r.TotalPrice < 0 {
		return fmt.Errorf("%w: total_price must not be negative", ErrInvalidBooking)
	}
	switch r.Status {
	case "", models.BookingStatusConfirmed, models.BookingStatusCancelled:
	default:
		return fmt.Errorf("%w: status %q cannot be issued", ErrInvalidBooking, r.Status)
	}
	return nil
}

// Issue validates req and stores a new booking.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	booking := models.Booking{
		ID:          req.ID,
		EventID:     req.EventID,
		QRCode:      req.QRCode,
		Status:      req.Status,
		TicketCount: req.TicketCount,
		TotalPrice:  req.TotalPrice,
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.QRCode == "" {
		booking.QRCode = qr.NewToken()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}

	if err := s.Repo.Create(ctx, booking); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to issue booking: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "bookings", fmt.Sprintf("issued %s (%d ticket(s))", booking.ID, booking.TicketCount))
	return s.Repo.FindByID(ctx, booking.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("booking %s: %w", id, err)
	}
	return booking, nil
}

func (s *Service) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, filter.Status)
	}
	list, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return list, nil
}

// Cancel voids a confirmed booking. Used bookings stay used.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*models.Booking, error) {
	ok, err := s.Repo.CompareAndSetStatus(ctx, id, models.BookingStatusConfirmed, models.BookingStatusCancelled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel booking %s: %w", id, err)
	}

	booking, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", id, err)
	}

	if !ok {
		if booking.Status == models.BookingStatusCancelled {
			return booking, nil
		}
		return nil, fmt.Errorf("%w: booking %s is %s", ErrNotCancellable, id, booking.Status)
	}

	s.Logger.LogDatabase("UPDATE", "bookings", fmt.Sprintf("cancelled %s", id))
	if s.Events != nil {
		if err := s.Events.PublishBookingEvent(ctx, models.NewBookingEvent(models.BookingEventCancelled, *booking, actorID)); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish cancellation of %s: %v", id, err))
		}
	}
	return booking, nil
}

func (s *Service) Stats(ctx context.Context, eventID string) (Stats, error) {
	counts, err := s.Repo.CountByStatus(ctx, eventID)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count bookings: %w", err)
	}
	st := Stats{
		EventID:   eventID,
		Confirmed: counts[models.BookingStatusConfirmed],
		Used:      counts[models.BookingStatusUsed],
		Cancelled: counts[models.BookingStatusCancelled],
	}
	st.Total = st.Confirmed + st.Used + st.Cancelled
	return st, nil
}
