// Package memory is an in-process booking store indexed by id and by QR
// code. All operations hold a single mutex, which makes CompareAndSetStatus
// atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/models"
)

type Store struct {
	mu     sync.RWMutex
	byID   map[string]*models.Booking
	byCode map[string]string
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*models.Booking),
		byCode: make(map[string]string),
		now:    time.Now,
	}
}

func (s *Store) Create(_ context.Context, booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCode[booking.QRCode]; taken {
		return bookings.ErrDuplicateCode
	}
	if _, exists := s.byID[booking.ID]; exists {
		return bookings.ErrDuplicateCode
	}

	now := s.now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	b := booking
	s.byID[b.ID] = &b
	s.byCode[b.QRCode] = b.ID
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) FindByCode(_ context.Context, code string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *Store) CompareAndSetStatus(_ context.Context, id string, expected, next models.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return false, bookings.ErrNotFound
	}
	if b.Status != expected {
		return false, nil
	}

	now := s.now().UTC()
	b.Status = next
	b.UpdatedAt = now
	if next == models.BookingStatusUsed {
		b.UsedAt = now
	}
	return true, nil
}

func (s *Store) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Booking, 0, len(s.byID))
	for _, b := range s.byID {
		if filter.Matches(*b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context, eventID string) (map[models.BookingStatus]int, error) {
	list, err := s.List(ctx, models.BookingFilter{EventID: eventID})
	if err != nil {
		return nil, err
	}
	counts := make(map[models.BookingStatus]int, 3)
	for _, b := range list {
		counts[b.Status]++
	}
	return counts, nil
}
