package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/models"
)

const (
	bookingKeyPrefix = "booking:"
	codeKeyPrefix    = "booking_code:"
	allBookingsKey   = "bookings:all"
)

// createScript claims the code index and writes the hash in one step.
// KEYS: booking hash, code index, id set. ARGV: id, then field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
if redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// casScript returns -1 when the booking is missing, 0 when the status did
// not match and 1 when next was written.
// KEYS: booking hash. ARGV: expected, next, timestamp.
var casScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
if ARGV[2] == 'used' then
	redis.call('HSET', KEYS[1], 'used_at', ARGV[3])
end
return 1
`)

type Store struct {
	Client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

func bookingKey(id string) string { return bookingKeyPrefix + id }
func codeKey(code string) string  { return codeKeyPrefix + code }

func (s *Store) Create(ctx context.Context, booking models.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	args := append([]interface{}{booking.ID}, encode(booking)...)
	created, err := createScript.Run(ctx, s.Client,
		[]string{bookingKey(booking.ID), codeKey(booking.QRCode), allBookingsKey},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("redis create booking %s: %w", booking.ID, err)
	}
	if created == 0 {
		return bookings.ErrDuplicateCode
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	fields, err := s.Client.HGetAll(ctx, bookingKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, bookings.ErrNotFound
	}
	return decode(fields)
}

func (s *Store) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	id, err := s.Client.Get(ctx, codeKey(code)).Result()
	if err == redis.Nil {
		return nil, bookings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next models.BookingStatus) (bool, error) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := casScript.Run(ctx, s.Client, []string{bookingKey(id)}, string(expected), string(next), ts).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-set %s: %w", id, err)
	}
	switch res {
	case -1:
		return false, bookings.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (s *Store) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	ids, err := s.Client.SMembers(ctx, allBookingsKey).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.StringStringMapCmd, 0, len(ids))
	_, err = s.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, p.HGetAll(ctx, bookingKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	list := make([]models.Booking, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		b, err := decode(fields)
		if err != nil {
			return nil, err
		}
		if filter.Matches(*b) {
			list = append(list, *b)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
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

func encode(b models.Booking) []interface{} {
	usedAt := ""
	if !b.UsedAt.IsZero() {
		usedAt = b.UsedAt.UTC().Format(time.RFC3339Nano)
	}
	return []interface{}{
		"id", b.ID,
		"event_id", b.EventID,
		"qr_code", b.QRCode,
		"status", string(b.Status),
		"ticket_count", strconv.Itoa(b.TicketCount),
		"total_price", strconv.FormatFloat(b.TotalPrice, 'f', -1, 64),
		"created_at", b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at", b.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"used_at", usedAt,
	}
}

func decode(fields map[string]string) (*models.Booking, error) {
	count, err := strconv.Atoi(fields["ticket_count"])
	if err != nil {
		return nil, fmt.Errorf("booking %s: bad ticket_count: %w", fields["id"], err)
	}
	price, err := strconv.ParseFloat(fields["total_price"], 64)
	if err != nil {
		return nil, fmt.Errorf("booking %s: bad total_price: %w", fields["id"], err)
	}

	b := &models.Booking{
		ID:          fields["id"],
		EventID:     fields["event_id"],
		QRCode:      fields["qr_code"],
		Status:      models.BookingStatus(fields["status"]),
		TicketCount: count,
		TotalPrice:  price,
	}
	b.CreatedAt, _ = parseTime(fields["created_at"])
	b.UpdatedAt, _ = parseTime(fields["updated_at"])
	b.UsedAt, _ = parseTime(fields["used_at"])
	return b, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
