package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-redemption/internal/bookings"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/models"
)

// Importer stores bookings issued by the purchase flow.
type Importer interface {
	Issue(ctx context.Context, req bookings.IssueRequest) (*models.Booking, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader   messageReader
	importer Importer
	logger   *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, importer Importer, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, importer, log)
}

func newConsumer(r messageReader, importer Importer, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{reader: r, importer: importer, logger: log}
}

// Start reads until ctx is cancelled. Bad messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("KAFKA", "Booking import consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("KAFKA", "Booking import consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}
		if err := c.HandleMessage(ctx, msg); err != nil {
			c.logger.Error("KAFKA", err.Error())
		}
	}
}

// HandleMessage imports one booking.issued message. Re-delivered bookings
// are ignored.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal booking event at offset %d: %w", msg.Offset, err)
	}
	if event.Type != "" && event.Type != models.BookingEventIssued {
		return nil
	}

	_, err := c.importer.Issue(ctx, bookings.IssueRequest{
		ID:          event.BookingID,
		EventID:     event.EventID,
		QRCode:      event.QRCode,
		Status:      event.Status,
		TicketCount: event.TicketCount,
		TotalPrice:  event.TotalPrice,
	})
	if errors.Is(err, bookings.ErrDuplicateCode) {
		c.logger.Warn("KAFKA", fmt.Sprintf("Booking %s already imported, skipping", event.BookingID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to import booking %s: %w", event.BookingID, err)
	}

	c.logger.LogKafka("IMPORT", msg.Topic, event.BookingID)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
