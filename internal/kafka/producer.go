package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-redemption/internal/config"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topics config.TopicConfig
	logger *logger.Logger
}

// NewProducer writes to any topic; the topic is chosen per message.
func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, topics, log)
}

func newProducer(w messageWriter, topics config.TopicConfig, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{writer: w, topics: topics, logger: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.LogKafka("PUBLISH", topic, key)
	return nil
}

// PublishBookingEvent routes event to the topic for its type, keyed by
// booking id so all events of one booking stay ordered.
func (p *Producer) PublishBookingEvent(ctx context.Context, event models.BookingEvent) error {
	topic, err := p.topicFor(event.Type)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.Publish(ctx, topic, event.BookingID, value)
}

func (p *Producer) topicFor(t models.BookingEventType) (string, error) {
	switch t {
	case models.BookingEventIssued:
		return p.topics.BookingIssued, nil
	case models.BookingEventRedeemed:
		return p.topics.BookingRedeemed, nil
	case models.BookingEventCancelled:
		return p.topics.BookingCancelled, nil
	}
	return "", fmt.Errorf("no topic for event type %q", t)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
