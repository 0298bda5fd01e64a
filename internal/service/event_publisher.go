package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/kafka"
)

// EventPublisher defines the interface for publishing engine events
type EventPublisher interface {
	// PublishBookingConfirmed publishes a booking confirmed event
	PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error

	// PublishBookingCancelled publishes a booking cancelled event
	PublishBookingCancelled(ctx context.Context, booking *domain.Booking) error

	// PublishCapacityChanged publishes the event's remaining capacity
	PublishCapacityChanged(ctx context.Context, eventID string, available int) error

	// PublishSeatsBooked publishes a seats booked event
	PublishSeatsBooked(ctx context.Context, booking *domain.Booking, seatIDs []string) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

var _ EventPublisher = (*KafkaEventPublisher)(nil)

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "reservation-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reservation-engine"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "reservation-engine-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishBookingConfirmed publishes a booking confirmed event
func (p *KafkaEventPublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.NewBookingEvent(domain.BookingEventConfirmed, booking, booking.EventID))
}

// PublishBookingCancelled publishes a booking cancelled event
func (p *KafkaEventPublisher) PublishBookingCancelled(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.NewBookingEvent(domain.BookingEventCancelled, booking, booking.EventID))
}

// PublishCapacityChanged publishes the event's remaining capacity
func (p *KafkaEventPublisher) PublishCapacityChanged(ctx context.Context, eventID string, available int) error {
	return p.publishEvent(ctx, &domain.BookingEvent{
		EventID:   eventID,
		Type:      domain.CapacityEventChanged,
		Available: available,
		Timestamp: time.Now(),
	})
}

// PublishSeatsBooked publishes a seats booked event
func (p *KafkaEventPublisher) PublishSeatsBooked(ctx context.Context, booking *domain.Booking, seatIDs []string) error {
	event := domain.NewBookingEvent(domain.SeatsEventBooked, booking, booking.EventID)
	event.SeatIDs = seatIDs
	return p.publishEvent(ctx, event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// publishEvent publishes an engine event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, event *domain.BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(event.Type),
		"event_id":     uuid.New().String(),
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for
// testing and for running without a broker
type NoOpEventPublisher struct{}

var _ EventPublisher = (*NoOpEventPublisher)(nil)

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishBookingConfirmed is a no-op
func (p *NoOpEventPublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	return nil
}

// PublishBookingCancelled is a no-op
func (p *NoOpEventPublisher) PublishBookingCancelled(ctx context.Context, booking *domain.Booking) error {
	return nil
}

// PublishCapacityChanged is a no-op
func (p *NoOpEventPublisher) PublishCapacityChanged(ctx context.Context, eventID string, available int) error {
	return nil
}

// PublishSeatsBooked is a no-op
func (p *NoOpEventPublisher) PublishSeatsBooked(ctx context.Context, booking *domain.Booking, seatIDs []string) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
