// Package events publishes booking lifecycle events.
package events

import (
	"context"
	"time"

	"resourcebooking/pkg/kafka"
	"resourcebooking/pkg/logger"
	"resourcebooking/pkg/middleware"
	"resourcebooking/pkg/model"
)

const (
	BookingCreated = "booking.created"
	BookingUpdated = "booking.updated"
	BookingDeleted = "booking.deleted"

	SchemaVersion = "1"
)

// BookingEvent is the JSON payload of every booking event.
type BookingEvent struct {
	EventType  string    `json:"event_type"`
	BookingID  string    `json:"booking_id"`
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	BookedBy   string    `json:"booked_by"`
	Purpose    string    `json:"purpose"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits booking events. Publishing is best effort: failures are
// logged and never fail the request that caused them.
type Publisher interface {
	Publish(ctx context.Context, eventType string, booking *model.Booking)
}

// MessageProducer is the part of kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer MessageProducer
	source   string
	log      *logger.Logger
	now      func() time.Time
}

func NewKafkaPublisher(producer MessageProducer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
		now:      time.Now,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, booking *model.Booking) {
	event := BookingEvent{
		EventType:  eventType,
		BookingID:  booking.ID,
		ResourceID: booking.ResourceID,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
		BookedBy:   booking.BookedBy,
		Purpose:    booking.Purpose,
		Version:    booking.Version,
		OccurredAt: p.now().UTC(),
	}

	msg, err := kafka.NewMessage().
		WithKey(booking.ResourceID).
		WithValue(event).
		WithEventID("").
		WithEventType(eventType).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		Build()
	if err != nil {
		p.log.Error("Failed to encode booking event", "event_type", eventType, "booking_id", booking.ID, "error", err)
		return
	}

	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"resource_id", booking.ResourceID,
			"error", err,
		)
	}
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher for deployments without Kafka.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Booking) {}
