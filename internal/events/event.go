package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	AppointmentBooked    Type = "APPOINTMENT_BOOKED"
	AppointmentCompleted Type = "APPOINTMENT_COMPLETED"
	AppointmentCancelled Type = "APPOINTMENT_CANCELLED"
	ConsultationAdded    Type = "CONSULTATION_ADDED"
)

// RoutingKey is the topic key the relay publishes under, e.g. appointment.booked.
func (t Type) RoutingKey() string {
	switch t {
	case AppointmentBooked:
		return "appointment.booked"
	case AppointmentCompleted:
		return "appointment.completed"
	case AppointmentCancelled:
		return "appointment.cancelled"
	case ConsultationAdded:
		return "consultation.added"
	default:
		return "unknown"
	}
}

type Event struct {
	ID            int64
	Type          Type
	AppointmentID *uuid.UUID
	Payload       json.RawMessage
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

func New(t Type, appointmentID uuid.UUID, payload map[string]any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	id := appointmentID
	return Event{
		Type:          t,
		AppointmentID: &id,
		Payload:       data,
		CreatedAt:     time.Now(),
	}, nil
}

// Recorder appends domain events to the outbox.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Outbox is a Recorder the relay can drain.
type Outbox interface {
	Recorder
	Unpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Publisher delivers one event to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
