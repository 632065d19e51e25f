package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	AppointmentCreated       EventType = "appointment:created"
	AppointmentStatusUpdated EventType = "appointment:status_updated"
	AppointmentCancelled     EventType = "appointment:cancelled"
	RescheduleRequested      EventType = "reschedule:requested"
	RescheduleApproved       EventType = "reschedule:approved"
	RescheduleRejected       EventType = "reschedule:rejected"
	RescheduleCancelled      EventType = "reschedule:cancelled"
	BusySlotCreated          EventType = "busy_slot:created"
	BusySlotDeleted          EventType = "busy_slot:deleted"
	WorkingHoursUpdated      EventType = "working_hours:updated"
)

// Event is an invalidation signal. Receivers re-read authoritative state
// instead of applying the payload.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	Type          EventType  `json:"type"`
	BusinessID    uuid.UUID  `json:"business_id"`
	EmployeeID    *uuid.UUID `json:"employee_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	RequestID     *uuid.UUID `json:"request_id,omitempty"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	Status        string     `json:"status,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
	TraceParent   string     `json:"traceparent,omitempty"`
}

func BusinessRoom(id uuid.UUID) string { return "business:" + id.String() }

func UserRoom(id uuid.UUID) string { return "user:" + id.String() }

// Rooms lists the rooms an event is delivered to.
func (e Event) Rooms() []string {
	rooms := []string{BusinessRoom(e.BusinessID)}
	if e.CustomerID != nil && *e.CustomerID != uuid.Nil {
		rooms = append(rooms, UserRoom(*e.CustomerID))
	}
	return rooms
}

// Publisher emits events to subscribers. Implementations must not block the
// caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
