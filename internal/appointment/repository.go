package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service. InTx hands
// fn a Repository bound to one transaction; everything fn does commits or
// rolls back together.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// LockEmployee serializes calendar writers for one employee until the
	// surrounding transaction ends.
	LockEmployee(ctx context.Context, employeeID uuid.UUID) error

	GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error)
	GetServices(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]CatalogService, error)

	ListWorkingHours(ctx context.Context, employeeID uuid.UUID) ([]WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, employeeID uuid.UUID, hours []WorkingHours) error

	// Occupancy reads; appointments are non-cancelled ones overlapping [from, to).
	ListActiveAppointments(ctx context.Context, employeeID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListBusySlots(ctx context.Context, businessID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]BusySlot, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, appt *Appointment) error
	// UpdateAppointmentStatus only succeeds while the row is still in from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	MoveAppointment(ctx context.Context, id, employeeID uuid.UUID, start, end time.Time) (*Appointment, error)
	FindStalePendingAppointments(ctx context.Context, createdBefore time.Time, limit int) ([]Appointment, error)

	InsertBusySlot(ctx context.Context, slot *BusySlot) error
	DeleteBusySlot(ctx context.Context, businessID, id uuid.UUID) (*BusySlot, error)

	InsertRescheduleRequest(ctx context.Context, req *RescheduleRequest) error
	GetRescheduleRequest(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error)
	GetPendingRescheduleRequest(ctx context.Context, appointmentID uuid.UUID) (*RescheduleRequest, error)
	// ResolveRescheduleRequest only succeeds while the request is pending.
	ResolveRescheduleRequest(ctx context.Context, id uuid.UUID, to RescheduleStatus, rejectionReason *string) (*RescheduleRequest, error)
	CancelPendingRescheduleRequests(ctx context.Context, appointmentID uuid.UUID) ([]RescheduleRequest, error)
	FindStalePendingRescheduleRequests(ctx context.Context, createdBefore time.Time, limit int) ([]RescheduleRequest, error)
}
