package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active appointments occupy time on the calendar.
func (s AppointmentStatus) Active() bool {
	return s.Valid() && s != StatusCancelled
}

func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Reschedulable appointments may still be moved.
func (s AppointmentStatus) Reschedulable() bool {
	return s == StatusPending || s == StatusConfirmed
}

type RescheduleStatus string

const (
	ReschedulePending   RescheduleStatus = "pending"
	RescheduleApproved  RescheduleStatus = "approved"
	RescheduleRejected  RescheduleStatus = "rejected"
	RescheduleCancelled RescheduleStatus = "cancelled"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleBusiness Role = "business"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleBusiness || r == RoleEmployee
}

func (r Role) Staff() bool {
	return r == RoleBusiness || r == RoleEmployee
}

// Actor is the caller identity handed over by the auth layer.
type Actor struct {
	ID         uuid.UUID
	Role       Role
	BusinessID uuid.UUID
}

func (a Actor) IsStaffOf(businessID uuid.UUID) bool {
	return a.Role.Staff() && a.BusinessID != uuid.Nil && a.BusinessID == businessID
}

func (a Actor) Owns(appt *Appointment) bool {
	return a.Role == RoleUser && appt.CustomerID != nil && *appt.CustomerID == a.ID
}

func (a Actor) CanSee(appt *Appointment) bool {
	return a.IsStaffOf(appt.BusinessID) || a.Owns(appt)
}

type Business struct {
	ID       uuid.UUID
	Name     string
	Timezone string
}

// Location falls back to UTC for unknown zones.
func (b *Business) Location() *time.Location {
	if b == nil || b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Employee struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
}

// CatalogService is one entry on a salon's service menu.
type CatalogService struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMinutes int
}

// ServiceSnapshot freezes a service as it was when the appointment was booked.
type ServiceSnapshot struct {
	ServiceID       uuid.UUID
	Name            string
	DurationMinutes int
}

type WorkingHours struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
	DayOfWeek  int
	StartTime  string
	EndTime    string
}

type Appointment struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	EmployeeID      uuid.UUID
	CustomerID      *uuid.UUID
	CustomerName    string
	StartAt         time.Time
	EndAt           time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Notes           string
	Services        []ServiceSnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

type BusySlot struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	EmployeeID *uuid.UUID
	StartAt    time.Time
	EndAt      time.Time
	Reason     string
	IsAllDay   bool
	CreatedAt  time.Time
}

type RescheduleRequest struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	BusinessID      uuid.UUID
	RequestedByRole Role
	RequestedByID   uuid.UUID
	OldStartAt      time.Time
	NewStartAt      time.Time
	OldEmployeeID   uuid.UUID
	NewEmployeeID   *uuid.UUID
	Reason          *string
	RejectionReason *string
	Status          RescheduleStatus
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// TargetEmployee is the employee the appointment would move to.
func (r *RescheduleRequest) TargetEmployee() uuid.UUID {
	if r.NewEmployeeID != nil && *r.NewEmployeeID != uuid.Nil {
		return *r.NewEmployeeID
	}
	return r.OldEmployeeID
}

// RequestedByStaff reports whether the business side opened the request.
func (r *RescheduleRequest) RequestedByStaff() bool {
	return r.RequestedByRole.Staff()
}
