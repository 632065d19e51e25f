package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/availability"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

type CreateAppointmentRequest struct {
	BusinessID   uuid.UUID   `json:"business_id"`
	EmployeeID   uuid.UUID   `json:"employee_id"`
	ServiceIDs   []uuid.UUID `json:"service_ids"`
	StartAt      time.Time   `json:"start_at"`
	CustomerID   *uuid.UUID  `json:"customer_id,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ServiceSnapshotResponse struct {
	ServiceID       uuid.UUID `json:"service_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
}

type AppointmentResponse struct {
	ID              uuid.UUID                 `json:"id"`
	BusinessID      uuid.UUID                 `json:"business_id"`
	EmployeeID      uuid.UUID                 `json:"employee_id"`
	CustomerID      *uuid.UUID                `json:"customer_id,omitempty"`
	CustomerName    string                    `json:"customer_name,omitempty"`
	StartAt         time.Time                 `json:"start_at"`
	EndAt           time.Time                 `json:"end_at"`
	DurationMinutes int                       `json:"duration_minutes"`
	Status          string                    `json:"status"`
	Notes           string                    `json:"notes,omitempty"`
	Services        []ServiceSnapshotResponse `json:"services"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	services := make([]ServiceSnapshotResponse, 0, len(a.Services))
	for _, s := range a.Services {
		services = append(services, ServiceSnapshotResponse(s))
	}
	return AppointmentResponse{
		ID:              a.ID,
		BusinessID:      a.BusinessID,
		EmployeeID:      a.EmployeeID,
		CustomerID:      a.CustomerID,
		CustomerName:    a.CustomerName,
		StartAt:         a.StartAt,
		EndAt:           a.EndAt,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		Services:        services,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		CancelledAt:     a.CancelledAt,
	}
}

type CreateRescheduleRequest struct {
	NewStartAt    time.Time  `json:"new_start_at"`
	NewEmployeeID *uuid.UUID `json:"new_employee_id,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

type ResolveRescheduleRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type RescheduleResponse struct {
	ID              uuid.UUID  `json:"id"`
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	RequestedByRole string     `json:"requested_by_role"`
	RequestedByID   uuid.UUID  `json:"requested_by_id"`
	OldStartAt      time.Time  `json:"old_start_at"`
	NewStartAt      time.Time  `json:"new_start_at"`
	OldEmployeeID   uuid.UUID  `json:"old_employee_id"`
	NewEmployeeID   *uuid.UUID `json:"new_employee_id,omitempty"`
	Reason          *string    `json:"reason,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func toRescheduleResponse(r *appointment.RescheduleRequest) RescheduleResponse {
	return RescheduleResponse{
		ID:              r.ID,
		AppointmentID:   r.AppointmentID,
		RequestedByRole: string(r.RequestedByRole),
		RequestedByID:   r.RequestedByID,
		OldStartAt:      r.OldStartAt,
		NewStartAt:      r.NewStartAt,
		OldEmployeeID:   r.OldEmployeeID,
		NewEmployeeID:   r.NewEmployeeID,
		Reason:          r.Reason,
		RejectionReason: r.RejectionReason,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		ResolvedAt:      r.ResolvedAt,
	}
}

type CreateBusySlotRequest struct {
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      time.Time  `json:"end_at"`
	Reason     string     `json:"reason,omitempty"`
	IsAllDay   bool       `json:"is_all_day"`
}

type BusySlotResponse struct {
	ID         uuid.UUID  `json:"id"`
	BusinessID uuid.UUID  `json:"business_id"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      time.Time  `json:"end_at"`
	Reason     string     `json:"reason,omitempty"`
	IsAllDay   bool       `json:"is_all_day"`
}

func toBusySlotResponse(b *appointment.BusySlot) BusySlotResponse {
	return BusySlotResponse{
		ID:         b.ID,
		BusinessID: b.BusinessID,
		EmployeeID: b.EmployeeID,
		StartAt:    b.StartAt,
		EndAt:      b.EndAt,
		Reason:     b.Reason,
		IsAllDay:   b.IsAllDay,
	}
}

type WorkingHoursEntry struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type WorkingHoursRequest struct {
	WorkingHours []WorkingHoursEntry `json:"working_hours"`
}

type WorkingHoursResponse struct {
	EmployeeID   uuid.UUID           `json:"employee_id"`
	WorkingHours []WorkingHoursEntry `json:"working_hours"`
}

func toWorkingHoursResponse(employeeID uuid.UUID, hours []appointment.WorkingHours) WorkingHoursResponse {
	entries := make([]WorkingHoursEntry, 0, len(hours))
	for _, h := range hours {
		entries = append(entries, WorkingHoursEntry{DayOfWeek: h.DayOfWeek, StartTime: h.StartTime, EndTime: h.EndTime})
	}
	return WorkingHoursResponse{EmployeeID: employeeID, WorkingHours: entries}
}

type SlotsResponse struct {
	BusinessID uuid.UUID               `json:"business_id"`
	EmployeeID uuid.UUID               `json:"employee_id"`
	Days       []availability.DaySlots `json:"days"`
}
