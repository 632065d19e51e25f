package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/availability"
)

// SchedulingService is the part of *appointment.Service the HTTP layer calls.
type SchedulingService interface {
	GetSlots(ctx context.Context, q appointment.SlotQuery) ([]availability.DaySlots, error)

	CreateAppointment(ctx context.Context, actor appointment.Actor, in appointment.CreateAppointmentInput) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, actor appointment.Actor, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)

	CreateRescheduleRequest(ctx context.Context, actor appointment.Actor, appointmentID uuid.UUID, in appointment.CreateRescheduleInput) (*appointment.RescheduleRequest, error)
	GetRescheduleRequest(ctx context.Context, actor appointment.Actor, requestID uuid.UUID) (*appointment.RescheduleRequest, error)
	ResolveRescheduleRequest(ctx context.Context, actor appointment.Actor, requestID uuid.UUID, action appointment.RescheduleAction, rejectionReason string) (*appointment.RescheduleRequest, error)
	CancelRescheduleRequest(ctx context.Context, actor appointment.Actor, requestID uuid.UUID) (*appointment.RescheduleRequest, error)

	CreateBusySlot(ctx context.Context, actor appointment.Actor, businessID uuid.UUID, in appointment.BusySlotInput) (*appointment.BusySlot, error)
	DeleteBusySlot(ctx context.Context, actor appointment.Actor, businessID, id uuid.UUID) error
	ListBusySlots(ctx context.Context, actor appointment.Actor, businessID uuid.UUID, employeeID *uuid.UUID, from, to string) ([]appointment.BusySlot, error)

	ReplaceWorkingHours(ctx context.Context, actor appointment.Actor, businessID, employeeID uuid.UUID, in []appointment.WorkingHoursInput) ([]appointment.WorkingHours, error)
	ListWorkingHours(ctx context.Context, businessID, employeeID uuid.UUID) ([]appointment.WorkingHours, error)
}

type handlers struct {
	svc    SchedulingService
	logger *slog.Logger
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID", false)
		return uuid.Nil, false
	}
	return id, true
}

// mustActor is only used behind RequireActor.
func mustActor(r *http.Request) appointment.Actor {
	actor, _ := ActorFrom(r.Context())
	return actor
}

func (h *handlers) getSlots(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	employeeID, ok := uuidParam(w, r, "employeeID")
	if !ok {
		return
	}

	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")
	if to == "" {
		to = from
	}
	includeSuppressed, _ := strconv.ParseBool(q.Get("include_suppressed"))

	days, err := h.svc.GetSlots(r.Context(), appointment.SlotQuery{
		BusinessID:        businessID,
		EmployeeID:        employeeID,
		From:              from,
		To:                to,
		IncludeSuppressed: includeSuppressed,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{BusinessID: businessID, EmployeeID: employeeID, Days: days})
}

func (h *handlers) getWorkingHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	employeeID, ok := uuidParam(w, r, "employeeID")
	if !ok {
		return
	}

	hours, err := h.svc.ListWorkingHours(r.Context(), businessID, employeeID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingHoursResponse(employeeID, hours))
}

func (h *handlers) putWorkingHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	employeeID, ok := uuidParam(w, r, "employeeID")
	if !ok {
		return
	}
	var req WorkingHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := make([]appointment.WorkingHoursInput, 0, len(req.WorkingHours))
	for _, e := range req.WorkingHours {
		in = append(in, appointment.WorkingHoursInput{DayOfWeek: e.DayOfWeek, StartTime: e.StartTime, EndTime: e.EndTime})
	}

	hours, err := h.svc.ReplaceWorkingHours(r.Context(), mustActor(r), businessID, employeeID, in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingHoursResponse(employeeID, hours))
}

func (h *handlers) createBusySlot(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	var req CreateBusySlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	slot, err := h.svc.CreateBusySlot(r.Context(), mustActor(r), businessID, appointment.BusySlotInput{
		EmployeeID: req.EmployeeID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Reason:     req.Reason,
		IsAllDay:   req.IsAllDay,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBusySlotResponse(slot))
}

func (h *handlers) listBusySlots(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	q := r.URL.Query()

	var employeeID *uuid.UUID
	if raw := q.Get("employee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", "employee_id must be a valid UUID", false)
			return
		}
		employeeID = &id
	}

	slots, err := h.svc.ListBusySlots(r.Context(), mustActor(r), businessID, employeeID, q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]BusySlotResponse, 0, len(slots))
	for i := range slots {
		resp = append(resp, toBusySlotResponse(&slots[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) deleteBusySlot(w http.ResponseWriter, r *http.Request) {
	businessID, ok := uuidParam(w, r, "businessID")
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteBusySlot(r.Context(), mustActor(r), businessID, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), mustActor(r), appointment.CreateAppointmentInput{
		BusinessID:   req.BusinessID,
		EmployeeID:   req.EmployeeID,
		ServiceIDs:   req.ServiceIDs,
		StartAt:      req.StartAt,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), mustActor(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appt, err := h.svc.UpdateAppointmentStatus(r.Context(), mustActor(r), id, appointment.AppointmentStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.CancelAppointment(r.Context(), mustActor(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) createRescheduleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req CreateRescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.svc.CreateRescheduleRequest(r.Context(), mustActor(r), id, appointment.CreateRescheduleInput{
		NewStartAt:    req.NewStartAt,
		NewEmployeeID: req.NewEmployeeID,
		Reason:        req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRescheduleResponse(created))
}

func (h *handlers) getRescheduleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	req, err := h.svc.GetRescheduleRequest(r.Context(), mustActor(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRescheduleResponse(req))
}

func (h *handlers) resolveRescheduleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ResolveRescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resolved, err := h.svc.ResolveRescheduleRequest(r.Context(), mustActor(r), id, appointment.RescheduleAction(req.Action), req.RejectionReason)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRescheduleResponse(resolved))
}

func (h *handlers) cancelRescheduleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	cancelled, err := h.svc.CancelRescheduleRequest(r.Context(), mustActor(r), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRescheduleResponse(cancelled))
}
