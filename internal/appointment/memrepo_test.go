package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository. Calendar writers are serialized by the
// Redis locker in tests, so InTx simply runs fn against the same store.
type memRepo struct {
	mu    sync.Mutex
	clock func() time.Time

	businesses   map[uuid.UUID]Business
	employees    map[uuid.UUID]Employee
	services     map[uuid.UUID]CatalogService
	hours        map[uuid.UUID][]WorkingHours
	appointments map[uuid.UUID]Appointment
	busy         map[uuid.UUID]BusySlot
	requests     map[uuid.UUID]RescheduleRequest

	employeeLocks int
}

func newMemRepo(clock func() time.Time) *memRepo {
	return &memRepo{
		clock:        clock,
		businesses:   map[uuid.UUID]Business{},
		employees:    map[uuid.UUID]Employee{},
		services:     map[uuid.UUID]CatalogService{},
		hours:        map[uuid.UUID][]WorkingHours{},
		appointments: map[uuid.UUID]Appointment{},
		busy:         map[uuid.UUID]BusySlot{},
		requests:     map[uuid.UUID]RescheduleRequest{},
	}
}

func (r *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	return fn(ctx, r)
}

func (r *memRepo) LockEmployee(_ context.Context, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employeeLocks++
	return nil
}

func (r *memRepo) GetBusiness(_ context.Context, id uuid.UUID) (*Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (r *memRepo) GetEmployee(_ context.Context, id uuid.UUID) (*Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	return &e, nil
}

func (r *memRepo) GetServices(_ context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]CatalogService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CatalogService
	for _, id := range ids {
		if svc, ok := r.services[id]; ok && svc.BusinessID == businessID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (r *memRepo) ListWorkingHours(_ context.Context, employeeID uuid.UUID) ([]WorkingHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WorkingHours(nil), r.hours[employeeID]...), nil
}

func (r *memRepo) ReplaceWorkingHours(_ context.Context, employeeID uuid.UUID, hours []WorkingHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hours[employeeID] = append([]WorkingHours(nil), hours...)
	return nil
}

func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	return end.After(from) || !start.Before(from)
}

func (r *memRepo) ListActiveAppointments(_ context.Context, employeeID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.EmployeeID == employeeID && a.Status.Active() && overlaps(a.StartAt, a.EndAt, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) ListBusySlots(_ context.Context, businessID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]BusySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BusySlot
	for _, b := range r.busy {
		if b.BusinessID != businessID || !overlaps(b.StartAt, b.EndAt, from, to) {
			continue
		}
		if employeeID != nil && b.EmployeeID != nil && *b.EmployeeID != *employeeID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) InsertAppointment(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = *appt
	return nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.clock()
	if to == StatusCancelled {
		ts := a.UpdatedAt
		a.CancelledAt = &ts
	}
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepo) MoveAppointment(_ context.Context, id, employeeID uuid.UUID, start, end time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || !a.Status.Reschedulable() {
		return nil, ErrAppointmentNotFound
	}
	a.EmployeeID = employeeID
	a.StartAt = start
	a.EndAt = end
	a.UpdatedAt = r.clock()
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepo) FindStalePendingAppointments(_ context.Context, createdBefore time.Time, limit int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && a.CreatedAt.Before(createdBefore) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertBusySlot(_ context.Context, slot *BusySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot.CreatedAt = r.clock()
	r.busy[slot.ID] = *slot
	return nil
}

func (r *memRepo) DeleteBusySlot(_ context.Context, businessID, id uuid.UUID) (*BusySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.busy[id]
	if !ok || b.BusinessID != businessID {
		return nil, ErrBusySlotNotFound
	}
	delete(r.busy, id)
	return &b, nil
}

func (r *memRepo) InsertRescheduleRequest(_ context.Context, req *RescheduleRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.AppointmentID == req.AppointmentID && existing.Status == ReschedulePending {
			return ErrPendingRequestExists
		}
	}
	req.CreatedAt = r.clock()
	r.requests[req.ID] = *req
	return nil
}

func (r *memRepo) GetRescheduleRequest(_ context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRescheduleRequestNotFound
	}
	return &req, nil
}

func (r *memRepo) GetPendingRescheduleRequest(_ context.Context, appointmentID uuid.UUID) (*RescheduleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.AppointmentID == appointmentID && req.Status == ReschedulePending {
			return &req, nil
		}
	}
	return nil, ErrRescheduleRequestNotFound
}

func (r *memRepo) ResolveRescheduleRequest(_ context.Context, id uuid.UUID, to RescheduleStatus, rejectionReason *string) (*RescheduleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != ReschedulePending {
		return nil, ErrRescheduleRequestNotFound
	}
	ts := r.clock()
	req.Status = to
	req.RejectionReason = rejectionReason
	req.ResolvedAt = &ts
	r.requests[id] = req
	return &req, nil
}

func (r *memRepo) CancelPendingRescheduleRequests(_ context.Context, appointmentID uuid.UUID) ([]RescheduleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RescheduleRequest
	ts := r.clock()
	for id, req := range r.requests {
		if req.AppointmentID == appointmentID && req.Status == ReschedulePending {
			req.Status = RescheduleCancelled
			req.ResolvedAt = &ts
			r.requests[id] = req
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memRepo) FindStalePendingRescheduleRequests(_ context.Context, createdBefore time.Time, limit int) ([]RescheduleRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RescheduleRequest
	for _, req := range r.requests {
		if req.Status == ReschedulePending && req.CreatedAt.Before(createdBefore) && len(out) < limit {
			out = append(out, req)
		}
	}
	return out, nil
}
