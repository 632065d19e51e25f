package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/salon-scheduling/internal/realtime"
)

type CreateAppointmentInput struct {
	BusinessID   uuid.UUID
	EmployeeID   uuid.UUID
	ServiceIDs   []uuid.UUID
	StartAt      time.Time
	CustomerID   *uuid.UUID // business manual entry only
	CustomerName string
	Notes        string
}

// CreateAppointment books a customer (role user) or records a manual entry
// made by business staff. The availability check and the insert run under the
// employee lock in one transaction, so two overlapping bookings cannot both
// succeed; the loser gets a retryable conflict.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, in CreateAppointmentInput) (created *Appointment, err error) {
	ctx, span := s.startSpan(ctx, "appointment.CreateAppointment",
		attribute.String("employee_id", in.EmployeeID.String()),
		attribute.String("actor_role", string(actor.Role)),
	)
	defer span.End()
	defer func() { s.metrics.ObserveBooking(outcome(err)) }()

	if in.EmployeeID == uuid.Nil {
		return nil, s.fail(span, validationf("employee_id is required"))
	}
	if len(in.ServiceIDs) == 0 {
		return nil, s.fail(span, validationf("at least one service is required"))
	}
	if in.StartAt.IsZero() {
		return nil, s.fail(span, validationf("start_at is required"))
	}

	biz, emp, err := s.loadEmployee(ctx, s.repo, in.BusinessID, in.EmployeeID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	appt := &Appointment{
		ID:           uuid.New(),
		BusinessID:   biz.ID,
		EmployeeID:   emp.ID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Notes:        strings.TrimSpace(in.Notes),
		Status:       StatusPending,
	}

	switch {
	case actor.Role == RoleUser:
		if in.CustomerID != nil && *in.CustomerID != actor.ID {
			return nil, s.fail(span, unauthorizedf("customers can only book for themselves"))
		}
		id := actor.ID
		appt.CustomerID = &id
	case actor.IsStaffOf(biz.ID):
		if appt.CustomerName == "" {
			return nil, s.fail(span, validationf("customer_name is required for manual bookings"))
		}
		appt.CustomerID = in.CustomerID
		appt.Status = StatusConfirmed
	default:
		return nil, s.fail(span, unauthorizedf("not allowed to book for business %s", biz.ID))
	}

	snapshot, minutes, err := s.resolveServices(ctx, biz.ID, in.ServiceIDs)
	if err != nil {
		return nil, s.fail(span, err)
	}
	appt.Services = snapshot
	appt.DurationMinutes = minutes
	appt.StartAt = in.StartAt.UTC()
	appt.EndAt = appt.StartAt.Add(appt.Duration())

	err = s.withEmployeeWrite(ctx, emp.ID, func(ctx context.Context, tx Repository) error {
		if err := s.checkWindow(ctx, tx, biz, emp.ID, appt.StartAt, appt.Duration(), uuid.Nil); err != nil {
			return err
		}
		return tx.InsertAppointment(ctx, appt)
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"employee_id", appt.EmployeeID,
		"start_at", appt.StartAt,
		"duration_minutes", appt.DurationMinutes,
		"status", appt.Status,
	)
	s.publish(ctx, appointmentEvent(realtime.AppointmentCreated, appt))
	return appt, nil
}

// resolveServices snapshots the requested services and sums their durations.
// Repeated ids count once.
func (s *Service) resolveServices(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]ServiceSnapshot, int, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	services, err := s.repo.GetServices(ctx, businessID, unique)
	if err != nil {
		return nil, 0, fmt.Errorf("load services: %w", err)
	}
	byID := make(map[uuid.UUID]CatalogService, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	snapshot := make([]ServiceSnapshot, 0, len(unique))
	total := 0
	for _, id := range unique {
		svc, ok := byID[id]
		if !ok {
			return nil, 0, notFoundf("service %s not found", id)
		}
		snapshot = append(snapshot, ServiceSnapshot{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
		})
		total += svc.DurationMinutes
	}
	return snapshot, total, nil
}

// UpdateAppointmentStatus applies a business side status transition.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, actor Actor, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointment.UpdateAppointmentStatus",
		attribute.String("appointment_id", id.String()),
		attribute.String("status", string(to)),
	)
	defer span.End()

	if !to.Valid() {
		return nil, s.fail(span, validationf("unknown status %q", to))
	}

	appt, err := s.loadVisibleAppointment(ctx, s.repo, actor, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !actor.IsStaffOf(appt.BusinessID) {
		return nil, s.fail(span, unauthorizedf("only business staff can change appointment status"))
	}

	if to == StatusCancelled {
		updated, err := s.cancel(ctx, appt)
		if err != nil {
			return nil, s.fail(span, err)
		}
		return updated, nil
	}

	if !appt.Status.CanTransitionTo(to) {
		return nil, s.fail(span, invalidStatef("cannot move appointment from %s to %s", appt.Status, to))
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.fail(span, invalidStatef("appointment changed concurrently, refresh and retry"))
		}
		return nil, s.fail(span, fmt.Errorf("update appointment status: %w", err))
	}
	updated.Services = appt.Services

	s.metrics.ObserveTransition(string(to))
	s.logger.Info("appointment status updated", "appointment_id", id, "from", appt.Status, "to", to)
	s.publish(ctx, appointmentEvent(realtime.AppointmentStatusUpdated, updated))
	return updated, nil
}

// CancelAppointment cancels an appointment for its customer or business staff.
// Pending reschedule requests are voided in the same transaction.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointment.CancelAppointment",
		attribute.String("appointment_id", id.String()),
	)
	defer span.End()

	appt, err := s.loadVisibleAppointment(ctx, s.repo, actor, id)
	if err != nil {
		return nil, s.fail(span, err)
	}

	updated, err := s.cancel(ctx, appt)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, invalidStatef("cannot cancel a %s appointment", appt.Status)
	}

	var updated *Appointment
	var voided []RescheduleRequest
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		updated, err = tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return invalidStatef("appointment changed concurrently, refresh and retry")
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}
		voided, err = tx.CancelPendingRescheduleRequests(ctx, appt.ID)
		if err != nil {
			return fmt.Errorf("void reschedule requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	updated.Services = appt.Services

	s.metrics.ObserveTransition(string(StatusCancelled))
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "voided_requests", len(voided))

	s.publish(ctx, appointmentEvent(realtime.AppointmentCancelled, updated))
	for i := range voided {
		s.publish(ctx, rescheduleEvent(realtime.RescheduleCancelled, &voided[i], updated))
	}
	return updated, nil
}

// GetAppointment returns the appointment if the actor may see it.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.loadVisibleAppointment(ctx, s.repo, actor, id)
}
