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

type RescheduleAction string

const (
	ActionApprove RescheduleAction = "approve"
	ActionReject  RescheduleAction = "reject"
)

type CreateRescheduleInput struct {
	NewStartAt    time.Time
	NewEmployeeID *uuid.UUID
	Reason        *string
}

// CreateRescheduleRequest proposes a new time (and optionally employee) for an
// appointment. At most one request may be pending per appointment.
func (s *Service) CreateRescheduleRequest(ctx context.Context, actor Actor, appointmentID uuid.UUID, in CreateRescheduleInput) (req *RescheduleRequest, err error) {
	ctx, span := s.startSpan(ctx, "appointment.CreateRescheduleRequest",
		attribute.String("appointment_id", appointmentID.String()),
		attribute.String("actor_role", string(actor.Role)),
	)
	defer span.End()
	defer func() { s.metrics.ObserveReschedule("request", outcome(err)) }()

	if in.NewStartAt.IsZero() {
		return nil, s.fail(span, validationf("new_start_at is required"))
	}

	appt, err := s.loadVisibleAppointment(ctx, s.repo, actor, appointmentID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !actor.Owns(appt) && !actor.IsStaffOf(appt.BusinessID) {
		return nil, s.fail(span, unauthorizedf("not allowed to reschedule this appointment"))
	}
	if !appt.Status.Reschedulable() {
		return nil, s.fail(span, invalidStatef("cannot reschedule a %s appointment", appt.Status))
	}

	if _, err := s.repo.GetPendingRescheduleRequest(ctx, appt.ID); err == nil {
		return nil, s.fail(span, duplicateRequest())
	} else if !errors.Is(err, ErrRescheduleRequestNotFound) {
		return nil, s.fail(span, fmt.Errorf("check pending request: %w", err))
	}

	target := appt.EmployeeID
	var newEmployee *uuid.UUID
	if in.NewEmployeeID != nil && *in.NewEmployeeID != uuid.Nil && *in.NewEmployeeID != appt.EmployeeID {
		id := *in.NewEmployeeID
		target = id
		newEmployee = &id
	}

	newStart := in.NewStartAt.UTC()
	if newEmployee == nil && newStart.Equal(appt.StartAt) {
		return nil, s.fail(span, validationf("reschedule must change the time or the employee"))
	}

	biz, _, err := s.loadEmployee(ctx, s.repo, appt.BusinessID, target)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.checkWindow(ctx, s.repo, biz, target, newStart, appt.Duration(), appt.ID); err != nil {
		return nil, s.fail(span, err)
	}

	req = &RescheduleRequest{
		ID:              uuid.New(),
		AppointmentID:   appt.ID,
		BusinessID:      appt.BusinessID,
		RequestedByRole: actor.Role,
		RequestedByID:   actor.ID,
		OldStartAt:      appt.StartAt,
		NewStartAt:      newStart,
		OldEmployeeID:   appt.EmployeeID,
		NewEmployeeID:   newEmployee,
		Reason:          trimmed(in.Reason),
		Status:          ReschedulePending,
	}
	if err := s.repo.InsertRescheduleRequest(ctx, req); err != nil {
		if errors.Is(err, ErrPendingRequestExists) {
			return nil, s.fail(span, duplicateRequest())
		}
		return nil, s.fail(span, fmt.Errorf("create reschedule request: %w", err))
	}

	s.logger.Info("reschedule requested",
		"request_id", req.ID,
		"appointment_id", appt.ID,
		"requested_by_role", actor.Role,
		"new_start_at", newStart,
	)
	s.publish(ctx, rescheduleEvent(realtime.RescheduleRequested, req, appt))
	return req, nil
}

// ResolveRescheduleRequest approves or rejects a pending request. Only the
// counter-party may resolve it. Approval re-checks the target window under
// the employee lock and moves the appointment without touching its status.
func (s *Service) ResolveRescheduleRequest(ctx context.Context, actor Actor, requestID uuid.UUID, action RescheduleAction, rejectionReason string) (req *RescheduleRequest, err error) {
	ctx, span := s.startSpan(ctx, "appointment.ResolveRescheduleRequest",
		attribute.String("request_id", requestID.String()),
		attribute.String("action", string(action)),
	)
	defer span.End()
	defer func() { s.metrics.ObserveReschedule(string(action), outcome(err)) }()

	if action != ActionApprove && action != ActionReject {
		return nil, s.fail(span, validationf("action must be approve or reject"))
	}
	reason := strings.TrimSpace(rejectionReason)
	if action == ActionReject && reason == "" {
		return nil, s.fail(span, validationf("rejection_reason is required"))
	}

	req, appt, err := s.loadVisibleRequest(ctx, actor, requestID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !canResolve(actor, req, appt) {
		return nil, s.fail(span, unauthorizedf("only the other party can resolve this request"))
	}
	if req.Status != ReschedulePending {
		return nil, s.fail(span, invalidStatef("request is already %s", req.Status))
	}

	if action == ActionReject {
		resolved, err := s.repo.ResolveRescheduleRequest(ctx, req.ID, RescheduleRejected, &reason)
		if err != nil {
			return nil, s.fail(span, resolveErr(err))
		}
		s.logger.Info("reschedule rejected", "request_id", req.ID, "appointment_id", appt.ID)
		s.publish(ctx, rescheduleEvent(realtime.RescheduleRejected, resolved, appt))
		return resolved, nil
	}

	target := req.TargetEmployee()
	biz, _, err := s.loadEmployee(ctx, s.repo, appt.BusinessID, target)
	if err != nil {
		return nil, s.fail(span, err)
	}

	var moved *Appointment
	var resolved *RescheduleRequest
	err = s.withEmployeeWrite(ctx, target, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetAppointmentByID(ctx, appt.ID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return notFoundf("appointment %s not found", appt.ID)
			}
			return fmt.Errorf("reload appointment: %w", err)
		}
		if !current.Status.Reschedulable() {
			return invalidStatef("cannot reschedule a %s appointment", current.Status)
		}

		if err := s.checkWindow(ctx, tx, biz, target, req.NewStartAt, current.Duration(), current.ID); err != nil {
			return err
		}

		moved, err = tx.MoveAppointment(ctx, current.ID, target, req.NewStartAt, req.NewStartAt.Add(current.Duration()))
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return invalidStatef("appointment changed concurrently, refresh and retry")
			}
			return fmt.Errorf("move appointment: %w", err)
		}
		moved.Services = current.Services

		resolved, err = tx.ResolveRescheduleRequest(ctx, req.ID, RescheduleApproved, nil)
		if err != nil {
			return resolveErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.Info("reschedule approved",
		"request_id", req.ID,
		"appointment_id", moved.ID,
		"employee_id", moved.EmployeeID,
		"start_at", moved.StartAt,
	)
	s.publish(ctx, rescheduleEvent(realtime.RescheduleApproved, resolved, moved))
	return resolved, nil
}

// CancelRescheduleRequest withdraws a pending request. Only its requester side may.
func (s *Service) CancelRescheduleRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (req *RescheduleRequest, err error) {
	ctx, span := s.startSpan(ctx, "appointment.CancelRescheduleRequest",
		attribute.String("request_id", requestID.String()),
	)
	defer span.End()
	defer func() { s.metrics.ObserveReschedule("cancel", outcome(err)) }()

	req, appt, err := s.loadVisibleRequest(ctx, actor, requestID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !isRequesterSide(actor, req, appt) {
		return nil, s.fail(span, unauthorizedf("only the requester can cancel this request"))
	}
	if req.Status != ReschedulePending {
		return nil, s.fail(span, invalidStatef("request is already %s", req.Status))
	}

	cancelled, err := s.repo.ResolveRescheduleRequest(ctx, req.ID, RescheduleCancelled, nil)
	if err != nil {
		return nil, s.fail(span, resolveErr(err))
	}

	s.logger.Info("reschedule cancelled", "request_id", req.ID, "appointment_id", appt.ID)
	s.publish(ctx, rescheduleEvent(realtime.RescheduleCancelled, cancelled, appt))
	return cancelled, nil
}

// GetRescheduleRequest returns a request whose appointment the actor may see.
func (s *Service) GetRescheduleRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (*RescheduleRequest, error) {
	req, _, err := s.loadVisibleRequest(ctx, actor, requestID)
	return req, err
}

func (s *Service) loadVisibleRequest(ctx context.Context, actor Actor, requestID uuid.UUID) (*RescheduleRequest, *Appointment, error) {
	req, err := s.repo.GetRescheduleRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRescheduleRequestNotFound) {
			return nil, nil, notFoundf("reschedule request %s not found", requestID)
		}
		return nil, nil, fmt.Errorf("load reschedule request: %w", err)
	}
	appt, err := s.loadVisibleAppointment(ctx, s.repo, actor, req.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, notFoundf("reschedule request %s not found", requestID)
		}
		return nil, nil, err
	}
	return req, appt, nil
}

// canResolve: staff resolve customer requests and customers resolve staff
// requests. Walk-in appointments have no customer account, so staff may
// resolve staff requests on them.
func canResolve(actor Actor, req *RescheduleRequest, appt *Appointment) bool {
	if req.RequestedByStaff() {
		if appt.CustomerID == nil {
			return actor.IsStaffOf(appt.BusinessID)
		}
		return actor.Owns(appt)
	}
	return actor.IsStaffOf(appt.BusinessID)
}

func isRequesterSide(actor Actor, req *RescheduleRequest, appt *Appointment) bool {
	if req.RequestedByStaff() {
		return actor.IsStaffOf(appt.BusinessID)
	}
	return actor.Role == RoleUser && actor.ID == req.RequestedByID
}

func resolveErr(err error) error {
	if errors.Is(err, ErrRescheduleRequestNotFound) {
		return invalidStatef("request was resolved concurrently, refresh and retry")
	}
	return fmt.Errorf("resolve reschedule request: %w", err)
}

func rescheduleEvent(typ realtime.EventType, req *RescheduleRequest, appt *Appointment) realtime.Event {
	ev := appointmentEvent(typ, appt)
	rid := req.ID
	ev.RequestID = &rid
	ev.Status = string(req.Status)
	return ev
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
