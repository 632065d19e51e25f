package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/salon-scheduling/internal/availability"
	"github.com/hackgods/salon-scheduling/internal/realtime"
)

type BusySlotInput struct {
	EmployeeID *uuid.UUID // nil blocks every employee of the business
	StartAt    time.Time
	EndAt      time.Time
	Reason     string
	IsAllDay   bool
}

// CreateBusySlot blocks time without an appointment. All-day blocks cover the
// business-local calendar day containing StartAt.
func (s *Service) CreateBusySlot(ctx context.Context, actor Actor, businessID uuid.UUID, in BusySlotInput) (*BusySlot, error) {
	ctx, span := s.startSpan(ctx, "appointment.CreateBusySlot",
		attribute.String("business_id", businessID.String()),
	)
	defer span.End()

	if !actor.IsStaffOf(businessID) {
		return nil, s.fail(span, unauthorizedf("only business staff can block time"))
	}

	biz, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if in.EmployeeID != nil {
		if _, _, err := s.loadEmployee(ctx, s.repo, businessID, *in.EmployeeID); err != nil {
			return nil, s.fail(span, err)
		}
	}

	if in.StartAt.IsZero() {
		return nil, s.fail(span, validationf("start_at is required"))
	}
	start, end := in.StartAt, in.EndAt
	if in.IsAllDay {
		loc := biz.Location()
		start = localDay(in.StartAt, loc)
		end = time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	}
	if !end.After(start) {
		return nil, s.fail(span, validationf("end_at must be after start_at"))
	}

	slot := &BusySlot{
		ID:         uuid.New(),
		BusinessID: businessID,
		EmployeeID: in.EmployeeID,
		StartAt:    start.UTC(),
		EndAt:      end.UTC(),
		Reason:     strings.TrimSpace(in.Reason),
		IsAllDay:   in.IsAllDay,
	}
	if err := s.repo.InsertBusySlot(ctx, slot); err != nil {
		return nil, s.fail(span, err)
	}

	s.logger.Info("busy slot created", "busy_slot_id", slot.ID, "business_id", businessID, "start_at", slot.StartAt, "end_at", slot.EndAt)
	s.publish(ctx, realtime.Event{Type: realtime.BusySlotCreated, BusinessID: businessID, EmployeeID: slot.EmployeeID})
	return slot, nil
}

// DeleteBusySlot makes the blocked time available again.
func (s *Service) DeleteBusySlot(ctx context.Context, actor Actor, businessID, id uuid.UUID) error {
	ctx, span := s.startSpan(ctx, "appointment.DeleteBusySlot",
		attribute.String("busy_slot_id", id.String()),
	)
	defer span.End()

	if !actor.IsStaffOf(businessID) {
		return s.fail(span, unauthorizedf("only business staff can unblock time"))
	}

	deleted, err := s.repo.DeleteBusySlot(ctx, businessID, id)
	if err != nil {
		if errors.Is(err, ErrBusySlotNotFound) {
			return s.fail(span, notFoundf("busy slot %s not found", id))
		}
		return s.fail(span, fmt.Errorf("delete busy slot: %w", err))
	}

	s.logger.Info("busy slot deleted", "busy_slot_id", id, "business_id", businessID)
	s.publish(ctx, realtime.Event{Type: realtime.BusySlotDeleted, BusinessID: businessID, EmployeeID: deleted.EmployeeID})
	return nil
}

// ListBusySlots returns blocks overlapping the local days [from, to].
func (s *Service) ListBusySlots(ctx context.Context, actor Actor, businessID uuid.UUID, employeeID *uuid.UUID, from, to string) ([]BusySlot, error) {
	if !actor.IsStaffOf(businessID) {
		return nil, unauthorizedf("only business staff can list blocked time")
	}
	biz, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	loc := biz.Location()

	fromDay, err := availability.ParseDate(from, loc)
	if err != nil {
		return nil, validationf("from must be YYYY-MM-DD")
	}
	toDay, err := availability.ParseDate(to, loc)
	if err != nil {
		return nil, validationf("to must be YYYY-MM-DD")
	}
	if toDay.Before(fromDay) {
		return nil, validationf("to must not be before from")
	}
	end := time.Date(toDay.Year(), toDay.Month(), toDay.Day()+1, 0, 0, 0, 0, loc)

	slots, err := s.repo.ListBusySlots(ctx, businessID, employeeID, fromDay, end)
	if err != nil {
		return nil, fmt.Errorf("list busy slots: %w", err)
	}
	return slots, nil
}

type WorkingHoursInput struct {
	DayOfWeek int
	StartTime string
	EndTime   string
}

// ReplaceWorkingHours swaps an employee's weekly template in one transaction.
func (s *Service) ReplaceWorkingHours(ctx context.Context, actor Actor, businessID, employeeID uuid.UUID, in []WorkingHoursInput) ([]WorkingHours, error) {
	ctx, span := s.startSpan(ctx, "appointment.ReplaceWorkingHours",
		attribute.String("employee_id", employeeID.String()),
	)
	defer span.End()

	if !actor.IsStaffOf(businessID) {
		return nil, s.fail(span, unauthorizedf("only business staff can edit working hours"))
	}
	if _, _, err := s.loadEmployee(ctx, s.repo, businessID, employeeID); err != nil {
		return nil, s.fail(span, err)
	}

	hours := make([]WorkingHours, 0, len(in))
	for i, h := range in {
		rule, err := availability.ParseRule(h.DayOfWeek, h.StartTime, h.EndTime)
		if err != nil {
			return nil, s.fail(span, validationf("working_hours[%d]: %v", i, err))
		}
		hours = append(hours, WorkingHours{
			ID:         uuid.New(),
			EmployeeID: employeeID,
			DayOfWeek:  int(rule.DayOfWeek),
			StartTime:  rule.Start.String(),
			EndTime:    rule.End.String(),
		})
	}

	if err := s.repo.ReplaceWorkingHours(ctx, employeeID, hours); err != nil {
		return nil, s.fail(span, fmt.Errorf("replace working hours: %w", err))
	}

	s.logger.Info("working hours replaced", "employee_id", employeeID, "rules", len(hours))
	emp := employeeID
	s.publish(ctx, realtime.Event{Type: realtime.WorkingHoursUpdated, BusinessID: businessID, EmployeeID: &emp})
	return hours, nil
}

func (s *Service) ListWorkingHours(ctx context.Context, businessID, employeeID uuid.UUID) ([]WorkingHours, error) {
	if _, _, err := s.loadEmployee(ctx, s.repo, businessID, employeeID); err != nil {
		return nil, err
	}
	hours, err := s.repo.ListWorkingHours(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	return hours, nil
}
