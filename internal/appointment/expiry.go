package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/salon-scheduling/internal/realtime"
)

const expiryBatchSize = 100

type ExpiryReport struct {
	RescheduleRequests int
	Appointments       int
}

// ExpireStale cancels pending reschedule requests and pending appointments
// older than their configured TTL. A zero TTL disables that half.
func (s *Service) ExpireStale(ctx context.Context) (ExpiryReport, error) {
	ctx, span := s.startSpan(ctx, "appointment.ExpireStale")
	defer span.End()

	var report ExpiryReport
	now := s.now()

	if s.rescheduleTTL > 0 {
		stale, err := s.repo.FindStalePendingRescheduleRequests(ctx, now.Add(-s.rescheduleTTL), expiryBatchSize)
		if err != nil {
			return report, s.fail(span, fmt.Errorf("find stale reschedule requests: %w", err))
		}
		for _, req := range stale {
			cancelled, err := s.repo.ResolveRescheduleRequest(ctx, req.ID, RescheduleCancelled, nil)
			if err != nil {
				if !errors.Is(err, ErrRescheduleRequestNotFound) {
					s.logger.Error("expire reschedule request failed", "request_id", req.ID, "err", err)
				}
				continue
			}
			report.RescheduleRequests++

			appt, err := s.repo.GetAppointmentByID(ctx, req.AppointmentID)
			if err != nil {
				s.logger.Warn("load appointment for expired request", "request_id", req.ID, "err", err)
				continue
			}
			s.publish(ctx, rescheduleEvent(realtime.RescheduleCancelled, cancelled, appt))
		}
	}

	if s.pendingTTL > 0 {
		stale, err := s.repo.FindStalePendingAppointments(ctx, now.Add(-s.pendingTTL), expiryBatchSize)
		if err != nil {
			return report, s.fail(span, fmt.Errorf("find stale pending appointments: %w", err))
		}
		for i := range stale {
			if _, err := s.cancel(ctx, &stale[i]); err != nil {
				if e, ok := AsError(err); !ok || e.Code != CodeInvalidState {
					s.logger.Error("expire appointment failed", "appointment_id", stale[i].ID, "err", err)
				}
				continue
			}
			report.Appointments++
		}
	}

	s.metrics.ObserveExpired("reschedule_request", report.RescheduleRequests)
	s.metrics.ObserveExpired("appointment", report.Appointments)
	if report.RescheduleRequests > 0 || report.Appointments > 0 {
		s.logger.Info("expired stale items",
			"reschedule_requests", report.RescheduleRequests,
			"appointments", report.Appointments,
		)
	}
	return report, nil
}
