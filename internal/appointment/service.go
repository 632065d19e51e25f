package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/salon-scheduling/internal/availability"
	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/metrics"
	"github.com/hackgods/salon-scheduling/internal/realtime"
	redisclient "github.com/hackgods/salon-scheduling/internal/redis"
	"github.com/hackgods/salon-scheduling/internal/telemetry"
)

const tracerName = "github.com/hackgods/salon-scheduling/internal/appointment"

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	publisher realtime.Publisher
	metrics   *metrics.SchedulingMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	granularity   time.Duration
	capacity      int
	maxRangeDays  int
	pendingTTL    time.Duration
	rescheduleTTL time.Duration
}

type Option func(*Service)

func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		locker:        locker,
		publisher:     realtime.Nop,
		logger:        slog.Default(),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
		granularity:   cfg.SlotGranularity,
		capacity:      cfg.SlotCapacity,
		maxRangeDays:  cfg.MaxSlotRangeDays,
		pendingTTL:    cfg.PendingAppointmentTTL,
		rescheduleTTL: cfg.RescheduleRequestTTL,
	}
	if s.granularity < time.Minute {
		s.granularity = availability.DefaultGranularity
	}
	if s.capacity < 1 {
		s.capacity = 1
	}
	if s.maxRangeDays < 1 {
		s.maxRangeDays = 31
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlotQuery selects the grid to compute. From and To are calendar days in the
// business time zone, both inclusive.
type SlotQuery struct {
	BusinessID        uuid.UUID
	EmployeeID        uuid.UUID
	From              string
	To                string
	IncludeSuppressed bool
}

// GetSlots recomputes the occupancy grid from current rows on every call.
func (s *Service) GetSlots(ctx context.Context, q SlotQuery) ([]availability.DaySlots, error) {
	ctx, span := s.startSpan(ctx, "appointment.GetSlots",
		attribute.String("business_id", q.BusinessID.String()),
		attribute.String("employee_id", q.EmployeeID.String()),
	)
	defer span.End()
	started := time.Now()

	biz, _, err := s.loadEmployee(ctx, s.repo, q.BusinessID, q.EmployeeID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	loc := biz.Location()

	from, err := availability.ParseDate(q.From, loc)
	if err != nil {
		return nil, s.fail(span, validationf("from must be YYYY-MM-DD"))
	}
	to, err := availability.ParseDate(q.To, loc)
	if err != nil {
		return nil, s.fail(span, validationf("to must be YYYY-MM-DD"))
	}
	if to.Before(from) {
		return nil, s.fail(span, validationf("to must not be before from"))
	}
	if to.Sub(from) >= time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, s.fail(span, validationf("range exceeds %d days", s.maxRangeDays))
	}

	snap, err := s.snapshot(ctx, s.repo, biz, q.EmployeeID, from, to)
	if err != nil {
		return nil, s.fail(span, err)
	}
	in := snap.input(s.now())
	in.IncludeSuppressed = q.IncludeSuppressed

	days := availability.Resolve(in)
	s.metrics.ObserveSlotQuery(time.Since(started).Seconds())
	return days, nil
}

// calendar is the raw material for one employee's occupancy over a range of days.
type calendar struct {
	grid         []availability.Day
	rules        []availability.Rule
	appointments []availability.Appointment
	blocks       []availability.Block
	loc          *time.Location
	granularity  time.Duration
	capacity     int
}

func (c calendar) input(now time.Time) availability.ResolveInput {
	return availability.ResolveInput{
		Grid:         c.grid,
		Appointments: c.appointments,
		Blocks:       c.blocks,
		Granularity:  c.granularity,
		Capacity:     c.capacity,
		Now:          now,
		Rules:        c.rules,
		Location:     c.loc,
	}
}

// snapshot loads working hours, appointments and busy slots for the local
// days [fromDay, toDay] and builds the grid.
func (s *Service) snapshot(ctx context.Context, repo Repository, biz *Business, employeeID uuid.UUID, fromDay, toDay time.Time) (calendar, error) {
	loc := biz.Location()

	hours, err := repo.ListWorkingHours(ctx, employeeID)
	if err != nil {
		return calendar{}, fmt.Errorf("list working hours: %w", err)
	}
	rules := make([]availability.Rule, 0, len(hours))
	for _, wh := range hours {
		rule, err := availability.ParseRule(wh.DayOfWeek, wh.StartTime, wh.EndTime)
		if err != nil {
			s.logger.Warn("skip malformed working hours", "employee_id", employeeID, "working_hours_id", wh.ID, "err", err)
			continue
		}
		rules = append(rules, rule)
	}

	grid := availability.BuildGrid(availability.GridRequest{
		Rules:       rules,
		From:        fromDay,
		To:          toDay,
		Location:    loc,
		Granularity: s.granularity,
	})

	rangeStart := fromDay
	rangeEnd := time.Date(toDay.Year(), toDay.Month(), toDay.Day()+1, 0, 0, 0, 0, loc)

	appts, err := repo.ListActiveAppointments(ctx, employeeID, rangeStart, rangeEnd)
	if err != nil {
		return calendar{}, fmt.Errorf("list appointments: %w", err)
	}
	busy, err := repo.ListBusySlots(ctx, biz.ID, &employeeID, rangeStart, rangeEnd)
	if err != nil {
		return calendar{}, fmt.Errorf("list busy slots: %w", err)
	}

	cal := calendar{
		grid:        grid,
		rules:       rules,
		loc:         loc,
		granularity: s.granularity,
		capacity:    s.capacity,
	}
	for _, a := range appts {
		cal.appointments = append(cal.appointments, availability.Appointment{
			ID:       a.ID,
			Start:    a.StartAt,
			Duration: a.Duration(),
		})
	}
	for _, b := range busy {
		cal.blocks = append(cal.blocks, availability.Block{ID: b.ID, Start: b.StartAt, End: b.EndAt})
	}
	return cal, nil
}

// checkWindow verifies [start, start+duration) is bookable for the employee
// against the state visible through repo. exclude skips one appointment.
func (s *Service) checkWindow(ctx context.Context, repo Repository, biz *Business, employeeID uuid.UUID, start time.Time, duration time.Duration, exclude uuid.UUID) error {
	loc := biz.Location()
	fromDay := localDay(start, loc)
	toDay := localDay(start.Add(duration), loc)

	cal, err := s.snapshot(ctx, repo, biz, employeeID, fromDay, toDay)
	if err != nil {
		return err
	}

	v := availability.Bookable(cal.input(s.now()), start, duration, exclude)
	if v.OK {
		return nil
	}
	if v.Reason == availability.ReasonInPast {
		return validationf("start %s is in the past", start.UTC().Format(time.RFC3339))
	}
	return conflictf("slot %s is not available (%s)", v.At.UTC().Format(time.RFC3339), v.Reason)
}

// withEmployeeWrite runs fn under the Redis employee lock and inside a
// transaction holding the Postgres advisory lock for the same employee.
func (s *Service) withEmployeeWrite(ctx context.Context, employeeID uuid.UUID, fn func(ctx context.Context, tx Repository) error) error {
	err := s.locker.WithEmployeeLock(ctx, employeeID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, tx Repository) error {
			if err := tx.LockEmployee(txCtx, employeeID); err != nil {
				return err
			}
			return fn(txCtx, tx)
		})
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return conflictf("calendar is being updated, please retry")
	case errors.Is(err, redisclient.ErrLockUnavailable):
		s.logger.Warn("employee lock unavailable", "employee_id", employeeID, "err", err)
		return conflictf("calendar is temporarily unavailable, please retry")
	}
	return err
}

func (s *Service) loadEmployee(ctx context.Context, repo Repository, businessID, employeeID uuid.UUID) (*Business, *Employee, error) {
	emp, err := repo.GetEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, nil, notFoundf("employee %s not found", employeeID)
		}
		return nil, nil, fmt.Errorf("load employee: %w", err)
	}
	if businessID != uuid.Nil && emp.BusinessID != businessID {
		return nil, nil, notFoundf("employee %s not found", employeeID)
	}

	biz, err := repo.GetBusiness(ctx, emp.BusinessID)
	if err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			return nil, nil, notFoundf("business %s not found", emp.BusinessID)
		}
		return nil, nil, fmt.Errorf("load business: %w", err)
	}
	return biz, emp, nil
}

func (s *Service) loadBusiness(ctx context.Context, id uuid.UUID) (*Business, error) {
	biz, err := s.repo.GetBusiness(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			return nil, notFoundf("business %s not found", id)
		}
		return nil, fmt.Errorf("load business: %w", err)
	}
	return biz, nil
}

// loadVisibleAppointment hides appointments the actor may not see behind NotFound.
func (s *Service) loadVisibleAppointment(ctx context.Context, repo Repository, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, notFoundf("appointment %s not found", id)
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.CanSee(appt) {
		return nil, notFoundf("appointment %s not found", id)
	}
	return appt, nil
}

func (s *Service) publish(ctx context.Context, ev realtime.Event) {
	ev.ID = uuid.New()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	ev.TraceParent, _ = telemetry.TraceContextStrings(ctx)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed", "event_type", ev.Type, "business_id", ev.BusinessID, "err", err)
	}
}

func appointmentEvent(typ realtime.EventType, appt *Appointment) realtime.Event {
	id := appt.ID
	emp := appt.EmployeeID
	return realtime.Event{
		Type:          typ,
		BusinessID:    appt.BusinessID,
		EmployeeID:    &emp,
		AppointmentID: &id,
		CustomerID:    appt.CustomerID,
		Status:        string(appt.Status),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func localDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if e, ok := AsError(err); ok {
		return string(e.Code)
	}
	return "error"
}
