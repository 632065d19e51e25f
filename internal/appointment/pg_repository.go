package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// querier is the subset of pgx shared by pools, transactions and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool DB
	q    querier
	inTx bool
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, &PgRepository{pool: r.pool, q: tx, inTx: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PgRepository) LockEmployee(ctx context.Context, employeeID uuid.UUID) error {
	if !r.inTx {
		return errors.New("employee lock requires a transaction")
	}
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, employeeID.String()); err != nil {
		return fmt.Errorf("advisory lock employee %s: %w", employeeID, err)
	}
	return nil
}

// Helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const appointmentColumns = `id, business_id, employee_id, customer_id, customer_name, start_at, end_at,
	duration_minutes, status, notes, created_at, updated_at, cancelled_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.EmployeeID,
		&a.CustomerID,
		&a.CustomerName,
		&a.StartAt,
		&a.EndAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const rescheduleColumns = `id, appointment_id, business_id, requested_by_role, requested_by_id,
	old_start_at, new_start_at, old_employee_id, new_employee_id, reason, rejection_reason,
	status, created_at, resolved_at`

func scanReschedule(row pgx.Row) (*RescheduleRequest, error) {
	var req RescheduleRequest
	err := row.Scan(
		&req.ID,
		&req.AppointmentID,
		&req.BusinessID,
		&req.RequestedByRole,
		&req.RequestedByID,
		&req.OldStartAt,
		&req.NewStartAt,
		&req.OldEmployeeID,
		&req.NewEmployeeID,
		&req.Reason,
		&req.RejectionReason,
		&req.Status,
		&req.CreatedAt,
		&req.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRescheduleRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func scanReschedules(rows pgx.Rows) ([]RescheduleRequest, error) {
	defer rows.Close()

	var result []RescheduleRequest
	for rows.Next() {
		req, err := scanReschedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const busySlotColumns = `id, business_id, employee_id, start_at, end_at, reason, is_all_day, created_at`

func scanBusySlot(row pgx.Row) (*BusySlot, error) {
	var b BusySlot
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.EmployeeID,
		&b.StartAt,
		&b.EndAt,
		&b.Reason,
		&b.IsAllDay,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusySlotNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Collaborator data

func (r *PgRepository) GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error) {
	var b Business
	err := r.q.QueryRow(ctx, `
		SELECT id, name, timezone
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PgRepository) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	var e Employee
	err := r.q.QueryRow(ctx, `
		SELECT id, business_id, name
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.BusinessID, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *PgRepository) GetServices(ctx context.Context, businessID uuid.UUID, ids []uuid.UUID) ([]CatalogService, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, business_id, name, duration_minutes
		FROM services
		WHERE business_id = $1
		  AND id = ANY($2)
	`, businessID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CatalogService
	for rows.Next() {
		var s CatalogService
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Working hours

func (r *PgRepository) ListWorkingHours(ctx context.Context, employeeID uuid.UUID) ([]WorkingHours, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, employee_id, day_of_week, start_time, end_time
		FROM working_hours
		WHERE employee_id = $1
		ORDER BY day_of_week, start_time
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkingHours
	for rows.Next() {
		var wh WorkingHours
		if err := rows.Scan(&wh.ID, &wh.EmployeeID, &wh.DayOfWeek, &wh.StartTime, &wh.EndTime); err != nil {
			return nil, err
		}
		result = append(result, wh)
	}
	return result, rows.Err()
}

func (r *PgRepository) ReplaceWorkingHours(ctx context.Context, employeeID uuid.UUID, hours []WorkingHours) error {
	return r.InTx(ctx, func(ctx context.Context, tx Repository) error {
		q := tx.(*PgRepository).q
		if _, err := q.Exec(ctx, `DELETE FROM working_hours WHERE employee_id = $1`, employeeID); err != nil {
			return fmt.Errorf("clear working hours: %w", err)
		}
		for _, wh := range hours {
			_, err := q.Exec(ctx, `
				INSERT INTO working_hours (id, employee_id, day_of_week, start_time, end_time)
				VALUES ($1, $2, $3, $4, $5)
			`, wh.ID, employeeID, wh.DayOfWeek, wh.StartTime, wh.EndTime)
			if err != nil {
				return fmt.Errorf("insert working hours: %w", err)
			}
		}
		return nil
	})
}

// Occupancy

func (r *PgRepository) ListActiveAppointments(ctx context.Context, employeeID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE employee_id = $1
		  AND status <> 'cancelled'
		  AND start_at < $3
		  AND end_at >= $2
		ORDER BY start_at, id
	`, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListBusySlots(ctx context.Context, businessID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]BusySlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+busySlotColumns+`
		FROM busy_slots
		WHERE business_id = $1
		  AND ($2::uuid IS NULL OR employee_id IS NULL OR employee_id = $2)
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at, id
	`, businessID, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BusySlot
	for rows.Next() {
		b, err := scanBusySlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	appt.Services, err = r.listAppointmentServices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load service snapshot: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) listAppointmentServices(ctx context.Context, appointmentID uuid.UUID) ([]ServiceSnapshot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT service_id, name, duration_minutes
		FROM appointment_services
		WHERE appointment_id = $1
		ORDER BY position
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ServiceSnapshot
	for rows.Next() {
		var s ServiceSnapshot
		if err := rows.Scan(&s.ServiceID, &s.Name, &s.DurationMinutes); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt *Appointment) error {
	return r.InTx(ctx, func(ctx context.Context, tx Repository) error {
		q := tx.(*PgRepository).q
		err := q.QueryRow(ctx, `
			INSERT INTO appointments (id, business_id, employee_id, customer_id, customer_name,
				start_at, end_at, duration_minutes, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			RETURNING created_at, updated_at
		`, appt.ID, appt.BusinessID, appt.EmployeeID, appt.CustomerID, appt.CustomerName,
			appt.StartAt, appt.EndAt, appt.DurationMinutes, appt.Status, appt.Notes,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		for i, s := range appt.Services {
			_, err := q.Exec(ctx, `
				INSERT INTO appointment_services (appointment_id, service_id, name, duration_minutes, position)
				VALUES ($1, $2, $3, $4, $5)
			`, appt.ID, s.ServiceID, s.Name, s.DurationMinutes, i)
			if err != nil {
				return fmt.Errorf("insert service snapshot: %w", err)
			}
		}
		return nil
	})
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now(),
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) MoveAppointment(ctx context.Context, id, employeeID uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET employee_id = $2,
		    start_at = $3,
		    end_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns, id, employeeID, start, end)

	return scanAppointment(row)
}

func (r *PgRepository) FindStalePendingAppointments(ctx context.Context, createdBefore time.Time, limit int) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// Busy slots

func (r *PgRepository) InsertBusySlot(ctx context.Context, slot *BusySlot) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO busy_slots (id, business_id, employee_id, start_at, end_at, reason, is_all_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at
	`, slot.ID, slot.BusinessID, slot.EmployeeID, slot.StartAt, slot.EndAt, slot.Reason, slot.IsAllDay).Scan(&slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert busy slot: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteBusySlot(ctx context.Context, businessID, id uuid.UUID) (*BusySlot, error) {
	row := r.q.QueryRow(ctx, `
		DELETE FROM busy_slots
		WHERE id = $1
		  AND business_id = $2
		RETURNING `+busySlotColumns, id, businessID)
	return scanBusySlot(row)
}

// Reschedule requests

func (r *PgRepository) InsertRescheduleRequest(ctx context.Context, req *RescheduleRequest) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO reschedule_requests (id, appointment_id, business_id, requested_by_role, requested_by_id,
			old_start_at, new_start_at, old_employee_id, new_employee_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', now())
		RETURNING created_at
	`, req.ID, req.AppointmentID, req.BusinessID, req.RequestedByRole, req.RequestedByID,
		req.OldStartAt, req.NewStartAt, req.OldEmployeeID, req.NewEmployeeID, req.Reason,
	).Scan(&req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("insert reschedule request: %w", err)
	}
	req.Status = ReschedulePending
	return nil
}

func (r *PgRepository) GetRescheduleRequest(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+rescheduleColumns+`
		FROM reschedule_requests
		WHERE id = $1
	`, id)
	return scanReschedule(row)
}

func (r *PgRepository) GetPendingRescheduleRequest(ctx context.Context, appointmentID uuid.UUID) (*RescheduleRequest, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+rescheduleColumns+`
		FROM reschedule_requests
		WHERE appointment_id = $1
		  AND status = 'pending'
	`, appointmentID)
	return scanReschedule(row)
}

func (r *PgRepository) ResolveRescheduleRequest(ctx context.Context, id uuid.UUID, to RescheduleStatus, rejectionReason *string) (*RescheduleRequest, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE reschedule_requests
		SET status = $2,
		    rejection_reason = $3,
		    resolved_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+rescheduleColumns, id, to, rejectionReason)
	return scanReschedule(row)
}

func (r *PgRepository) CancelPendingRescheduleRequests(ctx context.Context, appointmentID uuid.UUID) ([]RescheduleRequest, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE reschedule_requests
		SET status = 'cancelled',
		    resolved_at = now()
		WHERE appointment_id = $1
		  AND status = 'pending'
		RETURNING `+rescheduleColumns, appointmentID)
	if err != nil {
		return nil, err
	}
	return scanReschedules(rows)
}

func (r *PgRepository) FindStalePendingRescheduleRequests(ctx context.Context, createdBefore time.Time, limit int) ([]RescheduleRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+rescheduleColumns+`
		FROM reschedule_requests
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	return scanReschedules(rows)
}
