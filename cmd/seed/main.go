package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/logging"
)

var serviceMenu = []struct {
	name    string
	minutes int
}{
	{"Haircut", 30},
	{"Beard trim", 15},
	{"Wash & blow-dry", 45},
	{"Root color", 60},
	{"Full color", 90},
	{"Balayage", 120},
	{"Keratin treatment", 120},
	{"Kids cut", 15},
	{"Consultation", 0},
}

var timezones = []string{"UTC", "Europe/London", "Europe/Berlin", "America/New_York", "Asia/Jerusalem"}

type seedOptions struct {
	Businesses           int
	EmployeesPerBusiness int
	BusySlotsPerEmployee int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: "text", Service: "seed"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	opts := seedOptions{Businesses: 10, EmployeesPerBusiness: 6, BusySlotsPerEmployee: 3}
	if err := seed(context.Background(), pool, logger, opts); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

// seed writes one transaction per business so a failure leaves whole
// businesses behind, never half of one.
func seed(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, opts seedOptions) error {
	for i := 0; i < opts.Businesses; i++ {
		businessID := uuid.New()
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if err := seedBusiness(ctx, tx, businessID, opts); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("business %d: %w", i, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("business seeded", "business_id", businessID, "progress", fmt.Sprintf("%d/%d", i+1, opts.Businesses))
	}
	return nil
}

func seedBusiness(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, opts seedOptions) error {
	tz := timezones[gofakeit.Number(0, len(timezones)-1)]
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO businesses (id, name, timezone) VALUES ($1, $2, $3)
	`, businessID, gofakeit.Company()+" Salon", tz); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, s := range serviceMenu {
		batch.Queue(`
			INSERT INTO services (id, business_id, name, duration_minutes) VALUES ($1, $2, $3, $4)
		`, uuid.New(), businessID, s.name, s.minutes)
	}

	today := time.Now().In(loc)
	for e := 0; e < opts.EmployeesPerBusiness; e++ {
		employeeID := uuid.New()
		batch.Queue(`
			INSERT INTO employees (id, business_id, name) VALUES ($1, $2, $3)
		`, employeeID, businessID, gofakeit.FirstName()+" "+gofakeit.LastName())

		for _, wh := range shiftFor(e) {
			batch.Queue(`
				INSERT INTO working_hours (id, employee_id, day_of_week, start_time, end_time)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.New(), employeeID, wh.day, wh.start, wh.end)
		}

		for b := 0; b < opts.BusySlotsPerEmployee; b++ {
			day := today.AddDate(0, 0, gofakeit.Number(1, 21))
			start := time.Date(day.Year(), day.Month(), day.Day(), gofakeit.Number(10, 15), 0, 0, 0, loc)
			end := start.Add(time.Duration(gofakeit.RandomInt([]int{30, 60, 90})) * time.Minute)
			batch.Queue(`
				INSERT INTO busy_slots (id, business_id, employee_id, start_at, end_at, reason)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), businessID, employeeID, start.UTC(), end.UTC(),
				gofakeit.RandomString([]string{"Lunch", "Training", "Dentist", "Supplier visit"}))
		}
	}

	return tx.SendBatch(ctx, batch).Close()
}

type shift struct {
	day        int
	start, end string
}

// shiftFor alternates between a straight day, a split shift and a late shift,
// Monday through Saturday.
func shiftFor(employee int) []shift {
	var out []shift
	for day := 1; day <= 6; day++ {
		switch employee % 3 {
		case 0:
			out = append(out, shift{day, "09:00", "17:00"})
		case 1:
			out = append(out, shift{day, "09:00", "13:00"}, shift{day, "14:00", "18:00"})
		default:
			if day == 6 {
				continue
			}
			out = append(out, shift{day, "12:00", "20:00"})
		}
	}
	return out
}
