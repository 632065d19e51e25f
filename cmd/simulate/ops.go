package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/api"
	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/availability"
	"github.com/hackgods/salon-scheduling/internal/realtime"
)

const dateLayout = "2006-01-02"

func customer(id uuid.UUID) appointment.Actor {
	return appointment.Actor{ID: id, Role: appointment.RoleUser}
}

func owner(businessID uuid.UUID) appointment.Actor {
	return appointment.Actor{ID: businessID, Role: appointment.RoleBusiness, BusinessID: businessID}
}

// authHeader signs a token when the server expects one and falls back to the
// development actor headers otherwise.
func (s *Simulator) authHeader(actor appointment.Actor) http.Header {
	h := http.Header{}
	if s.config.JWTSecret != "" {
		token, err := api.IssueToken(s.config.JWTSecret, actor, time.Hour)
		if err == nil {
			h.Set("Authorization", "Bearer "+token)
		}
		return h
	}
	h.Set("X-Actor-Id", actor.ID.String())
	h.Set("X-Actor-Role", string(actor.Role))
	if actor.BusinessID != uuid.Nil {
		h.Set("X-Business-Id", actor.BusinessID.String())
	}
	return h
}

// call sends an optional JSON body and decodes a 2xx response into out.
func (s *Simulator) call(ctx context.Context, method, path string, header http.Header, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) randomDay(rng *rand.Rand) string {
	return time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays)).Format(dateLayout)
}

// fetchAvailable reads one day of slots and returns the bookable starts.
func (s *Simulator) fetchAvailable(ctx context.Context, emp employeeRef, day string) ([]time.Time, error) {
	path := fmt.Sprintf("/businesses/%s/employees/%s/slots?%s", emp.BusinessID, emp.ID,
		url.Values{"from": {day}, "to": {day}}.Encode())

	start := time.Now()
	var out api.SlotsResponse
	status, err := s.call(ctx, http.MethodGet, path, nil, nil, &out)
	s.metrics.SlotsRead.Record(time.Since(start), err == nil && status == http.StatusOK, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("slots: status %d", status)
	}
	return availableStarts(out.Days), nil
}

func availableStarts(days []availability.DaySlots) []time.Time {
	var res []time.Time
	for _, d := range days {
		for _, sl := range d.Slots {
			if sl.Status == availability.StatusAvailable && !sl.IsPast {
				res = append(res, sl.Time)
			}
		}
	}
	return res
}

func (s *Simulator) doReadSlots(ctx context.Context, rng *rand.Rand) {
	emp := s.pool.Employees[rng.Intn(len(s.pool.Employees))]
	_, _ = s.fetchAvailable(ctx, emp, s.randomDay(rng))
}

func (s *Simulator) book(ctx context.Context, emp employeeRef, serviceID, customerID uuid.UUID, startAt time.Time, om *OperationMetrics) {
	req := api.CreateAppointmentRequest{
		BusinessID: emp.BusinessID,
		EmployeeID: emp.ID,
		ServiceIDs: []uuid.UUID{serviceID},
		StartAt:    startAt,
	}

	start := time.Now()
	var out api.AppointmentResponse
	status, err := s.call(ctx, http.MethodPost, "/appointments", s.authHeader(customer(customerID)), req, &out)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	om.Record(latency, success, status == http.StatusConflict)
	if success {
		s.pool.AddAppointment(bookedRef{ID: out.ID, BusinessID: emp.BusinessID, EmployeeID: emp.ID, CustomerID: customerID})
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	emp := s.pool.Employees[rng.Intn(len(s.pool.Employees))]
	starts, err := s.fetchAvailable(ctx, emp, s.randomDay(rng))
	if err != nil || len(starts) == 0 {
		return
	}
	serviceID := emp.Services[rng.Intn(len(emp.Services))]
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	s.book(ctx, emp, serviceID, customerID, starts[rng.Intn(len(starts))], &s.metrics.Booking)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+ref.ID.String()+"/status",
		s.authHeader(owner(ref.BusinessID)), api.UpdateStatusRequest{Status: string(appointment.StatusConfirmed)}, nil)
	s.metrics.Confirm.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

// doReschedule has the customer propose a new start and the salon answer it.
func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	emp := employeeRef{ID: ref.EmployeeID, BusinessID: ref.BusinessID}
	starts, err := s.fetchAvailable(ctx, emp, s.randomDay(rng))
	if err != nil || len(starts) == 0 {
		return
	}

	start := time.Now()
	var created api.RescheduleResponse
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+ref.ID.String()+"/reschedule-requests",
		s.authHeader(customer(ref.CustomerID)),
		api.CreateRescheduleRequest{NewStartAt: starts[rng.Intn(len(starts))]}, &created)
	success := err == nil && status == http.StatusCreated
	s.metrics.Reschedule.Record(time.Since(start), success, status == http.StatusConflict)
	if !success {
		return
	}

	action := appointment.ActionApprove
	if rng.Intn(4) == 0 {
		action = appointment.ActionReject
	}
	start = time.Now()
	status, err = s.call(ctx, http.MethodPost, "/reschedule-requests/"+created.ID.String()+"/resolve",
		s.authHeader(owner(ref.BusinessID)),
		api.ResolveRescheduleRequest{Action: string(action), RejectionReason: "fully booked that day"}, nil)
	s.metrics.Resolve.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/"+ref.ID.String(), s.authHeader(customer(ref.CustomerID)), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// storm fires StormSize customers at one free slot at the same instant.
// Exactly one of them should win.
func (s *Simulator) storm(ctx context.Context) {
	if s.config.StormSize <= 0 {
		return
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var (
		emp    employeeRef
		target time.Time
	)
	for attempt := 0; attempt < 10 && target.IsZero(); attempt++ {
		emp = s.pool.Employees[rng.Intn(len(s.pool.Employees))]
		starts, err := s.fetchAvailable(ctx, emp, s.randomDay(rng))
		if err == nil && len(starts) > 0 {
			target = starts[rng.Intn(len(starts))]
		}
	}
	if target.IsZero() {
		s.logger.Warn("no free slot found for the booking storm")
		return
	}
	serviceID := emp.Services[0]

	s.logger.Info("booking storm", "employee_id", emp.ID, "start_at", target, "clients", s.config.StormSize)
	gate := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.StormSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			s.book(ctx, emp, serviceID, uuid.New(), target, &s.metrics.Storm)
		}()
	}
	close(gate)
	wg.Wait()
}

// listen keeps a realtime subscription open for the first business and
// counts the refreshes it would trigger in a real client.
func (s *Simulator) listen(ctx context.Context) {
	businessID := s.pool.Employees[0].BusinessID
	wsURL := "ws" + strings.TrimPrefix(s.config.APIBaseURL, "http") + "/ws"

	client := realtime.NewClient(realtime.ClientConfig{
		URL:      wsURL,
		Header:   s.authHeader(owner(businessID)),
		Debounce: 250 * time.Millisecond,
		Logger:   s.logger,
	}, func(context.Context, realtime.RefreshReason) {
		atomic.AddInt64(&s.metrics.RealtimeRefreshes, 1)
	})
	if err := client.Run(ctx); err != nil {
		s.logger.Warn("realtime listener stopped", "err", err)
	}
}
