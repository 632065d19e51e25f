package availability

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUnavailable Status = "unavailable"
	StatusAvailable   Status = "available"
	StatusHalfBusy    Status = "half-busy"
	StatusBusy        Status = "busy"
	StatusBlocked     Status = "blocked"
	// StatusOccupied marks a slot inside an appointment that started earlier.
	StatusOccupied Status = "occupied"
)

type PastState string

const (
	PastAttended PastState = "attended"
	PastExpired  PastState = "expired"
)

// Appointment is the occupancy view of a non-cancelled appointment.
type Appointment struct {
	ID       uuid.UUID
	Start    time.Time
	Duration time.Duration
}

func (a Appointment) End() time.Time {
	return a.Start.Add(a.Duration)
}

// Block is a busy window that removes time from the grid without an appointment.
type Block struct {
	ID    uuid.UUID
	Start time.Time
	End   time.Time
}

type Capacity struct {
	Used  int `json:"used"`
	Total int `json:"total"`
}

type Slot struct {
	Time          time.Time  `json:"time"`
	Status        Status     `json:"status"`
	IsPast        bool       `json:"is_past"`
	PastState     PastState  `json:"past_state,omitempty"`
	Capacity      *Capacity  `json:"capacity,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	BusySlotID    *uuid.UUID `json:"busy_slot_id,omitempty"`
	Suppressed    bool       `json:"suppressed,omitempty"`
}

type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// ResolveInput is everything the resolver needs; it never performs I/O.
type ResolveInput struct {
	Grid         []Day
	Appointments []Appointment
	Blocks       []Block
	Granularity  time.Duration
	Capacity     int
	Now          time.Time

	// Rules and Location are optional. When set, grid slots no longer covered
	// by a rule resolve to unavailable.
	Rules    []Rule
	Location *time.Location

	IncludeSuppressed bool
}

func (in ResolveInput) step() time.Duration {
	if in.Granularity < time.Minute {
		return DefaultGranularity
	}
	return in.Granularity
}

func (in ResolveInput) capacity() int {
	if in.Capacity < 1 {
		return 1
	}
	return in.Capacity
}

// Resolve overlays appointments and blocks on the grid and annotates every slot.
// Output order follows the grid; identical input gives identical output.
func Resolve(in ResolveInput) []DaySlots {
	out := make([]DaySlots, 0, len(in.Grid))
	for _, day := range in.Grid {
		ds := DaySlots{Date: day.Date, Slots: make([]Slot, 0, len(day.Slots))}
		for _, t := range day.Slots {
			s := in.resolveSlot(t, uuid.Nil)
			if s.Suppressed && !in.IncludeSuppressed {
				continue
			}
			ds.Slots = append(ds.Slots, s)
		}
		out = append(out, ds)
	}
	return out
}

func (in ResolveInput) resolveSlot(t time.Time, exclude uuid.UUID) Slot {
	step := in.step()
	total := in.capacity()
	slot := Slot{Time: t, Status: StatusAvailable}

	covering := in.covering(t, exclude)
	used := len(covering)

	if t.Before(in.Now) {
		slot.IsPast = true
		slot.PastState = PastExpired
		if used > 0 {
			slot.PastState = PastAttended
		}
	}

	if !in.covered(t) {
		slot.Status = StatusUnavailable
		return slot
	}

	var chosen *Appointment
	if used > 0 {
		chosen = closestPreceding(covering, t)
		id := chosen.ID
		slot.AppointmentID = &id
	}

	switch {
	case used >= total:
		if startsWithin(chosen.Start, t, step) {
			slot.Status = StatusBusy
		} else {
			slot.Status = StatusOccupied
			slot.Suppressed = true
		}
	case in.blockAt(t) != nil:
		b := in.blockAt(t)
		id := b.ID
		slot.Status = StatusBlocked
		slot.BusySlotID = &id
	case used > 0:
		slot.Status = StatusHalfBusy
		slot.Capacity = &Capacity{Used: used, Total: total}
	}

	if total > 1 && slot.Capacity == nil && slot.Status == StatusBusy {
		slot.Capacity = &Capacity{Used: used, Total: total}
	}
	return slot
}

// covers reports whether the appointment occupies the slot [t, t+step).
// A zero duration appointment occupies only the slot containing its start.
func covers(a Appointment, t time.Time, step time.Duration) bool {
	if startsWithin(a.Start, t, step) {
		return true
	}
	return a.Duration > 0 && a.Start.Before(t.Add(step)) && t.Before(a.End())
}

func startsWithin(start, t time.Time, step time.Duration) bool {
	return !start.Before(t) && start.Before(t.Add(step))
}

func (in ResolveInput) covering(t time.Time, exclude uuid.UUID) []Appointment {
	step := in.step()
	var res []Appointment
	for _, a := range in.Appointments {
		if exclude != uuid.Nil && a.ID == exclude {
			continue
		}
		if covers(a, t, step) {
			res = append(res, a)
		}
	}
	return res
}

// closestPreceding picks the covering appointment with the latest start not
// after t. When every covering appointment starts later, inside the slot, the
// earliest of those is used. Equal starts fall back to the smaller id so the
// choice is stable.
func closestPreceding(apps []Appointment, t time.Time) *Appointment {
	var best *Appointment
	for i := range apps {
		a := &apps[i]
		if a.Start.After(t) {
			continue
		}
		if best == nil || a.Start.After(best.Start) || (a.Start.Equal(best.Start) && a.ID.String() < best.ID.String()) {
			best = a
		}
	}
	if best != nil {
		return best
	}
	for i := range apps {
		a := &apps[i]
		if best == nil || a.Start.Before(best.Start) || (a.Start.Equal(best.Start) && a.ID.String() < best.ID.String()) {
			best = a
		}
	}
	return best
}

func (in ResolveInput) blockAt(t time.Time) *Block {
	end := t.Add(in.step())
	for i := range in.Blocks {
		b := &in.Blocks[i]
		if t.Before(b.End) && b.Start.Before(end) {
			return b
		}
	}
	return nil
}

func (in ResolveInput) covered(t time.Time) bool {
	if len(in.Rules) == 0 {
		return true
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	c := Clock(lt.Hour()*60 + lt.Minute())
	for _, r := range in.Rules {
		if r.contains(lt.Weekday(), c) {
			return true
		}
	}
	return false
}
