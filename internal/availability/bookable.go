package availability

import (
	"time"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonInPast  Reason = "in_past"
	ReasonOffGrid Reason = "outside_working_hours"
	ReasonBlocked Reason = "blocked"
	ReasonFull    Reason = "fully_booked"
)

// Verdict explains a Bookable decision. At is the first offending slot.
type Verdict struct {
	OK     bool
	Reason Reason
	At     time.Time
}

// Bookable reports whether an appointment of the given duration can start at
// start: every slot it would occupy must be on the grid, unblocked and below
// capacity. exclude drops one appointment from the count, which is how a
// reschedule ignores the appointment being moved.
func Bookable(in ResolveInput, start time.Time, duration time.Duration, exclude uuid.UUID) Verdict {
	if start.Before(in.Now) {
		return Verdict{Reason: ReasonInPast, At: start}
	}

	onGrid := make(map[int64]struct{})
	for _, d := range in.Grid {
		for _, t := range d.Slots {
			onGrid[t.UnixNano()] = struct{}{}
		}
	}

	step := in.step()
	end := start.Add(duration)
	for t := start; ; t = t.Add(step) {
		if _, ok := onGrid[t.UnixNano()]; !ok || !in.covered(t) {
			return Verdict{Reason: ReasonOffGrid, At: t}
		}
		if len(in.covering(t, exclude)) >= in.capacity() {
			return Verdict{Reason: ReasonFull, At: t}
		}
		if in.blockAt(t) != nil {
			return Verdict{Reason: ReasonBlocked, At: t}
		}
		if !t.Add(step).Before(end) {
			break
		}
	}
	return Verdict{OK: true}
}
