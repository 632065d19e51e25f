package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayInput(t *testing.T) ResolveInput {
	t.Helper()
	rules := []Rule{mustRule(t, time.Monday, "09:00", "12:00")}
	return ResolveInput{
		Grid:        BuildGrid(GridRequest{Rules: rules, From: monday, To: monday}),
		Granularity: 15 * time.Minute,
		Capacity:    1,
		Now:         monday.AddDate(0, 0, -7),
	}
}

func slotAt(t *testing.T, days []DaySlots, ts time.Time) (Slot, bool) {
	t.Helper()
	for _, d := range days {
		for _, s := range d.Slots {
			if s.Time.Equal(ts) {
				return s, true
			}
		}
	}
	return Slot{}, false
}

func TestResolveAppointmentOccupiesDuration(t *testing.T) {
	in := mondayInput(t)
	apptID := uuid.New()
	in.Appointments = []Appointment{{ID: apptID, Start: at(monday, 10, 0), Duration: 45 * time.Minute}}
	in.IncludeSuppressed = true

	days := Resolve(in)

	busy, ok := slotAt(t, days, at(monday, 10, 0))
	require.True(t, ok)
	assert.Equal(t, StatusBusy, busy.Status)
	require.NotNil(t, busy.AppointmentID)
	assert.Equal(t, apptID, *busy.AppointmentID)

	for _, m := range []int{15, 30} {
		s, ok := slotAt(t, days, at(monday, 10, m))
		require.True(t, ok)
		assert.Equal(t, StatusOccupied, s.Status)
		assert.True(t, s.Suppressed)
	}

	free, ok := slotAt(t, days, at(monday, 10, 45))
	require.True(t, ok)
	assert.Equal(t, StatusAvailable, free.Status)

	_, ok = slotAt(t, days, at(monday, 8, 45))
	assert.False(t, ok)
	_, ok = slotAt(t, days, at(monday, 12, 0))
	assert.False(t, ok)
}

func TestResolveDropsSuppressedSlotsByDefault(t *testing.T) {
	in := mondayInput(t)
	in.Appointments = []Appointment{{ID: uuid.New(), Start: at(monday, 10, 0), Duration: 45 * time.Minute}}

	days := Resolve(in)

	require.Len(t, days, 1)
	assert.Len(t, days[0].Slots, 10)
	_, ok := slotAt(t, days, at(monday, 10, 15))
	assert.False(t, ok)

	busyCount := 0
	for _, s := range days[0].Slots {
		if s.Status == StatusBusy {
			busyCount++
		}
		assert.NotEqual(t, StatusOccupied, s.Status)
	}
	assert.Equal(t, 1, busyCount)
}

func TestResolveBusySlotBlocks(t *testing.T) {
	in := mondayInput(t)
	blockID := uuid.New()
	in.Blocks = []Block{{ID: blockID, Start: at(monday, 11, 0), End: at(monday, 11, 30)}}

	days := Resolve(in)

	for _, m := range []int{0, 15} {
		s, ok := slotAt(t, days, at(monday, 11, m))
		require.True(t, ok)
		assert.Equal(t, StatusBlocked, s.Status)
		assert.Nil(t, s.AppointmentID)
		require.NotNil(t, s.BusySlotID)
		assert.Equal(t, blockID, *s.BusySlotID)
	}
	after, _ := slotAt(t, days, at(monday, 11, 30))
	assert.Equal(t, StatusAvailable, after.Status)
	before, _ := slotAt(t, days, at(monday, 10, 45))
	assert.Equal(t, StatusAvailable, before.Status)
}

func TestResolveZeroDurationMarksOnlyStart(t *testing.T) {
	in := mondayInput(t)
	in.Appointments = []Appointment{{ID: uuid.New(), Start: at(monday, 10, 0)}}

	days := Resolve(in)

	s, _ := slotAt(t, days, at(monday, 10, 0))
	assert.Equal(t, StatusBusy, s.Status)
	next, _ := slotAt(t, days, at(monday, 10, 15))
	assert.Equal(t, StatusAvailable, next.Status)
}

func TestResolveClosestPrecedingStartWins(t *testing.T) {
	in := mondayInput(t)
	in.IncludeSuppressed = true
	first := uuid.New()
	second := uuid.New()
	in.Appointments = []Appointment{
		{ID: second, Start: at(monday, 10, 15), Duration: 30 * time.Minute},
		{ID: first, Start: at(monday, 10, 0), Duration: 30 * time.Minute},
	}

	days := Resolve(in)

	s, ok := slotAt(t, days, at(monday, 10, 15))
	require.True(t, ok)
	assert.Equal(t, StatusBusy, s.Status)
	require.NotNil(t, s.AppointmentID)
	assert.Equal(t, second, *s.AppointmentID, "back-to-back: the one starting at the slot wins")

	s, ok = slotAt(t, days, at(monday, 10, 30))
	require.True(t, ok)
	require.NotNil(t, s.AppointmentID)
	assert.Equal(t, second, *s.AppointmentID)
}

func TestResolveIgnoresStartsInsideTheSlotWhenOneAlreadyRuns(t *testing.T) {
	in := mondayInput(t)
	in.IncludeSuppressed = true
	running := uuid.New()
	later := uuid.New()
	in.Appointments = []Appointment{
		{ID: later, Start: at(monday, 10, 40), Duration: 20 * time.Minute},
		{ID: running, Start: at(monday, 10, 0), Duration: 40 * time.Minute},
	}

	days := Resolve(in)

	s, ok := slotAt(t, days, at(monday, 10, 30))
	require.True(t, ok)
	require.NotNil(t, s.AppointmentID)
	assert.Equal(t, running, *s.AppointmentID, "a start after the slot time never wins over one before it")
	assert.Equal(t, StatusOccupied, s.Status)
	assert.True(t, s.Suppressed)
}

func TestResolveFallsBackToEarliestStartInsideTheSlot(t *testing.T) {
	in := mondayInput(t)
	early := uuid.New()
	late := uuid.New()
	in.Appointments = []Appointment{
		{ID: late, Start: at(monday, 10, 10)},
		{ID: early, Start: at(monday, 10, 5)},
	}

	days := Resolve(in)

	s, ok := slotAt(t, days, at(monday, 10, 0))
	require.True(t, ok)
	assert.Equal(t, StatusBusy, s.Status)
	require.NotNil(t, s.AppointmentID)
	assert.Equal(t, early, *s.AppointmentID)
}

func TestResolveHalfBusyWithCapacity(t *testing.T) {
	in := mondayInput(t)
	in.Capacity = 2
	in.Appointments = []Appointment{{ID: uuid.New(), Start: at(monday, 9, 0), Duration: 30 * time.Minute}}

	days := Resolve(in)

	s, _ := slotAt(t, days, at(monday, 9, 0))
	assert.Equal(t, StatusHalfBusy, s.Status)
	require.NotNil(t, s.Capacity)
	assert.Equal(t, Capacity{Used: 1, Total: 2}, *s.Capacity)

	in.Appointments = append(in.Appointments, Appointment{ID: uuid.New(), Start: at(monday, 9, 0), Duration: 15 * time.Minute})
	days = Resolve(in)

	s, _ = slotAt(t, days, at(monday, 9, 0))
	assert.Equal(t, StatusBusy, s.Status)
	next, _ := slotAt(t, days, at(monday, 9, 15))
	assert.Equal(t, StatusHalfBusy, next.Status)
}

func TestResolvePastFlags(t *testing.T) {
	in := mondayInput(t)
	in.Now = at(monday, 10, 20)
	in.IncludeSuppressed = true
	in.Appointments = []Appointment{{ID: uuid.New(), Start: at(monday, 10, 0), Duration: 45 * time.Minute}}

	days := Resolve(in)

	early, _ := slotAt(t, days, at(monday, 9, 0))
	assert.True(t, early.IsPast)
	assert.Equal(t, PastExpired, early.PastState)
	assert.Equal(t, StatusAvailable, early.Status)

	started, _ := slotAt(t, days, at(monday, 10, 15))
	assert.True(t, started.IsPast)
	assert.Equal(t, PastAttended, started.PastState)
	assert.Equal(t, StatusOccupied, started.Status)

	later, _ := slotAt(t, days, at(monday, 10, 30))
	assert.False(t, later.IsPast)
	assert.Empty(t, later.PastState)
}

func TestResolveUncoveredSlotIsUnavailable(t *testing.T) {
	in := mondayInput(t)
	in.Rules = []Rule{mustRule(t, time.Monday, "09:00", "10:00")}

	days := Resolve(in)

	s, _ := slotAt(t, days, at(monday, 9, 45))
	assert.Equal(t, StatusAvailable, s.Status)
	s, _ = slotAt(t, days, at(monday, 10, 0))
	assert.Equal(t, StatusUnavailable, s.Status)
}

func TestResolveIsIdempotent(t *testing.T) {
	in := mondayInput(t)
	in.Appointments = []Appointment{
		{ID: uuid.New(), Start: at(monday, 9, 30), Duration: 30 * time.Minute},
		{ID: uuid.New(), Start: at(monday, 11, 0), Duration: 0},
	}
	in.Blocks = []Block{{ID: uuid.New(), Start: at(monday, 10, 0), End: at(monday, 10, 30)}}

	assert.Equal(t, Resolve(in), Resolve(in))
}

func TestBookable(t *testing.T) {
	in := mondayInput(t)
	apptID := uuid.New()
	in.Appointments = []Appointment{{ID: apptID, Start: at(monday, 10, 0), Duration: 45 * time.Minute}}
	in.Blocks = []Block{{ID: uuid.New(), Start: at(monday, 11, 0), End: at(monday, 11, 30)}}

	tests := []struct {
		name     string
		start    time.Time
		duration time.Duration
		exclude  uuid.UUID
		want     Reason
	}{
		{"free slot", at(monday, 9, 0), 30 * time.Minute, uuid.Nil, ""},
		{"start slot taken", at(monday, 10, 0), 30 * time.Minute, uuid.Nil, ReasonFull},
		{"inside duration", at(monday, 10, 15), 15 * time.Minute, uuid.Nil, ReasonFull},
		{"runs into appointment", at(monday, 9, 45), 30 * time.Minute, uuid.Nil, ReasonFull},
		{"after appointment", at(monday, 10, 45), 15 * time.Minute, uuid.Nil, ""},
		{"runs into block", at(monday, 10, 45), 30 * time.Minute, uuid.Nil, ReasonBlocked},
		{"past closing", at(monday, 11, 45), 30 * time.Minute, uuid.Nil, ReasonOffGrid},
		{"misaligned start", at(monday, 9, 5), 15 * time.Minute, uuid.Nil, ReasonOffGrid},
		{"moving itself", at(monday, 10, 15), 30 * time.Minute, apptID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Bookable(in, tt.start, tt.duration, tt.exclude)
			assert.Equal(t, tt.want == "", v.OK)
			assert.Equal(t, tt.want, v.Reason)
		})
	}
}

func TestBookableRejectsPast(t *testing.T) {
	in := mondayInput(t)
	in.Now = at(monday, 9, 10)

	v := Bookable(in, at(monday, 9, 0), 15*time.Minute, uuid.Nil)
	assert.False(t, v.OK)
	assert.Equal(t, ReasonInPast, v.Reason)
}
