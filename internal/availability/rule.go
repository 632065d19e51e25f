package availability

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRule = errors.New("invalid working hours rule")

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

const endOfDay Clock = 24 * 60

// ParseClock accepts "HH:MM" (24h). "24:00" is allowed as an end of day marker.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err == nil {
		return Clock(t.Hour()*60 + t.Minute()), nil
	}
	if s == "24:00" {
		return endOfDay, nil
	}
	return 0, fmt.Errorf("%w: bad clock %q", ErrInvalidRule, s)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Rule is one recurring weekly working range for an employee.
type Rule struct {
	DayOfWeek time.Weekday
	Start     Clock
	End       Clock
}

func (r Rule) Validate() error {
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidRule, r.DayOfWeek)
	}
	if r.Start < 0 || r.End > endOfDay {
		return fmt.Errorf("%w: clock out of range", ErrInvalidRule)
	}
	if r.End <= r.Start {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidRule, r.End, r.Start)
	}
	return nil
}

// ParseRule builds a validated rule from the persisted string form.
func ParseRule(day int, start, end string) (Rule, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Rule{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{DayOfWeek: time.Weekday(day), Start: s, End: e}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (r Rule) contains(wd time.Weekday, c Clock) bool {
	return r.DayOfWeek == wd && c >= r.Start && c < r.End
}
