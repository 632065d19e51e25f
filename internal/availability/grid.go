package availability

import (
	"sort"
	"time"
)

const (
	DefaultGranularity = 15 * time.Minute
	dateLayout         = "2006-01-02"
)

// GridRequest is a snapshot of an employee's weekly template plus the days to expand.
// From and To are calendar days (inclusive) interpreted in Location.
type GridRequest struct {
	Rules       []Rule
	From        time.Time
	To          time.Time
	Location    *time.Location
	Granularity time.Duration
}

// Day holds the candidate slot starts for one local calendar day.
type Day struct {
	Date  string
	Slots []time.Time
}

// BuildGrid expands the weekly rules into discrete slot starts for every day in
// the range. A day without a matching rule yields an empty slot list.
func BuildGrid(req GridRequest) []Day {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	step := granularityMinutes(req.Granularity)

	from := localDate(req.From, loc)
	to := localDate(req.To, loc)
	if to.Before(from) {
		return nil
	}

	var days []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, Day{
			Date:  d.Format(dateLayout),
			Slots: daySlots(d, req.Rules, step, loc),
		})
	}
	return days
}

func daySlots(day time.Time, rules []Rule, step int, loc *time.Location) []time.Time {
	y, m, dd := day.Date()
	wd := day.Weekday()

	var slots []time.Time
	for _, r := range rules {
		if r.DayOfWeek != wd || r.Validate() != nil {
			continue
		}
		for c := int(r.Start); c < int(r.End); c += step {
			slots = append(slots, time.Date(y, m, dd, 0, c, 0, 0, loc))
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	out := slots[:0]
	for i, t := range slots {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []time.Time{}
	}
	return out
}

func granularityMinutes(g time.Duration) int {
	if g < time.Minute {
		g = DefaultGranularity
	}
	return int(g / time.Minute)
}

func localDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(dateLayout, s, loc)
}
