package calendar

import (
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Window is one bookable slot of a doctor's day. End is exclusive.
type Window struct {
	Start    time.Time
	End      time.Time
	Capacity int
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Options controls window generation.
type Options struct {
	SlotDuration time.Duration
	Capacity     int
}

// Windows partitions date into fixed-width slots according to the doctor's
// weekly availability. Only whole slots that fit inside a working range are
// produced. The result is ordered by start and never overlaps; it is empty on
// a closed weekday. date is interpreted in its own location.
func Windows(avail Availability, date time.Time, opts Options) []Window {
	step := int(opts.SlotDuration / time.Minute)
	if step <= 0 {
		return nil
	}

	y, m, d := date.Date()
	loc := date.Location()

	var out []Window
	for _, r := range avail.days[date.Weekday()] {
		for s := r.Start; s+step <= r.End; s += step {
			start := time.Date(y, m, d, 0, s, 0, 0, loc)
			out = append(out, Window{
				Start:    start,
				End:      time.Date(y, m, d, 0, s+step, 0, 0, loc),
				Capacity: opts.Capacity,
			})
		}
	}
	return out
}

// Find returns the window that starts exactly at start.
func Find(windows []Window, start time.Time) (Window, bool) {
	for _, w := range windows {
		if w.Start.Equal(start) {
			return w, true
		}
	}
	return Window{}, false
}

// Containing returns the window whose [Start, End) contains t.
func Containing(windows []Window, t time.Time) (Window, bool) {
	for _, w := range windows {
		if w.Contains(t) {
			return w, true
		}
	}
	return Window{}, false
}

// Day returns midnight of t's calendar date in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// ParseClockOn combines a date with an HH:MM clock time in the date's location.
func ParseClockOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
