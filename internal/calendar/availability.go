package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeRange is a working interval within a day, in minutes from midnight.
// End is exclusive.
type TimeRange struct {
	Start int
	End   int
}

func (r TimeRange) String() string {
	return formatClock(r.Start) + "-" + formatClock(r.End)
}

// Availability is a doctor's recurring weekly working hours.
type Availability struct {
	days [7][]TimeRange
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

var dayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// NewAvailability builds an Availability from explicit ranges. Ranges that
// overlap or touch on the same weekday are merged.
func NewAvailability(ranges map[time.Weekday][]TimeRange) (Availability, error) {
	var a Availability
	for day, rs := range ranges {
		if day < time.Sunday || day > time.Saturday {
			return Availability{}, fmt.Errorf("invalid weekday %d", day)
		}
		for _, r := range rs {
			if err := validateRange(r); err != nil {
				return Availability{}, err
			}
			a.days[day] = append(a.days[day], r)
		}
	}
	a.normalize()
	return a, nil
}

// ParseAvailability reads the textual form doctors author, e.g.
//
//	Mon-Sat 9am-5pm
//	Mon,Wed 09:00-13:00 14:00-17:00; Sat 10am-12pm
//	daily 08:30-12:30
//
// Clauses are separated by ';'. Each clause is a day list (a range, a comma
// list, or "daily") followed by one or more start-end ranges.
func ParseAvailability(text string) (Availability, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Availability{}, nil
	}

	ranges := make(map[time.Weekday][]TimeRange)

	for _, clause := range strings.Split(text, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		fields := strings.Fields(clause)
		if len(fields) < 2 {
			return Availability{}, fmt.Errorf("availability clause %q: expected days followed by time ranges", clause)
		}

		days, err := parseDays(strings.TrimSuffix(fields[0], ":"))
		if err != nil {
			return Availability{}, fmt.Errorf("availability clause %q: %w", clause, err)
		}

		for _, f := range fields[1:] {
			r, err := parseRange(f)
			if err != nil {
				return Availability{}, fmt.Errorf("availability clause %q: %w", clause, err)
			}
			for _, d := range days {
				ranges[d] = append(ranges[d], r)
			}
		}
	}

	return NewAvailability(ranges)
}

// MustParseAvailability is ParseAvailability for literals known to be valid.
func MustParseAvailability(text string) Availability {
	a, err := ParseAvailability(text)
	if err != nil {
		panic(err)
	}
	return a
}

// Ranges returns the working ranges for a weekday, ordered by start.
func (a Availability) Ranges(day time.Weekday) []TimeRange {
	out := make([]TimeRange, len(a.days[day]))
	copy(out, a.days[day])
	return out
}

// IsZero reports whether the doctor has no working hours at all.
func (a Availability) IsZero() bool {
	for _, rs := range a.days {
		if len(rs) > 0 {
			return false
		}
	}
	return true
}

// String renders the canonical text form; it parses back to the same value.
func (a Availability) String() string {
	var clauses []string
	for _, day := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		rs := a.days[day]
		if len(rs) == 0 {
			continue
		}
		parts := make([]string, 0, len(rs)+1)
		parts = append(parts, dayLabels[day])
		for _, r := range rs {
			parts = append(parts, r.String())
		}
		clauses = append(clauses, strings.Join(parts, " "))
	}
	return strings.Join(clauses, "; ")
}

func (a *Availability) normalize() {
	for d := range a.days {
		rs := a.days[d]
		if len(rs) == 0 {
			continue
		}
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
		merged := rs[:1]
		for _, r := range rs[1:] {
			last := &merged[len(merged)-1]
			if r.Start <= last.End {
				if r.End > last.End {
					last.End = r.End
				}
				continue
			}
			merged = append(merged, r)
		}
		a.days[d] = merged
	}
}

func parseDays(days string) ([]time.Weekday, error) {
	days = strings.ToLower(days)
	if days == "daily" || days == "everyday" {
		return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}, nil
	}

	seen := make(map[time.Weekday]bool)
	var out []time.Weekday
	add := func(d time.Weekday) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}

	for _, item := range strings.Split(days, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		from, to, isRange := strings.Cut(item, "-")
		start, err := parseDay(from)
		if err != nil {
			return nil, err
		}
		if !isRange {
			add(start)
			continue
		}
		end, err := parseDay(to)
		if err != nil {
			return nil, err
		}
		// Ranges may wrap the week, e.g. Sat-Mon.
		for d := start; ; d = (d + 1) % 7 {
			add(d)
			if d == end {
				break
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no days in %q", days)
	}
	return out, nil
}

func parseDay(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return 0, fmt.Errorf("unknown day %q", s)
	}
	d, ok := dayNames[s[:3]]
	if !ok {
		return 0, fmt.Errorf("unknown day %q", s)
	}
	return d, nil
}

func parseRange(s string) (TimeRange, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return TimeRange{}, fmt.Errorf("time range %q: missing '-'", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := parseClock(to)
	if err != nil {
		return TimeRange{}, err
	}
	r := TimeRange{Start: start, End: end}
	if err := validateRange(r); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

// parseClock accepts 9am, 9:30am, 12pm, 09:00 and 24:00.
func parseClock(s string) (int, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))

	meridiem := ""
	switch {
	case strings.HasSuffix(s, "am"):
		meridiem, s = "am", strings.TrimSuffix(s, "am")
	case strings.HasSuffix(s, "pm"):
		meridiem, s = "pm", strings.TrimSuffix(s, "pm")
	}

	hs, ms, hasMinutes := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hs)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(ms)
		if err != nil || len(ms) != 2 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}

	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	default:
		if hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
	}

	return hour*60 + minute, nil
}

func validateRange(r TimeRange) error {
	if r.Start < 0 || r.End > minutesPerDay || r.End <= r.Start {
		return fmt.Errorf("invalid time range %s", r)
	}
	return nil
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
