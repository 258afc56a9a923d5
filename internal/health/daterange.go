package health

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the Fitbit API
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a range starts after it ends
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its calendar date at UTC midnight.
// The wall-clock date is kept, so 23:30 local time stays on the same day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NewDateRange validates and builds a range. Start must not be after End.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// TrailingDays returns the window [today-days, today]
func TrailingDays(days int, today time.Time) (DateRange, error) {
	if days < 0 {
		return DateRange{}, fmt.Errorf("%w: negative day count %d", ErrInvalidRange, days)
	}
	end := Day(today)
	return NewDateRange(end.AddDate(0, 0, -days), end)
}

// Validate checks the Start <= End precondition
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, FormatDate(r.Start), FormatDate(r.End))
	}
	return nil
}

// Days returns the number of calendar days in the range, inclusive
func (r DateRange) Days() int {
	return int(Day(r.End).Sub(Day(r.Start)).Hours()/24) + 1
}

// Contains reports whether t falls on a date inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// Split breaks the range into consecutive, non-overlapping sub-ranges
// of at most maxDays days each, in calendar order.
func (r DateRange) Split(maxDays int) []DateRange {
	if maxDays < 1 {
		maxDays = 1
	}

	var chunks []DateRange
	start := Day(r.Start)
	end := Day(r.End)
	for !start.After(end) {
		chunkEnd := start.AddDate(0, 0, maxDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, DateRange{Start: start, End: chunkEnd})
		start = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}

// Dates lists every date in the range
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Days())
	for d := Day(r.Start); !d.After(Day(r.End)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}
