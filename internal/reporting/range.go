package reporting

import (
	"errors"
	"fmt"
	"time"
)

// Range is an inclusive [Start, End] filter on order creation time. Nil bounds are open.
type Range struct {
	Start *time.Time
	End   *time.Time
}

func (r Range) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// ParseRange accepts YYYY-MM-DD or RFC3339 bounds. A date-only end bound covers that whole day in loc.
func ParseRange(start, end string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}

	var r Range
	if start != "" {
		t, _, err := parseBound(start, loc)
		if err != nil {
			return Range{}, fmt.Errorf("startDate: %w", err)
		}
		r.Start = &t
	}
	if end != "" {
		t, dateOnly, err := parseBound(end, loc)
		if err != nil {
			return Range{}, fmt.Errorf("endDate: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		r.End = &t
	}

	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return Range{}, errors.New("endDate is before startDate")
	}
	return r, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, false, nil
}
