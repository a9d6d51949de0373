package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxWindowDays bounds how many days a single aggregation may span.
const MaxWindowDays = 366

// Window is a closed interval of calendar days [Start, End].
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewWindow validates and builds a Window.
func NewWindow(start, end Date) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, Invalid("window", "start and end dates are required")
	}
	if start.After(end) {
		return Window{}, Invalid("window", "start %s is after end %s", start, end)
	}
	if days := start.DaysUntil(end) + 1; days > MaxWindowDays {
		return Window{}, Invalid("window", "spans %d days, limit is %d", days, MaxWindowDays)
	}
	return Window{Start: start, End: end}, nil
}

// Len returns the number of days in the window.
func (w Window) Len() int { return w.Start.DaysUntil(w.End) + 1 }

// Contains reports whether d falls inside the window, bounds included.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days lists every day of the window in ascending order.
func (w Window) Days() []Date {
	n := w.Len()
	if n <= 0 {
		return nil
	}
	days := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, w.Start.AddDays(i))
	}
	return days
}

func (w Window) String() string { return w.Start.String() + ".." + w.End.String() }

// WeekStart selects how the current lottery week is aligned.
type WeekStart string

const (
	WeekStartMonday  WeekStart = "monday"
	WeekStartSunday  WeekStart = "sunday"
	WeekStartRolling WeekStart = "rolling"
)

// ParseWeekStart validates a configured week alignment.
func ParseWeekStart(value string) (WeekStart, error) {
	switch ws := WeekStart(strings.ToLower(strings.TrimSpace(value))); ws {
	case WeekStartMonday, WeekStartSunday, WeekStartRolling:
		return ws, nil
	case "":
		return WeekStartMonday, nil
	default:
		return "", fmt.Errorf("unknown week start %q (want monday, sunday or rolling)", value)
	}
}

// WeekContaining returns the lottery week that includes today.
// Rolling weeks are the seven days ending today.
func (ws WeekStart) WeekContaining(today Date) Window {
	var offset int
	switch ws {
	case WeekStartSunday:
		offset = int(today.Weekday())
	case WeekStartRolling:
		return Window{Start: today.AddDays(-6), End: today}
	default:
		offset = (int(today.Weekday()) + 6) % 7
	}
	start := today.AddDays(-offset)
	return Window{Start: start, End: start.AddDays(6)}
}

// Calendar resolves "today" and the current week for a configured zone and alignment.
type Calendar struct {
	Location  *time.Location
	WeekStart WeekStart
	Now       func() time.Time
}

// Today returns the current calendar day in the configured zone.
func (c Calendar) Today() Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return DateOf(now(), c.Location)
}

// CurrentWeek returns the lottery week containing Today.
func (c Calendar) CurrentWeek() Window {
	return c.WeekStart.WeekContaining(c.Today())
}

// ResolveWindow parses an optional start/end pair. Both empty selects the current week of
// cal; exactly one empty is a validation error.
func ResolveWindow(cal Calendar, start, end string) (Window, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return cal.CurrentWeek(), nil
	case start == "":
		return Window{}, Invalid("start", "is required when end is set")
	case end == "":
		return Window{}, Invalid("end", "is required when start is set")
	}

	from, err := ParseDate(start)
	if err != nil {
		return Window{}, Invalid("start", "%v", err)
	}
	to, err := ParseDate(end)
	if err != nil {
		return Window{}, Invalid("end", "%v", err)
	}
	return NewWindow(from, to)
}
