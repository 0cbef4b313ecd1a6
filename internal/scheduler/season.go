package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthDay is a calendar boundary without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD". 02-29 is rejected: a leap-day bound would
// silently never match in three out of four years.
func ParseMonthDay(s string) (MonthDay, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return MonthDay{}, fmt.Errorf("invalid month-day %q; expected MM-DD", s)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return MonthDay{}, fmt.Errorf("invalid month in %q", s)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return MonthDay{}, fmt.Errorf("invalid day in %q", s)
	}
	if month == 2 && day == 29 {
		return MonthDay{}, fmt.Errorf("02-29 is not a valid season bound")
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}

func (m MonthDay) ordinal() int {
	return int(m.Month)*100 + m.Day
}

// SeasonWindow is the active-season gate, a month-day range inclusive on
// both ends. A window whose start is after its end wraps the year boundary
// (the reference season runs December through April).
type SeasonWindow struct {
	Start MonthDay
	End   MonthDay
}

// Contains reports whether t's month-day falls inside the window. The
// caller passes t already in the resort's timezone; the comparison itself
// is calendar-only.
func (w SeasonWindow) Contains(t time.Time) bool {
	now := MonthDay{Month: t.Month(), Day: t.Day()}.ordinal()
	start := w.Start.ordinal()
	end := w.End.ordinal()

	if start <= end {
		return now >= start && now <= end
	}
	// Wrap-around window, e.g. 12-01 .. 04-30.
	return now >= start || now <= end
}
