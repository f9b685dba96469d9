// Package period defines the reference-window specification and resolves it
// into candle filters and recommended fetch parameters.
package period

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSession means: session hours/minutes out of range
	ErrInvalidSession = errors.New("session hours must be in [0,23] and minutes in [0,59]")

	// ErrInvalidCalendar means: unknown named calendar period
	ErrInvalidCalendar = errors.New("unknown named calendar period")

	// ErrInvalidRange means: custom range with endTime before startTime
	ErrInvalidRange = errors.New("custom range endTime is before startTime")

	// ErrInvalidRolling means: rolling window with non-positive period count
	ErrInvalidRolling = errors.New("rolling window needs a positive period count")
)

// Spec is the closed set of reference-window variants: a named calendar
// period, a standard interval, a custom range, a rolling window or an
// intraday session. New variants require touching every switch over it.
type Spec interface {
	fmt.Stringer
	isSpec()
}

// Calendar is a named calendar period. Weeks begin Monday; month boundaries
// are calendar months in the effective zone.
type Calendar string

const (
	PrevDay      Calendar = "prev_day"
	PrevWeek     Calendar = "prev_week"
	PrevMonth    Calendar = "prev_month"
	CurrentDay   Calendar = "current_day"
	CurrentWeek  Calendar = "current_week"
	CurrentMonth Calendar = "current_month"
)

func (c Calendar) isSpec()        {}
func (c Calendar) String() string { return string(c) }

// Validate reports whether the calendar name is one of the six members.
func (c Calendar) Validate() error {
	switch c {
	case PrevDay, PrevWeek, PrevMonth, CurrentDay, CurrentWeek, CurrentMonth:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCalendar, string(c))
}

// Interval is a standard candle interval used as a period: no temporal
// filter, most recent 100 candles.
type Interval string

func (i Interval) isSpec()        {}
func (i Interval) String() string { return string(i) }

// Custom is an explicit [Start, End] range.
type Custom struct {
	Start time.Time
	End   time.Time
}

func (c Custom) isSpec() {}
func (c Custom) String() string {
	return fmt.Sprintf("custom[%v..%v]", c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
}

// Validate checks End >= Start.
func (c Custom) Validate() error {
	if c.End.Before(c.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Rolling is a window of the last Periods candles of the given interval.
type Rolling struct {
	Periods  int
	Interval string
}

func (r Rolling) isSpec()        {}
func (r Rolling) String() string { return fmt.Sprintf("rolling[%dx%s]", r.Periods, r.Interval) }

// Validate checks Periods > 0.
func (r Rolling) Validate() error {
	if r.Periods <= 0 {
		return ErrInvalidRolling
	}
	return nil
}

// Session is a named intraday window in a timezone, e.g. the London session.
// Sessions crossing midnight are allowed: when the start minutes exceed the
// end minutes the window is the union [start, 24:00) ∪ [00:00, end].
type Session struct {
	StartHour   int
	EndHour     int
	StartMinute int
	EndMinute   int
	Timezone    string
}

func (s Session) isSpec() {}
func (s Session) String() string {
	return fmt.Sprintf("session[%02d:%02d-%02d:%02d %s]", s.StartHour, s.StartMinute, s.EndHour, s.EndMinute, s.Timezone)
}

// Validate checks hours in [0,23] and minutes in [0,59].
func (s Session) Validate() error {
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 {
		return ErrInvalidSession
	}
	if s.StartMinute < 0 || s.StartMinute > 59 || s.EndMinute < 0 || s.EndMinute > 59 {
		return ErrInvalidSession
	}
	return nil
}

// startMinutes is the session start as minutes since midnight.
func (s Session) startMinutes() int { return s.StartHour*60 + s.StartMinute }

// endMinutes is the session end as minutes since midnight.
func (s Session) endMinutes() int { return s.EndHour*60 + s.EndMinute }

// Validate checks whichever variant-specific rules apply to spec.
func Validate(spec Spec) error {
	switch s := spec.(type) {
	case Calendar:
		return s.Validate()
	case Interval:
		return nil
	case Custom:
		return s.Validate()
	case Rolling:
		return s.Validate()
	case Session:
		return s.Validate()
	case nil:
		return errors.New("nil period spec")
	default:
		return fmt.Errorf("unknown period spec %T", spec)
	}
}
