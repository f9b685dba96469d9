package period

import (
	"math"
	"time"

	"corrcrack/market/common"
)

// standardPeriodCandles is how many recent candles a bare interval period
// keeps when no temporal filter applies.
const standardPeriodCandles = 100

// FetchPlan is the recommended provider fetch for a period: which candle
// interval to request and how many candles, so that the subsequent filter has
// enough material without over-fetching.
type FetchPlan struct {
	Interval string
	Limit    int
}

// Plan maps a period spec to its recommended fetch parameters.
func Plan(spec Spec) FetchPlan {
	switch s := spec.(type) {
	case Calendar:
		switch s {
		case PrevDay, CurrentDay:
			return FetchPlan{Interval: "1h", Limit: 48}
		case PrevWeek, CurrentWeek:
			return FetchPlan{Interval: "4h", Limit: 84}
		case PrevMonth, CurrentMonth:
			return FetchPlan{Interval: "1d", Limit: 62}
		}
	case Rolling:
		return FetchPlan{Interval: s.Interval, Limit: s.Periods}
	case Custom:
		hours := int(math.Ceil(s.End.Sub(s.Start).Hours()))
		if hours > 1000 {
			hours = 1000
		}
		if hours < 1 {
			hours = 1
		}
		return FetchPlan{Interval: "1h", Limit: hours}
	}
	return FetchPlan{Interval: "1h", Limit: standardPeriodCandles}
}

// Filter applies the period spec to an ascending candle slice, returning the
// candles belonging to the reference window. zone is the effective timezone
// for calendar periods; now anchors the calendar arithmetic. Applying Filter
// twice over its own output is the identity.
func Filter(cs []common.Candle, spec Spec, zone string, now time.Time) []common.Candle {
	switch s := spec.(type) {
	case Calendar:
		start, end, bounded := calendarBounds(s, zone, now)
		return filterByOpenTime(cs, start, end, bounded)
	case Interval:
		return common.RecentSlice(cs, standardPeriodCandles)
	case Custom:
		return filterByOpenTime(cs, s.Start, s.End, true)
	case Rolling:
		return common.RecentSlice(cs, s.Periods)
	case Session:
		out := make([]common.Candle, 0, len(cs))
		for _, c := range cs {
			if IsWithinSession(c.OpenTime, s, zone) {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

func filterByOpenTime(cs []common.Candle, start, end time.Time, bounded bool) []common.Candle {
	out := make([]common.Candle, 0, len(cs))
	for _, c := range cs {
		if c.OpenTime.Before(start) {
			continue
		}
		if bounded && c.OpenTime.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// calendarBounds computes the [start, end] instants of a named calendar
// period. For current_* periods only the lower bound applies. All arithmetic
// runs on the wall clock of the effective zone via its static offset.
func calendarBounds(c Calendar, zone string, now time.Time) (start, end time.Time, bounded bool) {
	off := ZoneOffset(zone)
	wall := now.UTC().Add(off) // read UTC fields as zone wall clock

	dayStart := time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, time.UTC)
	// Monday-based: Sunday (weekday 0) maps to offset 6.
	sinceMonday := (int(wall.Weekday()) + 6) % 7
	weekStart := dayStart.AddDate(0, 0, -sinceMonday)
	monthStart := time.Date(wall.Year(), wall.Month(), 1, 0, 0, 0, 0, time.UTC)

	toInstant := func(t time.Time) time.Time { return t.Add(-off) }

	switch c {
	case PrevDay:
		s := dayStart.AddDate(0, 0, -1)
		return toInstant(s), toInstant(dayStart.Add(-time.Millisecond)), true
	case PrevWeek:
		s := weekStart.AddDate(0, 0, -7)
		return toInstant(s), toInstant(weekStart.Add(-time.Millisecond)), true
	case PrevMonth:
		s := monthStart.AddDate(0, -1, 0)
		return toInstant(s), toInstant(monthStart.Add(-time.Millisecond)), true
	case CurrentDay:
		return toInstant(dayStart), time.Time{}, false
	case CurrentWeek:
		return toInstant(weekStart), time.Time{}, false
	case CurrentMonth:
		return toInstant(monthStart), time.Time{}, false
	}
	return time.Time{}, time.Time{}, false
}
