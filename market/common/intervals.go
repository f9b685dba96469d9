package common

import (
	"time"
)

// DefaultInterval is what unknown interval strings resolve to.
const DefaultInterval = "1m"

// intervalDurations maps the supported interval strings to their canonical
// durations. A month is nominal 30 days; calendar-month periods are handled
// by the period resolver, not here.
var intervalDurations = map[string]time.Duration{
	"1m":  1 * time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  1 * time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// SupportedIntervals returns the discrete interval set, shortest first.
func SupportedIntervals() []string {
	return []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}
}

// IsSupportedInterval reports whether the interval string belongs to the
// discrete set.
func IsSupportedInterval(interval string) bool {
	_, ok := intervalDurations[interval]
	return ok
}

// IntervalDuration returns the canonical duration of an interval string.
// Unknown strings default to 1 minute.
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return intervalDurations[DefaultInterval]
}

// IntervalMillis returns the canonical duration of an interval string in
// milliseconds. Unknown strings default to 1 minute.
func IntervalMillis(interval string) int64 {
	return IntervalDuration(interval).Milliseconds()
}

// FloorToInterval truncates ts down to the nearest interval boundary in UTC.
// It is idempotent.
func FloorToInterval(ts time.Time, interval string) time.Time {
	return ts.UTC().Truncate(IntervalDuration(interval))
}

// CeilToIntervalEnd returns the last instant of the interval bucket
// containing ts, i.e. floor + interval - 1ms. Venues that report half-open
// candle ranges land on the same value.
func CeilToIntervalEnd(ts time.Time, interval string) time.Time {
	return FloorToInterval(ts, interval).Add(IntervalDuration(interval) - time.Millisecond)
}

// DetectInterval inspects the gap between the first two candles and maps it
// to the nearest supported interval label. It returns "unknown" if there is
// no candle pair to inspect.
func DetectInterval(candles []Candle) string {
	if len(candles) < 2 {
		return "unknown"
	}
	gap := candles[1].OpenTime.Sub(candles[0].OpenTime)
	best, bestDiff := "unknown", time.Duration(1<<62)
	for _, label := range SupportedIntervals() {
		diff := gap - intervalDurations[label]
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = label, diff
		}
	}
	return best
}

// RecentSlice returns the last n elements of xs (or all of xs if shorter),
// preserving order. It never copies; callers must not mutate the result.
func RecentSlice[T any](xs []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
