package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corrcrack/market/common"
)

func tp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func closes(start string, interval time.Duration, closes ...float64) []common.Candle {
	cs := make([]common.Candle, 0, len(closes))
	ot := tp(start)
	for _, close := range closes {
		cs = append(cs, common.Candle{
			Symbol:    "EURUSD",
			OpenTime:  ot,
			CloseTime: ot.Add(interval - time.Millisecond),
			Open:      common.JSONFloat64(close),
			High:      common.JSONFloat64(close),
			Low:       common.JSONFloat64(close),
			Close:     common.JSONFloat64(close),
		})
		ot = ot.Add(interval)
	}
	return cs
}

func TestDetectCrossUnder(t *testing.T) {
	cs := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1050, 1.0990)

	res := DetectCross(cs, 1.1000, common.CrossUnder, 10)

	require.True(t, res.Crossed)
	require.Equal(t, common.CrossUnder, res.Direction)
	require.Equal(t, tp("2022-01-16T10:05:00Z"), res.CrossTime)
	require.Equal(t, 1.0990, res.Price)
}

func TestDetectCrossOver(t *testing.T) {
	cs := closes("2022-01-16T10:00:00Z", 5*time.Minute, 0.9950, 1.0050)

	res := DetectCross(cs, 1.0000, common.CrossOver, 10)

	require.True(t, res.Crossed)
	require.Equal(t, common.CrossOver, res.Direction)
	require.Equal(t, tp("2022-01-16T10:05:00Z"), res.CrossTime)
}

func TestDetectCrossRequiresDirectionalTraversal(t *testing.T) {
	// Price stays below the level the whole time: no under-cross.
	below := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.0990, 1.0980, 1.0970)
	require.False(t, DetectCross(below, 1.1000, common.CrossUnder, 10).Crossed)

	// Price breaks up, not down.
	up := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.0990, 1.1010)
	require.False(t, DetectCross(up, 1.1000, common.CrossUnder, 10).Crossed)
	require.True(t, DetectCross(up, 1.1000, common.CrossOver, 10).Crossed)
}

func TestDetectCrossEqualityBoundaries(t *testing.T) {
	// Sitting exactly on the level still counts as "not yet broken", so the
	// next candle below it is a break.
	fromLevel := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1000, 1.0990)
	require.True(t, DetectCross(fromLevel, 1.1000, common.CrossUnder, 10).Crossed)
	require.True(t, DetectCross(closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1000, 1.1010), 1.1000, common.CrossOver, 10).Crossed)

	// Landing exactly on the level is not a break in either direction.
	toLevel := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1050, 1.1000)
	require.False(t, DetectCross(toLevel, 1.1000, common.CrossUnder, 10).Crossed)
	require.False(t, DetectCross(closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.0950, 1.1000), 1.1000, common.CrossOver, 10).Crossed)
}

func TestDetectCrossReportsFirstOccurrence(t *testing.T) {
	// Two separate under-crosses; the earlier one wins.
	cs := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1050, 1.0990, 1.1020, 1.0980)

	res := DetectCross(cs, 1.1000, common.CrossUnder, 10)

	require.True(t, res.Crossed)
	require.Equal(t, tp("2022-01-16T10:05:00Z"), res.CrossTime)
}

func TestDetectCrossHonoursLookback(t *testing.T) {
	// The only cross happens outside the 2-candle lookback window.
	cs := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1050, 1.0990, 1.0980, 1.0970)

	require.False(t, DetectCross(cs, 1.1000, common.CrossUnder, 2).Crossed)
	require.True(t, DetectCross(cs, 1.1000, common.CrossUnder, 4).Crossed)
}

func TestDetectCrossNeedsAtLeastTwoCandles(t *testing.T) {
	require.False(t, DetectCross(nil, 1.1000, common.CrossUnder, 10).Crossed)
	one := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.0990)
	require.False(t, DetectCross(one, 1.1000, common.CrossUnder, 10).Crossed)
}

func TestDetectCrossDefaultsLookback(t *testing.T) {
	cs := closes("2022-01-16T10:00:00Z", 5*time.Minute, 1.1050, 1.0990)
	require.True(t, DetectCross(cs, 1.1000, common.CrossUnder, 0).Crossed)
}
