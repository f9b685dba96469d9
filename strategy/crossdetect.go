// Package strategy implements the correlation-crack pattern engine: a
// deterministic level-crossing detector and the fan-out orchestration that
// decides whether exactly one member of a correlated group broke its
// reference level while the others held.
package strategy

import (
	"time"

	"corrcrack/market/common"
)

// DefaultLookback is how many recent candles the detector inspects when the
// caller passes a non-positive lookback.
const DefaultLookback = 10

// CrossResult reports whether, where and when a directional crossing of the
// reference level happened within the lookback window.
type CrossResult struct {
	Crossed   bool
	Direction common.Direction
	CrossTime time.Time
	Price     float64
}

// DetectCross scans the most recent lookback candles in ascending order for
// the first adjacent close pair traversing ref in the given direction.
//
// Equality at the previous close counts as "on the wrong side", so it can
// still break on the next candle; equality at the current close is not a
// break. Fewer than two candles means no crossing.
func DetectCross(cs []common.Candle, ref float64, direction common.Direction, lookback int) CrossResult {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	recent := common.RecentSlice(cs, lookback)
	if len(recent) < 2 {
		return CrossResult{}
	}

	for i := 1; i < len(recent); i++ {
		prev, curr := float64(recent[i-1].Close), float64(recent[i].Close)
		switch direction {
		case common.CrossOver:
			if prev <= ref && curr > ref {
				return CrossResult{Crossed: true, Direction: direction, CrossTime: recent[i].OpenTime, Price: curr}
			}
		case common.CrossUnder:
			if prev >= ref && curr < ref {
				return CrossResult{Crossed: true, Direction: direction, CrossTime: recent[i].OpenTime, Price: curr}
			}
		}
	}
	return CrossResult{}
}
