package common

import "time"

// PatchCandleHoles takes an ascending slice of candles and patches any holes
// within it: wherever the gap between two adjacent candles exceeds the
// interval, the candle "on the left" is cloned forward (flat OHLC at its
// close, zero volume) once per missing bucket. Venues routinely omit buckets
// with no trades.
func PatchCandleHoles(cs []Candle, interval string) []Candle {
	if len(cs) < 2 {
		return cs
	}
	step := IntervalDuration(interval)

	fixed := make([]Candle, 0, len(cs))
	fixed = append(fixed, cs[0])
	for _, candle := range cs[1:] {
		last := fixed[len(fixed)-1]
		for nextOpen := last.OpenTime.Add(step); nextOpen.Before(candle.OpenTime); nextOpen = nextOpen.Add(step) {
			clone := last
			clone.OpenTime = nextOpen
			clone.CloseTime = nextOpen.Add(step - time.Millisecond)
			clone.Open, clone.High, clone.Low = last.Close, last.Close, last.Close
			clone.Volume, clone.Trades = 0, 0
			fixed = append(fixed, clone)
			last = clone
		}
		fixed = append(fixed, candle)
	}
	return fixed
}
