// Package indicator computes per-asset high/low reference levels over a
// configured period.
package indicator

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"corrcrack/market/common"
	"corrcrack/period"
)

// Config selects what to compute: which symbol the candles belong to, the
// reference period, whether to use body extremes instead of wicks, and an
// optional timezone override for calendar and session periods.
type Config struct {
	Symbol         string
	Period         period.Spec
	UseBodyHighLow bool
	Timezone       string
}

// Result is the computed high/low reference window.
type Result struct {
	Symbol       string             `json:"symbol"`
	Interval     string             `json:"intervalDetected"`
	Period       string             `json:"period"`
	High         common.JSONFloat64 `json:"high"`
	Low          common.JSONFloat64 `json:"low"`
	HighTime     time.Time          `json:"highTime"`
	LowTime      time.Time          `json:"lowTime"`
	Range        common.JSONFloat64 `json:"range"`
	RangePercent common.JSONFloat64 `json:"rangePercent"`
	CalculatedAt time.Time          `json:"calculatedAt"`
}

// enriched carries the derived per-candle fields the extremum scan compares.
type enriched struct {
	common.Candle
	bodyHigh  float64
	bodyLow   float64
	upperWick float64
	lowerWick float64
	isGreen   bool
}

func enrich(c common.Candle) enriched {
	return enriched{
		Candle:    c,
		bodyHigh:  c.BodyHigh(),
		bodyLow:   c.BodyLow(),
		upperWick: c.UpperWick(),
		lowerWick: c.LowerWick(),
		isGreen:   c.IsGreen(),
	}
}

// Calculate computes the high/low result over the candles that survive the
// period filter, anchored at the current wall clock.
func Calculate(cs []common.Candle, cfg Config) (Result, error) {
	return CalculateAt(cs, cfg, time.Now())
}

// CalculateAt is Calculate with an explicit anchor instant for the calendar
// arithmetic. Computing it twice over the same inputs yields identical fields
// except CalculatedAt.
func CalculateAt(cs []common.Candle, cfg Config, now time.Time) (Result, error) {
	if len(cs) == 0 {
		return Result{}, fmt.Errorf("%w: no candles supplied for %v", common.ErrOutOfCandles, cfg.Symbol)
	}
	if err := period.Validate(cfg.Period); err != nil {
		return Result{}, err
	}
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return Result{}, fmt.Errorf("candle %d: %w", i, err)
		}
	}

	zone := effectiveZone(cfg)
	filtered := period.Filter(cs, cfg.Period, zone, now)
	if len(filtered) == 0 {
		return Result{}, fmt.Errorf("%w: %v over %v", common.ErrEmptyPeriod, cfg.Symbol, cfg.Period)
	}

	first := enrich(filtered[0])
	highest, lowest := pick(first, cfg.UseBodyHighLow)
	highTime, lowTime := first.OpenTime, first.OpenTime
	for _, c := range filtered[1:] {
		e := enrich(c)
		hi, lo := pick(e, cfg.UseBodyHighLow)
		// Ties keep the earliest occurrence.
		if hi > highest {
			highest, highTime = hi, e.OpenTime
		}
		if lo < lowest {
			lowest, lowTime = lo, e.OpenTime
		}
	}

	priceRange := highest - lowest
	rangePercent := 0.0
	if lowest > 0 {
		rangePercent = priceRange / lowest * 100
	}

	res := Result{
		Symbol:       cfg.Symbol,
		Interval:     common.DetectInterval(filtered),
		Period:       cfg.Period.String(),
		High:         common.JSONFloat64(highest),
		Low:          common.JSONFloat64(lowest),
		HighTime:     highTime,
		LowTime:      lowTime,
		Range:        common.JSONFloat64(priceRange),
		RangePercent: common.JSONFloat64(rangePercent),
		CalculatedAt: now,
	}
	log.Debug().Str("symbol", cfg.Symbol).Str("period", res.Period).
		Float64("high", highest).Float64("low", lowest).Int("candles", len(filtered)).
		Msg("High/low computed")
	return res, nil
}

func pick(e enriched, useBody bool) (hi, lo float64) {
	if useBody {
		return e.bodyHigh, e.bodyLow
	}
	return float64(e.High), float64(e.Low)
}

func effectiveZone(cfg Config) string {
	if s, ok := cfg.Period.(period.Session); ok && s.Timezone != "" {
		return s.Timezone
	}
	return period.EffectiveZone("", cfg.Timezone)
}
