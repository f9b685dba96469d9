// Package common contains shared contracts and types across the market super-package.
package common

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// BINANCE is an enumesque string value representing the Binance spot venue
	BINANCE = "BINANCE"
	// BINANCEUSDMFUTURES is an enumesque string value representing the Binance USD-M futures venue
	BINANCEUSDMFUTURES = "BINANCEUSDMFUTURES"
	// CAPITAL is an enumesque string value representing the Capital.com CFD venue
	CAPITAL = "CAPITAL"
)

var (
	// ErrUnsupportedInterval means: unsupported candle interval
	ErrUnsupportedInterval = errors.New("unsupported candle interval")

	// ErrExecutingRequest means: error executing client.Do() http request method
	ErrExecutingRequest = errors.New("error executing client.Do() http request method")

	// ErrBrokenBodyResponse means: venue returned broken body response
	ErrBrokenBodyResponse = errors.New("venue returned broken body response")

	// ErrInvalidJSONResponse means: venue returned invalid JSON response
	ErrInvalidJSONResponse = errors.New("venue returned invalid JSON response")

	// ErrInvalidSymbol means: symbol does not exist on venue
	ErrInvalidSymbol = errors.New("symbol does not exist on venue")

	// ErrRateLimited means: venue asked us to enhance our calm
	ErrRateLimited = errors.New("venue asked us to enhance our calm")

	// ErrOutOfCandles means: venue returned no candles
	ErrOutOfCandles = errors.New("venue returned no candles")

	// ErrProviderUnhealthy means: provider failed initialization or its health check
	ErrProviderUnhealthy = errors.New("provider failed initialization or health check")

	// ErrUnsupportedProvider means: no provider registered under that name
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrEmptyPeriod means: the period filter yielded no candles
	ErrEmptyPeriod = errors.New("period filter yielded no candles")

	// ErrInvalidCandleData means: a candle violated its OHLC invariants
	ErrInvalidCandleData = errors.New("candle violates OHLC invariants")
)

// ProviderError is an error arising from a call against a venue API. It carries
// enough context for the RetryExecutor to decide whether retrying makes sense.
type ProviderError struct {
	Code         int
	Err          error
	NotRetryable bool
	VenueSide    bool
	RetryAfter   time.Duration
}

func (e ProviderError) Error() string { return e.Err.Error() }

// Unwrap exposes the underlying cause so callers can errors.Is against the
// package-level error set.
func (e ProviderError) Unwrap() error { return e.Err }

// Direction is the direction of a reference-level crossing.
type Direction string

const (
	// CrossOver means consecutive closes traversed the level upwards.
	CrossOver Direction = "CROSS_OVER"
	// CrossUnder means consecutive closes traversed the level downwards.
	CrossUnder Direction = "CROSS_UNDER"
)

// Valid reports whether the direction is one of the two enum members.
func (d Direction) Valid() bool { return d == CrossOver || d == CrossUnder }

// Candle is the generic OHLCV bar for all supported venues.
//
// Invariants: Low <= min(Open, Close) <= max(Open, Close) <= High, and
// OpenTime < CloseTime. Adapters align OpenTime to the requested interval and
// set CloseTime = OpenTime + interval - 1ms.
type Candle struct {
	Symbol    string      `json:"symbol"`
	OpenTime  time.Time   `json:"openTime"`
	CloseTime time.Time   `json:"closeTime"`
	Open      JSONFloat64 `json:"open"`
	High      JSONFloat64 `json:"high"`
	Low       JSONFloat64 `json:"low"`
	Close     JSONFloat64 `json:"close"`
	Volume    JSONFloat64 `json:"volume"`
	Trades    int         `json:"trades,omitempty"`
}

// Validate checks the OHLC invariants of the candle.
func (c Candle) Validate() error {
	lo, hi := float64(c.Low), float64(c.High)
	bodyLo := math.Min(float64(c.Open), float64(c.Close))
	bodyHi := math.Max(float64(c.Open), float64(c.Close))
	if lo > bodyLo || bodyHi > hi {
		return fmt.Errorf("%w: %v low=%v open=%v close=%v high=%v", ErrInvalidCandleData, c.Symbol, c.Low, c.Open, c.Close, c.High)
	}
	if !c.OpenTime.Before(c.CloseTime) {
		return fmt.Errorf("%w: %v openTime %v is not before closeTime %v", ErrInvalidCandleData, c.Symbol, c.OpenTime, c.CloseTime)
	}
	return nil
}

// BodyHigh is the higher of open and close.
func (c Candle) BodyHigh() float64 { return math.Max(float64(c.Open), float64(c.Close)) }

// BodyLow is the lower of open and close.
func (c Candle) BodyLow() float64 { return math.Min(float64(c.Open), float64(c.Close)) }

// UpperWick is the distance between the high and the body top.
func (c Candle) UpperWick() float64 { return float64(c.High) - c.BodyHigh() }

// LowerWick is the distance between the body bottom and the low.
func (c Candle) LowerWick() float64 { return c.BodyLow() - float64(c.Low) }

// IsGreen reports whether the candle closed above its open.
func (c Candle) IsGreen() bool { return c.Close > c.Open }

// MarketSnapshot is the current state of a symbol at a venue.
type MarketSnapshot struct {
	Symbol           string      `json:"symbol"`
	Price            JSONFloat64 `json:"price"`
	Volume           JSONFloat64 `json:"volume"`
	Timestamp        time.Time   `json:"timestamp"`
	Change24h        JSONFloat64 `json:"change24h,omitempty"`
	ChangePercent24h JSONFloat64 `json:"changePercent24h,omitempty"`
}

// Ticker24h is the aggregate 24-hour stats for a symbol. Fields a venue does
// not supply are zero-filled rather than null.
type Ticker24h struct {
	Symbol        string      `json:"symbol"`
	LastPrice     JSONFloat64 `json:"lastPrice"`
	OpenPrice     JSONFloat64 `json:"openPrice"`
	HighPrice     JSONFloat64 `json:"highPrice"`
	LowPrice      JSONFloat64 `json:"lowPrice"`
	ClosePrice    JSONFloat64 `json:"closePrice"`
	BidPrice      JSONFloat64 `json:"bidPrice"`
	AskPrice      JSONFloat64 `json:"askPrice"`
	VWAP          JSONFloat64 `json:"vwap"`
	BaseVolume    JSONFloat64 `json:"baseVolume"`
	QuoteVolume   JSONFloat64 `json:"quoteVolume"`
	Change        JSONFloat64 `json:"change"`
	ChangePercent JSONFloat64 `json:"changePercent"`
	Trades        int         `json:"trades,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// AssetCondition is the per-asset outcome of one correlation-crack evaluation.
type AssetCondition struct {
	Symbol         string      `json:"symbol"`
	HasCrossed     bool        `json:"hasCrossed"`
	CrossDirection Direction   `json:"crossDirection,omitempty"`
	CurrentPrice   JSONFloat64 `json:"currentPrice"`
	ReferenceLevel JSONFloat64 `json:"referenceLevel"`
	CrossTime      *time.Time  `json:"crossTime,omitempty"`
}

// Signal is the structured correlation-crack pattern emission: exactly one
// asset crossed its reference level while the correlated ones held theirs.
type Signal struct {
	TriggerAsset     string           `json:"triggerAsset"`
	Direction        Direction        `json:"direction"`
	CorrelatedAssets []string         `json:"correlatedAssets"`
	ReferenceLevel   JSONFloat64      `json:"referenceLevel"`
	Confidence       JSONFloat64      `json:"confidence"`
	Timestamp        time.Time        `json:"timestamp"`
	Conditions       []AssetCondition `json:"perAssetConditions"`
}

// JSONFloat64 exists only for the purpose of marshalling floats in a nicer way.
type JSONFloat64 float64

// MarshalJSON overrides the marshalling of floats in a nicer way.
func (jf JSONFloat64) MarshalJSON() ([]byte, error) {
	f := float64(jf)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.New("unsupported value")
	}
	bs := []byte(fmt.Sprintf("%.12f", f))
	var i int
	for i = len(bs) - 1; i >= 0; i-- {
		if bs[i] == '0' {
			continue
		}
		if bs[i] == '.' {
			return bs[:i], nil
		}
		break
	}
	return bs[:i+1], nil
}
