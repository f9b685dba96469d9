package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"corrcrack/indicator"
	"corrcrack/market/common"
	"corrcrack/period"
)

// Confidence score coefficients. Hosts comparing signals across deployments
// rely on these being fixed; tune with care.
const (
	ConfidenceBase        = 0.5
	ConfidencePerHeld     = 0.1
	ConfidenceDistWeight  = 2.0
	ConfidenceDistCeiling = 0.3
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMinCorrelatedAssets = 1
	DefaultMarketDataInterval  = "5m"
	DefaultCandlesLimit        = 100
)

const (
	minPrimaryAssets = 2
	maxPrimaryAssets = 4
)

// ErrInvalidConfig is the message carried by results of runs that never
// started because the configuration did not validate.
const ErrInvalidConfig = "Invalid configuration"

// Config drives one correlation-crack evaluation over a correlated group.
type Config struct {
	// PrimaryAssets is the correlated group, 2 to 4 symbols.
	PrimaryAssets []string
	// Period is the reference window the high/low is computed over.
	Period period.Spec
	// Direction selects which reference level matters: CROSS_UNDER watches
	// the period high, CROSS_OVER the period low.
	Direction common.Direction
	// UseBodyHighLow compares body extremes instead of wicks.
	UseBodyHighLow bool
	// Timezone is the host-level zone; the period's own zone wins over it.
	Timezone string
	// MinCorrelatedAssets is how many assets must have held their level for
	// the pattern to fire. Defaults to 1.
	MinCorrelatedAssets int
	// MarketDataInterval is the candle interval fetched per asset. When empty
	// it follows the period's recommended fetch (calendar, rolling and custom
	// periods know what satisfies them), falling back to 5m.
	MarketDataInterval string
	// CandlesLimit is how many candles are fetched per asset. When zero it
	// follows the period's recommended fetch, falling back to 100.
	CandlesLimit int
	// CrossDetectionLookback is how many recent candles the detector
	// inspects. Defaults to 10.
	CrossDetectionLookback int
}

func (c Config) withDefaults() Config {
	if c.MinCorrelatedAssets <= 0 {
		c.MinCorrelatedAssets = DefaultMinCorrelatedAssets
	}
	// A prev_day period cannot be satisfied by 100 five-minute candles, so
	// unset fetch parameters follow the period's plan. Explicit settings win.
	switch c.Period.(type) {
	case period.Calendar, period.Rolling, period.Custom:
		plan := period.Plan(c.Period)
		if c.MarketDataInterval == "" {
			c.MarketDataInterval = plan.Interval
		}
		if c.CandlesLimit <= 0 {
			c.CandlesLimit = plan.Limit
		}
	}
	if c.MarketDataInterval == "" {
		c.MarketDataInterval = DefaultMarketDataInterval
	}
	if c.CandlesLimit <= 0 {
		c.CandlesLimit = DefaultCandlesLimit
	}
	if c.CrossDetectionLookback <= 0 {
		c.CrossDetectionLookback = DefaultLookback
	}
	return c
}

// Validate checks group size, period presence and direction membership.
// Session periods must additionally validate their hour/minute ranges.
func (c Config) Validate() error {
	if len(c.PrimaryAssets) < minPrimaryAssets || len(c.PrimaryAssets) > maxPrimaryAssets {
		return fmt.Errorf("primaryAssets must have %d to %d symbols, got %d", minPrimaryAssets, maxPrimaryAssets, len(c.PrimaryAssets))
	}
	if c.Period == nil {
		return fmt.Errorf("period is required")
	}
	if !c.Direction.Valid() {
		return fmt.Errorf("direction must be %v or %v", common.CrossOver, common.CrossUnder)
	}
	if s, ok := c.Period.(period.Session); ok {
		return s.Validate()
	}
	return nil
}

// Result is the outcome of one strategy run. A run either fails with a
// human-readable Error, or succeeds carrying every per-asset condition and,
// when the pattern fired, the signal. A run never produces a partial signal.
type Result struct {
	Success         bool                    `json:"success"`
	Error           string                  `json:"error,omitempty"`
	Signal          *common.Signal          `json:"signal,omitempty"`
	Conditions      []common.AssetCondition `json:"conditions"`
	ReferenceLevels map[string]float64      `json:"referenceLevels,omitempty"`
	EvaluatedAt     time.Time               `json:"evaluatedAt"`
}

// runState tracks where in its lifecycle a strategy run is. Every run walks
// idle -> validating -> fetching -> computing -> detecting -> deciding and
// ends at signalling or quiet; any failure jumps to failed.
type runState string

const (
	stateIdle       runState = "idle"
	stateValidating runState = "validating"
	stateFetching   runState = "fetching"
	stateComputing  runState = "computing"
	stateDetecting  runState = "detecting"
	stateDeciding   runState = "deciding"
	stateSignalling runState = "signalling"
	stateQuiet      runState = "quiet"
	stateFailed     runState = "failed"
)

// Engine evaluates correlation-crack configurations against one provider.
type Engine struct {
	provider common.Provider
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time
}

// Option mutates an Engine at construction time.
type Option func(*Engine)

// WithNotifier replaces the default log-only notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRequestTimeout overrides the default 30s per-run fetch timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New constructs an Engine over the given provider.
func New(provider common.Provider, options ...Option) *Engine {
	e := &Engine{
		provider: provider,
		notifier: LogNotifier{},
		timeout:  30 * time.Second,
		now:      time.Now,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

type fetched struct {
	asset   string
	candles []common.Candle
	err     error
}

// Run executes one correlation-crack evaluation. The candle series backing
// the decision are a consistent snapshot: each asset is fetched exactly once
// and the decision uses those exact sequences.
func (e *Engine) Run(ctx context.Context, cfg Config) Result {
	state := stateValidating
	e.transition(stateIdle, state)

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("Strategy configuration rejected")
		return e.fail(state, ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()

	state = e.transition(state, stateFetching)
	series, err := e.fetchAll(ctx, cfg)
	if err != nil {
		return e.fail(state, err.Error())
	}

	state = e.transition(state, stateComputing)
	zone := period.EffectiveZone("", cfg.Timezone)
	references := make(map[string]float64, len(cfg.PrimaryAssets))
	for _, asset := range cfg.PrimaryAssets {
		hl, err := indicator.CalculateAt(series[asset], indicator.Config{
			Symbol:         asset,
			Period:         cfg.Period,
			UseBodyHighLow: cfg.UseBodyHighLow,
			Timezone:       zone,
		}, e.now())
		if err != nil {
			return e.fail(state, fmt.Sprintf("reference calculation failed for %v: %v", asset, err))
		}
		if cfg.Direction == common.CrossUnder {
			references[asset] = float64(hl.High)
		} else {
			references[asset] = float64(hl.Low)
		}
	}

	state = e.transition(state, stateDetecting)
	conditions := make([]common.AssetCondition, 0, len(cfg.PrimaryAssets))
	for _, asset := range cfg.PrimaryAssets {
		cs := series[asset]
		ref := references[asset]
		cross := DetectCross(cs, ref, cfg.Direction, cfg.CrossDetectionLookback)

		condition := common.AssetCondition{
			Symbol:         asset,
			HasCrossed:     cross.Crossed,
			CurrentPrice:   cs[len(cs)-1].Close,
			ReferenceLevel: common.JSONFloat64(ref),
		}
		if cross.Crossed {
			condition.CrossDirection = cross.Direction
			crossTime := cross.CrossTime
			condition.CrossTime = &crossTime
		}
		conditions = append(conditions, condition)
	}

	state = e.transition(state, stateDeciding)
	var crossed, held []common.AssetCondition
	for _, condition := range conditions {
		if condition.HasCrossed {
			crossed = append(crossed, condition)
		} else {
			held = append(held, condition)
		}
	}

	result := Result{
		Success:         true,
		Conditions:      conditions,
		ReferenceLevels: references,
		EvaluatedAt:     e.now(),
	}

	if len(crossed) != 1 || len(held) < cfg.MinCorrelatedAssets {
		e.transition(state, stateQuiet)
		log.Debug().Int("crossed", len(crossed)).Int("held", len(held)).Msg("No correlation crack")
		return result
	}

	e.transition(state, stateSignalling)
	trigger := crossed[0]
	heldSymbols := make([]string, 0, len(held))
	for _, condition := range held {
		heldSymbols = append(heldSymbols, condition.Symbol)
	}
	sort.Strings(heldSymbols)

	signal := common.Signal{
		TriggerAsset:     trigger.Symbol,
		Direction:        cfg.Direction,
		CorrelatedAssets: heldSymbols,
		ReferenceLevel:   trigger.ReferenceLevel,
		Confidence:       common.JSONFloat64(confidence(held)),
		Timestamp:        e.now(),
		Conditions:       conditions,
	}
	result.Signal = &signal
	e.notifier.Notify(signal)
	return result
}

// fetchAll fans out one GetCandles per asset concurrently. The provider's
// rate limiter is the only throttling point. The first failure cancels the
// remaining fetches and fails the run, naming the symbol.
func (e *Engine) fetchAll(ctx context.Context, cfg Config) (map[string][]common.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out := make(chan fetched, len(cfg.PrimaryAssets))
	for _, asset := range cfg.PrimaryAssets {
		go func(asset string) {
			cs, err := e.provider.GetCandles(ctx, asset, cfg.MarketDataInterval, cfg.CandlesLimit)
			out <- fetched{asset: asset, candles: cs, err: err}
		}(asset)
	}

	series := make(map[string][]common.Candle, len(cfg.PrimaryAssets))
	var firstErr error
	for range cfg.PrimaryAssets {
		f := <-out
		if f.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch failed for %v: %w", f.asset, f.err)
				cancel()
			}
			continue
		}
		series[f.asset] = f.candles
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return series, nil
}

// confidence scores a fired pattern: base 0.5, +0.1 per held asset beyond the
// first, plus up to 0.3 for how far the held assets sit from their levels.
func confidence(held []common.AssetCondition) float64 {
	var totalDistance float64
	for _, condition := range held {
		ref := float64(condition.ReferenceLevel)
		if ref != 0 {
			totalDistance += math.Abs(float64(condition.CurrentPrice)-ref) / ref
		}
	}
	averageDistance := 0.0
	if len(held) > 0 {
		averageDistance = totalDistance / float64(len(held))
	}

	c := ConfidenceBase +
		float64(len(held)-1)*ConfidencePerHeld +
		math.Min(averageDistance*ConfidenceDistWeight, ConfidenceDistCeiling)
	return math.Max(0, math.Min(1, c))
}

func (e *Engine) transition(from, to runState) runState {
	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Strategy run transition")
	return to
}

func (e *Engine) fail(from runState, msg string) Result {
	e.transition(from, stateFailed)
	return Result{Success: false, Error: msg, EvaluatedAt: e.now()}
}
