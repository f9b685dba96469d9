// Package config loads the host configuration: which venue to scan, the
// correlated groups to evaluate, and the scan cadence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"corrcrack/market/common"
	"corrcrack/period"
	"corrcrack/strategy"
)

// Duration decodes YAML duration strings like "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// File is the top-level YAML schema.
type File struct {
	Venue        string      `yaml:"venue"`
	Timezone     string      `yaml:"timezone"`
	ScanInterval Duration    `yaml:"scan_interval"`
	Cache        CacheConfig `yaml:"cache"`
	Groups       []Group     `yaml:"groups"`
}

// CacheConfig enables the shared TTL cache.
type CacheConfig struct {
	Enabled         bool     `yaml:"enabled"`
	TTL             Duration `yaml:"ttl"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// Group is one correlated instrument group to evaluate.
type Group struct {
	Name                string       `yaml:"name"`
	Assets              []string     `yaml:"assets"`
	Direction           string       `yaml:"direction"`
	Period              PeriodConfig `yaml:"period"`
	UseBodyHighLow      bool         `yaml:"use_body_high_low"`
	Timezone            string       `yaml:"timezone"`
	MinCorrelatedAssets int          `yaml:"min_correlated_assets"`
	MarketDataInterval  string       `yaml:"market_data_interval"`
	CandlesLimit        int          `yaml:"candles_limit"`
	Lookback            int          `yaml:"lookback"`
}

// PeriodConfig is the YAML shape of a period spec; exactly one variant field
// must be set.
type PeriodConfig struct {
	Calendar string         `yaml:"calendar,omitempty"`
	Interval string         `yaml:"interval,omitempty"`
	Custom   *CustomConfig  `yaml:"custom,omitempty"`
	Rolling  *RollingConfig `yaml:"rolling,omitempty"`
	Session  *SessionConfig `yaml:"session,omitempty"`
}

// CustomConfig is an explicit time range.
type CustomConfig struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// RollingConfig is a last-N-candles window.
type RollingConfig struct {
	Periods  int    `yaml:"periods"`
	Interval string `yaml:"interval"`
}

// SessionConfig is an intraday trading session.
type SessionConfig struct {
	StartHour   int    `yaml:"start_hour"`
	EndHour     int    `yaml:"end_hour"`
	StartMinute int    `yaml:"start_minute"`
	EndMinute   int    `yaml:"end_minute"`
	Timezone    string `yaml:"timezone"`
}

// ToSpec converts the YAML shape into the period sum type.
func (p PeriodConfig) ToSpec() (period.Spec, error) {
	set := 0
	var spec period.Spec
	if p.Calendar != "" {
		set++
		spec = period.Calendar(p.Calendar)
	}
	if p.Interval != "" {
		set++
		spec = period.Interval(p.Interval)
	}
	if p.Custom != nil {
		set++
		spec = period.Custom{Start: p.Custom.Start, End: p.Custom.End}
	}
	if p.Rolling != nil {
		set++
		spec = period.Rolling{Periods: p.Rolling.Periods, Interval: p.Rolling.Interval}
	}
	if p.Session != nil {
		set++
		spec = period.Session{
			StartHour:   p.Session.StartHour,
			EndHour:     p.Session.EndHour,
			StartMinute: p.Session.StartMinute,
			EndMinute:   p.Session.EndMinute,
			Timezone:    p.Session.Timezone,
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("period must set exactly one variant, got %d", set)
	}
	if err := period.Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// StrategyConfig converts a group into a strategy configuration, inheriting
// the host-level timezone when the group names none.
func (g Group) StrategyConfig(hostTimezone string) (strategy.Config, error) {
	spec, err := g.Period.ToSpec()
	if err != nil {
		return strategy.Config{}, fmt.Errorf("group %q: %w", g.Name, err)
	}
	timezone := g.Timezone
	if timezone == "" {
		timezone = hostTimezone
	}
	cfg := strategy.Config{
		PrimaryAssets:          g.Assets,
		Period:                 spec,
		Direction:              common.Direction(g.Direction),
		UseBodyHighLow:         g.UseBodyHighLow,
		Timezone:               timezone,
		MinCorrelatedAssets:    g.MinCorrelatedAssets,
		MarketDataInterval:     g.MarketDataInterval,
		CandlesLimit:           g.CandlesLimit,
		CrossDetectionLookback: g.Lookback,
	}
	if err := cfg.Validate(); err != nil {
		return strategy.Config{}, fmt.Errorf("group %q: %w", g.Name, err)
	}
	return cfg, nil
}

// Load reads and validates a config file.
func Load(path string) (*File, error) {
	byts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(byts, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if f.Venue == "" {
		f.Venue = common.BINANCE
	}
	if f.ScanInterval <= 0 {
		f.ScanInterval = Duration(5 * time.Minute)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("config defines no groups")
	}
	for _, g := range f.Groups {
		if _, err := g.StrategyConfig(f.Timezone); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
