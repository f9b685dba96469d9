// Package market wires the venue adapters, the shared rate limiters and the
// optional TTL cache behind one lookup.
package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"corrcrack/market/binance"
	"corrcrack/market/cache"
	"corrcrack/market/capital"
	"corrcrack/market/common"
	"corrcrack/market/ratelimit"
)

// Market is the provider registry a host constructs once and hands to the
// strategy layer. Adapters of the same venue share one token bucket; the TTL
// cache, when enabled, is shared by every adapter.
type Market struct {
	providers map[string]common.Provider
	cache     *cache.TTLCache
	cacheTTL  time.Duration
	capital   *capital.Credentials
	debug     bool
}

// Option mutates a Market at construction time.
type Option func(*Market)

// WithCache enables the shared TTL cache with the given entry TTL.
func WithCache(ttl, cleanupInterval time.Duration) Option {
	return func(m *Market) {
		m.cache = cache.NewTTLCache(ttl, cleanupInterval)
		m.cacheTTL = ttl
	}
}

// WithCapital registers the CFD broker adapter with the given credentials.
// Without it only the crypto venues are available.
func WithCapital(creds capital.Credentials) Option {
	return func(m *Market) { m.capital = &creds }
}

// WithDebug enables adapter-level debug logging.
func WithDebug() Option {
	return func(m *Market) { m.debug = true }
}

// NewMarket constructs a Market.
func NewMarket(options ...Option) *Market {
	m := &Market{providers: map[string]common.Provider{}}
	for _, option := range options {
		option(m)
	}

	// Spot and futures hit the same venue; they share one bucket.
	binanceBucket := ratelimit.NewTokenBucket(ratelimit.DefaultMaxTokens, ratelimit.DefaultWindow)
	spotOpts := []binance.Option{binance.WithRateLimiter(binanceBucket)}
	if m.cache != nil {
		spotOpts = append(spotOpts, binance.WithCache(m.cache, m.cacheTTL))
	}
	spot := binance.New(spotOpts...)
	futures := binance.NewUSDMFutures(spotOpts...)
	spot.SetDebug(m.debug)
	futures.SetDebug(m.debug)
	m.providers[common.BINANCE] = spot
	m.providers[common.BINANCEUSDMFUTURES] = futures

	if m.capital != nil {
		capOpts := []capital.Option{
			capital.WithRateLimiter(ratelimit.NewTokenBucket(ratelimit.DefaultMaxTokens, ratelimit.DefaultWindow)),
		}
		if m.cache != nil {
			capOpts = append(capOpts, capital.WithCache(m.cache, m.cacheTTL))
		}
		broker := capital.New(*m.capital, capOpts...)
		broker.SetDebug(m.debug)
		m.providers[common.CAPITAL] = broker
	}
	return m
}

// Provider returns the provider registered under name (case-insensitive).
func (m *Market) Provider(name string) (common.Provider, error) {
	p, ok := m.providers[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Initialize eagerly initializes every registered provider, failing on the
// first one that cannot come up.
func (m *Market) Initialize(ctx context.Context) error {
	for name, p := range m.providers {
		if err := p.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing %v: %w", name, err)
		}
	}
	return nil
}

// Disconnect disconnects every provider and stops the shared cache sweeper.
func (m *Market) Disconnect() {
	for name, p := range m.providers {
		if err := p.Disconnect(); err != nil {
			log.Warn().Str("provider", name).Err(err).Msg("Disconnect failed")
		}
	}
	if m.cache != nil {
		m.cache.Close()
	}
}

// Healthy reports per-provider liveness.
func (m *Market) Healthy(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(m.providers))
	for name, p := range m.providers {
		out[name] = p.IsHealthy(ctx)
	}
	return out
}
