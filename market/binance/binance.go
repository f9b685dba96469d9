// Package binance implements the provider contract against the Binance spot
// and USD-M futures REST APIs.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"corrcrack/market/cache"
	"corrcrack/market/common"
	"corrcrack/market/ratelimit"
)

// Binance enables requesting candles, tickers and snapshots from Binance.
// The same struct serves spot and USD-M futures; only the base URL and name
// differ.
type Binance struct {
	name       string
	apiURL     string
	debug      bool
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
	retrier    common.RetryExecutor
	breaker    *gobreaker.CircuitBreaker

	cache    *cache.TTLCache
	cacheTTL time.Duration

	mu          sync.Mutex
	initialized bool
}

// Option mutates a Binance adapter at construction time.
type Option func(*Binance)

// WithRateLimiter shares a token bucket across adapters of the same venue.
func WithRateLimiter(b *ratelimit.TokenBucket) Option {
	return func(e *Binance) { e.limiter = b }
}

// WithCache attaches a TTL cache for candle series and snapshots. Without it
// the adapter goes to the venue every time.
func WithCache(c *cache.TTLCache, ttl time.Duration) Option {
	return func(e *Binance) { e.cache, e.cacheTTL = c, ttl }
}

// WithHTTPClient overrides the default 30s-timeout HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Binance) { e.httpClient = c }
}

// New is the constructor for the Binance spot adapter.
func New(options ...Option) *Binance {
	return newBinance(common.BINANCE, "https://api.binance.com/api/v3/", options...)
}

// NewUSDMFutures is the constructor for the Binance USD-M futures adapter.
func NewUSDMFutures(options ...Option) *Binance {
	return newBinance(common.BINANCEUSDMFUTURES, "https://fapi.binance.com/fapi/v1/", options...)
}

func newBinance(name, apiURL string, options ...Option) *Binance {
	e := &Binance{
		name:       name,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retrier:    common.NewRetryExecutor(3, 1*time.Second),
		breaker:    common.NewBreaker(name),
	}
	for _, option := range options {
		option(e)
	}
	if e.limiter == nil {
		e.limiter = ratelimit.NewTokenBucket(ratelimit.DefaultMaxTokens, ratelimit.DefaultWindow)
	}
	return e
}

// Name is the uppercase venue name, e.g. BINANCE.
func (e *Binance) Name() string { return e.name }

// SetDebug sets adapter-wide debug logging. Useful to know how many times the
// venue is being requested.
func (e *Binance) SetDebug(debug bool) { e.debug = debug }

// Initialize verifies connectivity against the ping endpoint. Other methods
// call it lazily on first use.
func (e *Binance) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnhealthy, err)
	}
	e.initialized = true
	if e.debug {
		log.Info().Str("provider", e.name).Msg("Provider initialized")
	}
	return nil
}

// Disconnect releases idle connections. Binance sessions are stateless, so
// there are no tokens to revoke.
func (e *Binance) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.httpClient.CloseIdleConnections()
	e.initialized = false
	return nil
}

// IsHealthy reports false before initialization, and otherwise whether the
// ping endpoint answers.
func (e *Binance) IsHealthy(ctx context.Context) bool {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return false
	}
	return e.ping(ctx) == nil
}

func (e *Binance) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+"ping", nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status %v", resp.StatusCode)
	}
	return nil
}

func (e *Binance) ensureInitialized(ctx context.Context) error {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if initialized {
		return nil
	}
	return e.Initialize(ctx)
}

// GetCandles returns up to limit candles for symbol at the given interval,
// ascending, with open/close times aligned to the interval. Results pass
// through the shared limiter, the circuit breaker and the retry executor; a
// TTL cache, when attached, short-circuits the venue entirely.
func (e *Binance) GetCandles(ctx context.Context, symbol string, interval string, limit int) ([]common.Candle, error) {
	if err := e.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("%v:candles:%v:%v:%v", e.name, symbol, interval, limit)
	if e.cache != nil {
		if hit, ok := e.cache.Get(cacheKey); ok {
			return hit.([]common.Candle), nil
		}
	}
	if err := e.limiter.WaitForSlot(ctx); err != nil {
		return nil, err
	}

	var candles []common.Candle
	err := e.retrier.Do(ctx, e.name+" klines "+symbol, func() error {
		var reqErr error
		candles, reqErr = e.requestCandles(ctx, symbol, interval, limit)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	candles = common.PatchCandleHoles(candles, interval)
	candles = common.RecentSlice(candles, limit)
	if e.cache != nil {
		e.cache.Set(cacheKey, candles, e.cacheTTL)
	}
	return candles, nil
}

// GetTicker24h returns the venue's rolling 24h stats for a symbol.
func (e *Binance) GetTicker24h(ctx context.Context, symbol string) (common.Ticker24h, error) {
	if err := e.ensureInitialized(ctx); err != nil {
		return common.Ticker24h{}, err
	}
	if err := e.limiter.WaitForSlot(ctx); err != nil {
		return common.Ticker24h{}, err
	}

	var ticker common.Ticker24h
	err := e.retrier.Do(ctx, e.name+" ticker24h "+symbol, func() error {
		var reqErr error
		ticker, reqErr = e.requestTicker24h(ctx, symbol)
		return reqErr
	})
	return ticker, err
}

// GetMarketSnapshot derives the current snapshot from the 24h ticker.
func (e *Binance) GetMarketSnapshot(ctx context.Context, symbol string) (common.MarketSnapshot, error) {
	cacheKey := fmt.Sprintf("%v:snapshot:%v", e.name, symbol)
	if e.cache != nil {
		if hit, ok := e.cache.Get(cacheKey); ok {
			return hit.(common.MarketSnapshot), nil
		}
	}
	ticker, err := e.GetTicker24h(ctx, symbol)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	snapshot := common.MarketSnapshot{
		Symbol:           symbol,
		Price:            ticker.LastPrice,
		Volume:           ticker.BaseVolume,
		Timestamp:        ticker.Timestamp,
		Change24h:        ticker.Change,
		ChangePercent24h: ticker.ChangePercent,
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, snapshot, e.cacheTTL)
	}
	return snapshot, nil
}

// do runs an HTTP request through the circuit breaker. An open breaker
// surfaces as a retryable transport failure.
func (e *Binance) do(req *http.Request) (*http.Response, error) {
	resp, err := e.breaker.Execute(func() (interface{}, error) {
		return e.httpClient.Do(req)
	})
	if err != nil {
		return nil, common.ProviderError{Err: fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)}
	}
	return resp.(*http.Response), nil
}
