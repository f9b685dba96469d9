// Package capital implements the provider contract against the Capital.com
// CFD broker REST API. Unlike the crypto venues it is session-based: an
// encryption-key fetch followed by a credentialed session create yields two
// session tokens attached to every subsequent request, and a streaming
// keep-alive channel pings every 9 minutes so the session never expires
// between strategy runs.
package capital

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"corrcrack/market/cache"
	"corrcrack/market/common"
	"corrcrack/market/ratelimit"
)

// detailsMemoSize bounds the per-epic market-details memo.
const detailsMemoSize = 256

// Credentials identify an API key and its login against the broker.
type Credentials struct {
	APIKey     string
	Identifier string
	Password   string
}

// Capital enables requesting candles, tickers and snapshots from the broker.
type Capital struct {
	name       string
	apiURL     string
	streamURL  string
	creds      Credentials
	debug      bool
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
	retrier    common.RetryExecutor
	breaker    *gobreaker.CircuitBreaker

	cache    *cache.TTLCache
	cacheTTL time.Duration

	// details memoizes market metadata per epic; bounded, venue metadata is
	// effectively immutable intraday.
	details *lru.Cache

	mu          sync.Mutex
	initialized bool
	keepAlive   *keepAlive

	// tokenMu guards the session tokens separately so that request building
	// never contends with the initialization guard.
	tokenMu     sync.RWMutex
	cst         string
	securityTok string
}

// Option mutates a Capital adapter at construction time.
type Option func(*Capital)

// WithRateLimiter shares a token bucket across adapters of the same venue.
func WithRateLimiter(b *ratelimit.TokenBucket) Option {
	return func(e *Capital) { e.limiter = b }
}

// WithCache attaches a TTL cache for candle series and snapshots.
func WithCache(c *cache.TTLCache, ttl time.Duration) Option {
	return func(e *Capital) { e.cache, e.cacheTTL = c, ttl }
}

// WithHTTPClient overrides the default 30s-timeout HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Capital) { e.httpClient = c }
}

// WithURLs overrides the REST and streaming endpoints. An empty streamURL
// disables the streaming keep-alive channel (the REST ping still runs).
func WithURLs(apiURL, streamURL string) Option {
	return func(e *Capital) { e.apiURL, e.streamURL = apiURL, streamURL }
}

// New is the constructor for the Capital adapter.
func New(creds Credentials, options ...Option) *Capital {
	e := &Capital{
		name:       common.CAPITAL,
		apiURL:     "https://api-capital.backend-capital.com/api/v1/",
		streamURL:  "wss://api-streaming-capital.backend-capital.com/connect",
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retrier:    common.NewRetryExecutor(3, 1*time.Second),
		breaker:    common.NewBreaker(common.CAPITAL),
	}
	e.details, _ = lru.New(detailsMemoSize)
	for _, option := range options {
		option(e)
	}
	if e.limiter == nil {
		e.limiter = ratelimit.NewTokenBucket(ratelimit.DefaultMaxTokens, ratelimit.DefaultWindow)
	}
	return e
}

// Name is the uppercase venue name, CAPITAL.
func (e *Capital) Name() string { return e.name }

// SetDebug sets adapter-wide debug logging.
func (e *Capital) SetDebug(debug bool) { e.debug = debug }

// Initialize performs the session handshake: fetch the encryption key, create
// a credentialed session, store the two session tokens, and start the
// keep-alive channel. Other methods call it lazily on first use.
func (e *Capital) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.createSession(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnhealthy, err)
	}
	e.keepAlive = e.startKeepAlive()
	e.initialized = true
	if e.debug {
		log.Info().Str("provider", e.name).Msg("Broker session established")
	}
	return nil
}

// Disconnect stops the keep-alive channel and explicitly closes the broker
// session, then discards the session tokens.
func (e *Capital) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	if e.keepAlive != nil {
		e.keepAlive.stop()
		e.keepAlive = nil
	}
	if err := e.closeSession(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Broker session close failed")
	}
	e.setSessionTokens("", "")
	e.initialized = false
	e.httpClient.CloseIdleConnections()
	return nil
}

// IsHealthy reports false before initialization, and otherwise whether the
// session ping endpoint still accepts the tokens.
func (e *Capital) IsHealthy(ctx context.Context) bool {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return false
	}
	return e.pingSession(ctx) == nil
}

func (e *Capital) ensureInitialized(ctx context.Context) error {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if initialized {
		return nil
	}
	return e.Initialize(ctx)
}

// GetCandles returns up to limit candles for the epic at the given interval,
// ascending and interval-aligned. Bid/ask quotes collapse to mid prices.
func (e *Capital) GetCandles(ctx context.Context, symbol string, interval string, limit int) ([]common.Candle, error) {
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
	err := e.retrier.Do(ctx, e.name+" prices "+symbol, func() error {
		var reqErr error
		candles, reqErr = e.requestPrices(ctx, symbol, interval, limit)
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

// GetMarketSnapshot returns the broker's current view of the epic, mid-price.
func (e *Capital) GetMarketSnapshot(ctx context.Context, symbol string) (common.MarketSnapshot, error) {
	details, err := e.marketDetails(ctx, symbol)
	if err != nil {
		return common.MarketSnapshot{}, err
	}
	return details.toSnapshot(symbol), nil
}

// GetTicker24h synthesizes 24h stats from the market details snapshot; the
// broker has no volume or trade-count aggregates, which zero-fill.
func (e *Capital) GetTicker24h(ctx context.Context, symbol string) (common.Ticker24h, error) {
	details, err := e.marketDetails(ctx, symbol)
	if err != nil {
		return common.Ticker24h{}, err
	}
	return details.toTicker24h(symbol), nil
}

func (e *Capital) do(req *http.Request) (*http.Response, error) {
	resp, err := e.breaker.Execute(func() (interface{}, error) {
		return e.httpClient.Do(req)
	})
	if err != nil {
		return nil, common.ProviderError{Err: fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)}
	}
	return resp.(*http.Response), nil
}

// authedRequest builds a request carrying the two session tokens.
func (e *Capital) authedRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.apiURL+path, nil)
	if err != nil {
		return nil, common.ProviderError{NotRetryable: true, Err: err}
	}
	cst, securityTok := e.sessionTokens()
	req.Header.Set("CST", cst)
	req.Header.Set("X-SECURITY-TOKEN", securityTok)
	return req, nil
}

func (e *Capital) sessionTokens() (cst, securityTok string) {
	e.tokenMu.RLock()
	defer e.tokenMu.RUnlock()
	return e.cst, e.securityTok
}

func (e *Capital) setSessionTokens(cst, securityTok string) {
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	e.cst, e.securityTok = cst, securityTok
}
