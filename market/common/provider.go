package common

import (
	"context"
)

// Provider wraps a venue's market-data API behind a uniform contract.
//
// Since these are network calls against very different venues (crypto
// exchanges, CFD brokers), there's a myriad of things that can go wrong, so
// implementations do a best-effort of grouping known errors into ProviderError
// values, but clients must be prepared to handle unknown errors.
//
// Every network call an implementation makes must first pass through the
// venue's shared rate limiter and then through a RetryExecutor.
type Provider interface {
	// Name is the uppercase name of the provider e.g. BINANCE.
	Name() string

	// Initialize opens sessions, loads symbol metadata and verifies
	// connectivity. Other methods may call it lazily.
	Initialize(ctx context.Context) error

	// Disconnect releases sessions, sockets and tokens.
	Disconnect() error

	// IsHealthy is a cheap liveness check. It reports false if the provider
	// was never initialized.
	IsHealthy(ctx context.Context) bool

	// GetMarketSnapshot returns the current price/volume state of a symbol.
	GetMarketSnapshot(ctx context.Context, symbol string) (MarketSnapshot, error)

	// GetCandles returns up to limit candles for symbol at the given interval,
	// ordered ascending by open time. Open/close times are aligned to the
	// requested interval.
	GetCandles(ctx context.Context, symbol string, interval string, limit int) ([]Candle, error)

	// GetTicker24h returns aggregate 24-hour stats for a symbol. Fields the
	// venue does not supply are zero-filled.
	GetTicker24h(ctx context.Context, symbol string) (Ticker24h, error)
}
