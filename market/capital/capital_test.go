package capital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corrcrack/market/common"
)

var testCreds = Credentials{APIKey: "test-key", Identifier: "someone@example.com", Password: "hunter2"}

// brokerStub fakes the session endpoints; route extends it with API endpoints.
func brokerStub(t *testing.T, route http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/session/encryptionKey":
			require.Equal(t, "test-key", r.Header.Get("X-CAP-API-KEY"))
			w.Write([]byte(`{"encryptionKey":"pem-blob","timeStamp":1642327200000}`))
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			require.Equal(t, "test-key", r.Header.Get("X-CAP-API-KEY"))
			var body sessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "someone@example.com", body.Identifier)
			require.Equal(t, "hunter2", body.Password)
			require.False(t, body.EncryptedPassword)
			w.Header().Set("CST", "cst-token")
			w.Header().Set("X-SECURITY-TOKEN", "security-token")
			w.Write([]byte(`{}`))
		case r.Method == http.MethodGet && r.URL.Path == "/ping":
			requireSessionTokens(t, r)
			w.Write([]byte(`{"status":"OK"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/session":
			requireSessionTokens(t, r)
			w.Write([]byte(`{}`))
		default:
			if route != nil {
				route(w, r)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func requireSessionTokens(t *testing.T, r *http.Request) {
	t.Helper()
	require.Equal(t, "cst-token", r.Header.Get("CST"))
	require.Equal(t, "security-token", r.Header.Get("X-SECURITY-TOKEN"))
}

func testBroker(t *testing.T, route http.HandlerFunc) *Capital {
	t.Helper()
	ts := brokerStub(t, route)
	e := New(testCreds, WithURLs(ts.URL+"/", ""))
	e.retrier = common.NewRetryExecutor(1, 1*time.Millisecond)
	return e
}

func TestSessionHandshake(t *testing.T) {
	e := testBroker(t, nil)

	require.False(t, e.IsHealthy(context.Background()))
	require.NoError(t, e.Initialize(context.Background()))

	cst, securityTok := e.sessionTokens()
	require.Equal(t, "cst-token", cst)
	require.Equal(t, "security-token", securityTok)
	require.True(t, e.IsHealthy(context.Background()))

	require.NoError(t, e.Disconnect())
	cst, securityTok = e.sessionTokens()
	require.Empty(t, cst)
	require.Empty(t, securityTok)
	require.False(t, e.IsHealthy(context.Background()))
}

func TestInitializeFailsWithoutCredentials(t *testing.T) {
	e := New(Credentials{}, WithURLs("http://localhost:1/", ""))
	err := e.Initialize(context.Background())
	require.ErrorIs(t, err, common.ErrProviderUnhealthy)
}

func TestInitializeFailsOnEmptyEncryptionKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"encryptionKey":""}`))
	}))
	defer ts.Close()

	e := New(testCreds, WithURLs(ts.URL+"/", ""))
	err := e.Initialize(context.Background())
	require.ErrorIs(t, err, common.ErrProviderUnhealthy)
	require.Contains(t, err.Error(), "empty encryption key")
}

func TestInitializeFailsOnRejectedLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/session/encryptionKey" {
			w.Write([]byte(`{"encryptionKey":"pem-blob"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorCode":"error.invalid.details"}`))
	}))
	defer ts.Close()

	e := New(testCreds, WithURLs(ts.URL+"/", ""))
	err := e.Initialize(context.Background())
	require.ErrorIs(t, err, common.ErrProviderUnhealthy)
	require.Contains(t, err.Error(), "error.invalid.details")
}

func TestGetCandlesParsesMidPrices(t *testing.T) {
	e := testBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/prices/EURUSD", r.URL.Path)
		require.Equal(t, "HOUR", r.URL.Query().Get("resolution"))
		require.Equal(t, "2", r.URL.Query().Get("max"))
		requireSessionTokens(t, r)
		w.Write([]byte(`{"prices":[
			{"snapshotTimeUTC":"2022-01-16T10:00:00",
			 "openPrice":{"bid":1.10,"ask":1.10},"closePrice":{"bid":1.11,"ask":1.11},
			 "highPrice":{"bid":1.12,"ask":1.12},"lowPrice":{"bid":1.09,"ask":1.09},
			 "lastTradedVolume":42},
			{"snapshotTimeUTC":"2022-01-16T11:00:00",
			 "openPrice":{"bid":1.11,"ask":1.11},"closePrice":{"bid":0,"ask":1.13},
			 "highPrice":{"bid":1.13,"ask":1.13},"lowPrice":{"bid":1.10,"ask":1.10},
			 "lastTradedVolume":17}
		]}`))
	})

	cs, err := e.GetCandles(context.Background(), "EURUSD", "1h", 2)

	require.NoError(t, err)
	require.Len(t, cs, 2)
	require.Equal(t, common.Candle{
		Symbol:    "EURUSD",
		OpenTime:  time.Date(2022, 1, 16, 10, 0, 0, 0, time.UTC),
		CloseTime: time.Date(2022, 1, 16, 10, 59, 59, int(999*time.Millisecond), time.UTC),
		Open:      1.10, High: 1.12, Low: 1.09, Close: 1.11,
		Volume: 42,
	}, cs[0])
	// One-sided quotes fall back to the available side.
	require.Equal(t, common.JSONFloat64(1.13), cs[1].Close)
}

func TestGetCandlesUnsupportedInterval(t *testing.T) {
	e := testBroker(t, nil)

	_, err := e.GetCandles(context.Background(), "EURUSD", "17m", 2)
	require.ErrorIs(t, err, common.ErrUnsupportedInterval)
}

func TestGetCandlesStatusMapping(t *testing.T) {
	var status int
	e := testBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"errorCode":"whatever"}`))
	})

	status = http.StatusTooManyRequests
	_, err := e.GetCandles(context.Background(), "EURUSD", "1h", 2)
	require.ErrorIs(t, err, common.ErrRateLimited)

	status = http.StatusNotFound
	_, err = e.GetCandles(context.Background(), "NOPE", "1h", 2)
	require.ErrorIs(t, err, common.ErrInvalidSymbol)

	status = http.StatusForbidden
	_, err = e.GetCandles(context.Background(), "EURUSD", "1h", 2)
	var provErr common.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.True(t, provErr.NotRetryable)
	require.Contains(t, err.Error(), "rejected session tokens")
}

func TestGetMarketSnapshot(t *testing.T) {
	e := testBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/EURUSD", r.URL.Path)
		requireSessionTokens(t, r)
		w.Write([]byte(`{"snapshot":{"bid":1.10,"offer":1.10,"high":1.12,"low":1.09,
			"netChange":-0.005,"percentageChange":-0.45,"updateTimeUTC":"2022-01-16T10:30:00"}}`))
	})

	snapshot, err := e.GetMarketSnapshot(context.Background(), "EURUSD")

	require.NoError(t, err)
	require.Equal(t, "EURUSD", snapshot.Symbol)
	require.Equal(t, common.JSONFloat64(1.10), snapshot.Price)
	require.Equal(t, common.JSONFloat64(-0.005), snapshot.Change24h)
	require.Equal(t, common.JSONFloat64(-0.45), snapshot.ChangePercent24h)
	require.Equal(t, time.Date(2022, 1, 16, 10, 30, 0, 0, time.UTC), snapshot.Timestamp)
}

func TestGetTicker24hSynthesizedFromDetails(t *testing.T) {
	e := testBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"snapshot":{"bid":1.10,"offer":1.10,"high":1.12,"low":1.09,
			"netChange":-0.005,"percentageChange":-0.45,"updateTimeUTC":"2022-01-16T10:30:00"}}`))
	})

	ticker, err := e.GetTicker24h(context.Background(), "EURUSD")

	require.NoError(t, err)
	require.Equal(t, common.JSONFloat64(1.10), ticker.LastPrice)
	require.Equal(t, common.JSONFloat64(1.12), ticker.HighPrice)
	require.Equal(t, common.JSONFloat64(1.09), ticker.LowPrice)
	// The broker has no volume aggregates.
	require.Equal(t, common.JSONFloat64(0), ticker.BaseVolume)
	require.Equal(t, 0, ticker.Trades)
}

func TestMarketDetailsServesStaleMemoOnFailure(t *testing.T) {
	var fail bool
	e := testBroker(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"errorCode":"error.server"}`))
			return
		}
		w.Write([]byte(`{"snapshot":{"bid":1.10,"offer":1.10,"updateTimeUTC":"2022-01-16T10:30:00"}}`))
	})

	first, err := e.GetMarketSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)

	fail = true
	second, err := e.GetMarketSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// A symbol never seen has no memo to fall back to.
	_, err = e.GetMarketSnapshot(context.Background(), "GBPUSD")
	require.Error(t, err)
}
