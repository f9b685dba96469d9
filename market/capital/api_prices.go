package capital

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"corrcrack/market/common"
)

// resolutions maps the interval strings to the broker's resolution names.
// Intervals the broker cannot serve are a non-retryable error, not a guess.
var resolutions = map[string]string{
	"1m":  "MINUTE",
	"5m":  "MINUTE_5",
	"15m": "MINUTE_15",
	"30m": "MINUTE_30",
	"1h":  "HOUR",
	"4h":  "HOUR_4",
	"1d":  "DAY",
	"1w":  "WEEK",
}

type quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// mid collapses a bid/ask quote to its midpoint; one-sided quotes fall back
// to the available side.
func (q quote) mid() float64 {
	if q.Bid == 0 {
		return q.Ask
	}
	if q.Ask == 0 {
		return q.Bid
	}
	return (q.Bid + q.Ask) / 2
}

type priceBar struct {
	SnapshotTimeUTC  string `json:"snapshotTimeUTC"`
	OpenPrice        quote  `json:"openPrice"`
	ClosePrice       quote  `json:"closePrice"`
	HighPrice        quote  `json:"highPrice"`
	LowPrice         quote  `json:"lowPrice"`
	LastTradedVolume int    `json:"lastTradedVolume"`
}

type pricesResponse struct {
	Prices    []priceBar `json:"prices"`
	ErrorCode string     `json:"errorCode"`
}

func (r pricesResponse) toCandles(symbol, interval string) ([]common.Candle, error) {
	candles := make([]common.Candle, len(r.Prices))
	for i, bar := range r.Prices {
		ts, err := time.Parse("2006-01-02T15:04:05", bar.SnapshotTimeUTC)
		if err != nil {
			return nil, fmt.Errorf("price bar %v has unparseable snapshot time %q", i, bar.SnapshotTimeUTC)
		}
		alignedOpen := common.FloorToInterval(ts.UTC(), interval)
		candles[i] = common.Candle{
			Symbol:    symbol,
			OpenTime:  alignedOpen,
			CloseTime: common.CeilToIntervalEnd(alignedOpen, interval),
			Open:      common.JSONFloat64(bar.OpenPrice.mid()),
			High:      common.JSONFloat64(bar.HighPrice.mid()),
			Low:       common.JSONFloat64(bar.LowPrice.mid()),
			Close:     common.JSONFloat64(bar.ClosePrice.mid()),
			Volume:    common.JSONFloat64(bar.LastTradedVolume),
		}
	}
	return candles, nil
}

func (e *Capital) requestPrices(ctx context.Context, symbol, interval string, limit int) ([]common.Candle, error) {
	resolution, ok := resolutions[interval]
	if !ok {
		return nil, common.ProviderError{NotRetryable: true, Err: common.ErrUnsupportedInterval}
	}

	req, err := e.authedRequest(ctx, http.MethodGet, "prices/"+symbol)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Add("resolution", resolution)
	q.Add("max", fmt.Sprintf("%d", limit))
	req.URL.RawQuery = q.Encode()

	resp, err := e.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.ProviderError{VenueSide: true, Err: common.ErrBrokenBodyResponse}
	}
	if err := e.checkStatus(resp, byts); err != nil {
		return nil, err
	}

	response := pricesResponse{}
	if err := json.Unmarshal(byts, &response); err != nil {
		return nil, common.ProviderError{VenueSide: true, Err: common.ErrInvalidJSONResponse}
	}
	if len(response.Prices) == 0 {
		return nil, common.ProviderError{VenueSide: true, Err: common.ErrOutOfCandles}
	}

	candles, err := response.toCandles(symbol, interval)
	if err != nil {
		return nil, common.ProviderError{VenueSide: true, Err: err}
	}
	if e.debug {
		log.Info().Str("provider", e.name).Str("symbol", symbol).Int("candle_count", len(candles)).
			Msg("Price request successful!")
	}
	return candles, nil
}

type marketDetailsResponse struct {
	Snapshot struct {
		Bid              float64 `json:"bid"`
		Offer            float64 `json:"offer"`
		High             float64 `json:"high"`
		Low              float64 `json:"low"`
		NetChange        float64 `json:"netChange"`
		PercentageChange float64 `json:"percentageChange"`
		UpdateTimeUTC    string  `json:"updateTimeUTC"`
	} `json:"snapshot"`
	ErrorCode string `json:"errorCode"`
}

func (d marketDetailsResponse) mid() float64 {
	return quote{Bid: d.Snapshot.Bid, Ask: d.Snapshot.Offer}.mid()
}

func (d marketDetailsResponse) timestamp() time.Time {
	ts, err := time.Parse("2006-01-02T15:04:05", d.Snapshot.UpdateTimeUTC)
	if err != nil {
		return time.Now().UTC()
	}
	return ts.UTC()
}

func (d marketDetailsResponse) toSnapshot(symbol string) common.MarketSnapshot {
	return common.MarketSnapshot{
		Symbol:           symbol,
		Price:            common.JSONFloat64(d.mid()),
		Timestamp:        d.timestamp(),
		Change24h:        common.JSONFloat64(d.Snapshot.NetChange),
		ChangePercent24h: common.JSONFloat64(d.Snapshot.PercentageChange),
	}
}

func (d marketDetailsResponse) toTicker24h(symbol string) common.Ticker24h {
	return common.Ticker24h{
		Symbol:        symbol,
		LastPrice:     common.JSONFloat64(d.mid()),
		HighPrice:     common.JSONFloat64(d.Snapshot.High),
		LowPrice:      common.JSONFloat64(d.Snapshot.Low),
		ClosePrice:    common.JSONFloat64(d.mid()),
		BidPrice:      common.JSONFloat64(d.Snapshot.Bid),
		AskPrice:      common.JSONFloat64(d.Snapshot.Offer),
		Change:        common.JSONFloat64(d.Snapshot.NetChange),
		ChangePercent: common.JSONFloat64(d.Snapshot.PercentageChange),
		Timestamp:     d.timestamp(),
	}
}

// marketDetails fetches the market details for an epic, memoizing the last
// good response per epic. On a fetch failure the memo serves stale details
// rather than failing the caller.
func (e *Capital) marketDetails(ctx context.Context, symbol string) (marketDetailsResponse, error) {
	if err := e.ensureInitialized(ctx); err != nil {
		return marketDetailsResponse{}, err
	}
	if err := e.limiter.WaitForSlot(ctx); err != nil {
		return marketDetailsResponse{}, err
	}

	var details marketDetailsResponse
	err := e.retrier.Do(ctx, e.name+" markets "+symbol, func() error {
		req, err := e.authedRequest(ctx, http.MethodGet, "markets/"+symbol)
		if err != nil {
			return err
		}
		resp, err := e.do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		byts, err := io.ReadAll(resp.Body)
		if err != nil {
			return common.ProviderError{VenueSide: true, Err: common.ErrBrokenBodyResponse}
		}
		if err := e.checkStatus(resp, byts); err != nil {
			return err
		}
		if err := json.Unmarshal(byts, &details); err != nil {
			return common.ProviderError{VenueSide: true, Err: common.ErrInvalidJSONResponse}
		}
		e.details.Add(symbol, details)
		return nil
	})
	if err != nil {
		if hit, ok := e.details.Get(symbol); ok {
			log.Warn().Str("symbol", symbol).Err(err).Msg("Serving stale market details from memo")
			return hit.(marketDetailsResponse), nil
		}
		return marketDetailsResponse{}, err
	}
	return details, nil
}

// checkStatus maps broker HTTP statuses to the shared error set.
func (e *Capital) checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return common.ProviderError{Code: resp.StatusCode, VenueSide: true, Err: common.ErrRateLimited}
	case http.StatusNotFound:
		return common.ProviderError{Code: resp.StatusCode, NotRetryable: true, VenueSide: true, Err: common.ErrInvalidSymbol}
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.ProviderError{Code: resp.StatusCode, NotRetryable: true, VenueSide: true,
			Err: fmt.Errorf("broker rejected session tokens (%v)", apiErr.ErrorCode)}
	default:
		return common.ProviderError{Code: resp.StatusCode, VenueSide: true,
			Err: fmt.Errorf("broker returned status %v (%v)", resp.StatusCode, apiErr.ErrorCode)}
	}
}
