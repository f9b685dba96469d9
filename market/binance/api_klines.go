package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"corrcrack/market/common"
)

const errInvalidSymbolCode = -1121

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (r errorResponse) toError() error {
	if r.Code == 0 && r.Msg == "" {
		return nil
	}
	if r.Code == errInvalidSymbolCode {
		return common.ErrInvalidSymbol
	}
	return fmt.Errorf("binance returned error code! Code: %v, Message: %v", r.Code, r.Msg)
}

// Klines come back as a raw array per candle:
//
//	[
//	  1499040000000,      // Open time
//	  "0.01634790",       // Open
//	  "0.80000000",       // High
//	  "0.01575800",       // Low
//	  "0.01577100",       // Close
//	  "148976.11427815",  // Volume
//	  1499644799999,      // Close time
//	  "2434.19055334",    // Quote asset volume
//	  308,                // Number of trades
//	  ...                 // Taker volumes, ignore
//	]
type successfulResponse struct {
	ResponseCandles [][]interface{}
}

func rawFloat(raw interface{}, i int, field string) (float64, error) {
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("candle %v has non-string %v! Invalid syntax from Binance", i, field)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("candle %v had %v = %v! Invalid syntax from Binance", i, field, s)
	}
	return f, nil
}

func rawMillis(raw interface{}, i int, field string) (time.Time, error) {
	f, ok := raw.(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("candle %v has non-int %v! Invalid syntax from Binance", i, field)
	}
	return time.UnixMilli(int64(f)).UTC(), nil
}

func (r successfulResponse) toCandles(symbol, interval string) ([]common.Candle, error) {
	candles := make([]common.Candle, len(r.ResponseCandles))
	for i, raw := range r.ResponseCandles {
		if len(raw) < 9 {
			return nil, fmt.Errorf("candle %v has len < 9! Invalid syntax from Binance", i)
		}
		openTime, err := rawMillis(raw[0], i, "open time")
		if err != nil {
			return nil, err
		}
		open, err := rawFloat(raw[1], i, "open")
		if err != nil {
			return nil, err
		}
		high, err := rawFloat(raw[2], i, "high")
		if err != nil {
			return nil, err
		}
		low, err := rawFloat(raw[3], i, "low")
		if err != nil {
			return nil, err
		}
		closePrice, err := rawFloat(raw[4], i, "close")
		if err != nil {
			return nil, err
		}
		volume, err := rawFloat(raw[5], i, "volume")
		if err != nil {
			return nil, err
		}
		trades, ok := raw[8].(float64)
		if !ok {
			return nil, fmt.Errorf("candle %v has non-int number of trades! Invalid syntax from Binance", i)
		}

		alignedOpen := common.FloorToInterval(openTime, interval)
		candles[i] = common.Candle{
			Symbol:    symbol,
			OpenTime:  alignedOpen,
			CloseTime: common.CeilToIntervalEnd(alignedOpen, interval),
			Open:      common.JSONFloat64(open),
			High:      common.JSONFloat64(high),
			Low:       common.JSONFloat64(low),
			Close:     common.JSONFloat64(closePrice),
			Volume:    common.JSONFloat64(volume),
			Trades:    int(trades),
		}
	}
	return candles, nil
}

func (e *Binance) requestCandles(ctx context.Context, symbol, interval string, limit int) ([]common.Candle, error) {
	if !common.IsSupportedInterval(interval) {
		return nil, common.ProviderError{NotRetryable: true, Err: common.ErrUnsupportedInterval}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+"klines", nil)
	if err != nil {
		return nil, common.ProviderError{NotRetryable: true, Err: err}
	}
	q := req.URL.Query()
	q.Add("symbol", strings.ToUpper(symbol))
	q.Add("interval", interval)
	q.Add("limit", strconv.Itoa(limit))
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

	maybeErrorResponse := errorResponse{}
	err = json.Unmarshal(byts, &maybeErrorResponse)
	if errResp := maybeErrorResponse.toError(); err == nil && errResp != nil {
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			errResp = common.ErrRateLimited
			if len(resp.Header["Retry-After"]) == 1 {
				seconds, _ := strconv.Atoi(resp.Header["Retry-After"][0])
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, common.ProviderError{
			Code:         maybeErrorResponse.Code,
			NotRetryable: errors.Is(errResp, common.ErrInvalidSymbol),
			VenueSide:    true,
			RetryAfter:   retryAfter,
			Err:          errResp,
		}
	}

	maybeResponse := successfulResponse{}
	if err := json.Unmarshal(byts, &maybeResponse.ResponseCandles); err != nil {
		return nil, common.ProviderError{VenueSide: true, Err: common.ErrInvalidJSONResponse}
	}

	candles, err := maybeResponse.toCandles(strings.ToUpper(symbol), interval)
	if err != nil {
		return nil, common.ProviderError{VenueSide: true, Err: err}
	}
	if len(candles) == 0 {
		return nil, common.ProviderError{VenueSide: true, Err: common.ErrOutOfCandles}
	}

	if e.debug {
		log.Info().Str("provider", e.name).Str("symbol", symbol).Int("candle_count", len(candles)).
			Msg("Candle request successful!")
	}
	return candles, nil
}
