package binance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"corrcrack/market/common"
)

// /ticker/24hr response. Binance reports every numeric field as a string.
// Futures omit the bid/ask fields; they zero-fill through the shared struct.
type ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	CloseTime          int64  `json:"closeTime"`
	Count              int    `json:"count"`

	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// parseOrZero maps absent or malformed venue fields to zero rather than
// propagating nulls.
func parseOrZero(s string) common.JSONFloat64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return common.JSONFloat64(f)
}

func (r ticker24hResponse) toTicker() common.Ticker24h {
	return common.Ticker24h{
		Symbol:        r.Symbol,
		LastPrice:     parseOrZero(r.LastPrice),
		OpenPrice:     parseOrZero(r.OpenPrice),
		HighPrice:     parseOrZero(r.HighPrice),
		LowPrice:      parseOrZero(r.LowPrice),
		ClosePrice:    parseOrZero(r.LastPrice),
		BidPrice:      parseOrZero(r.BidPrice),
		AskPrice:      parseOrZero(r.AskPrice),
		VWAP:          parseOrZero(r.WeightedAvgPrice),
		BaseVolume:    parseOrZero(r.Volume),
		QuoteVolume:   parseOrZero(r.QuoteVolume),
		Change:        parseOrZero(r.PriceChange),
		ChangePercent: parseOrZero(r.PriceChangePercent),
		Trades:        r.Count,
		Timestamp:     time.UnixMilli(r.CloseTime).UTC(),
	}
}

func (e *Binance) requestTicker24h(ctx context.Context, symbol string) (common.Ticker24h, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+"ticker/24hr", nil)
	if err != nil {
		return common.Ticker24h{}, common.ProviderError{NotRetryable: true, Err: err}
	}
	q := req.URL.Query()
	q.Add("symbol", strings.ToUpper(symbol))
	req.URL.RawQuery = q.Encode()

	resp, err := e.do(req)
	if err != nil {
		return common.Ticker24h{}, err
	}
	defer resp.Body.Close()

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.Ticker24h{}, common.ProviderError{VenueSide: true, Err: common.ErrBrokenBodyResponse}
	}

	response := ticker24hResponse{}
	if err := json.Unmarshal(byts, &response); err != nil {
		return common.Ticker24h{}, common.ProviderError{VenueSide: true, Err: common.ErrInvalidJSONResponse}
	}
	if errResp := (errorResponse{Code: response.Code, Msg: response.Msg}).toError(); errResp != nil {
		return common.Ticker24h{}, common.ProviderError{
			Code:         response.Code,
			NotRetryable: errors.Is(errResp, common.ErrInvalidSymbol),
			VenueSide:    true,
			Err:          errResp,
		}
	}
	return response.toTicker(), nil
}
