package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corrcrack/market/common"
	"corrcrack/period"
)

func tp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func hourly(open string, o, h, l, c float64) common.Candle {
	ot := tp(open)
	return common.Candle{
		Symbol:    "BTCUSDT",
		OpenTime:  ot,
		CloseTime: ot.Add(1*time.Hour - time.Millisecond),
		Open:      common.JSONFloat64(o),
		High:      common.JSONFloat64(h),
		Low:       common.JSONFloat64(l),
		Close:     common.JSONFloat64(c),
		Volume:    1,
		Trades:    1,
	}
}

// prevDayCandles is a full hourly day (Jan 15 UTC) trading around 100, with
// the low printed at 03:00 and the high at 14:00.
func prevDayCandles() []common.Candle {
	cs := make([]common.Candle, 0, 24)
	start := tp("2022-01-15T00:00:00Z")
	for i := 0; i < 24; i++ {
		c := hourly(start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), 100, 105, 98, 102)
		switch i {
		case 3:
			c.Low = 95
		case 14:
			c.High = 110
		}
		cs = append(cs, c)
	}
	return cs
}

func TestCalculatePrevDayHighLow(t *testing.T) {
	var (
		cs  = prevDayCandles()
		cfg = Config{Symbol: "BTCUSDT", Period: period.PrevDay, Timezone: "UTC"}
		now = tp("2022-01-16T15:00:00Z")
	)

	res, err := CalculateAt(cs, cfg, now)

	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", res.Symbol)
	require.Equal(t, "1h", res.Interval)
	require.Equal(t, "prev_day", res.Period)
	require.Equal(t, common.JSONFloat64(110), res.High)
	require.Equal(t, common.JSONFloat64(95), res.Low)
	require.Equal(t, tp("2022-01-15T14:00:00Z"), res.HighTime)
	require.Equal(t, tp("2022-01-15T03:00:00Z"), res.LowTime)
	require.Equal(t, common.JSONFloat64(15), res.Range)
	require.InDelta(t, 15.789, float64(res.RangePercent), 0.001)
	require.Equal(t, now, res.CalculatedAt)
}

func TestCalculateRollingWindow(t *testing.T) {
	cs := make([]common.Candle, 0, 10)
	start := tp("2022-01-16T00:00:00Z")
	for i := 0; i < 10; i++ {
		price := 100.0 + float64(i)
		cs = append(cs, hourly(start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339),
			price, price, price, price))
	}
	cfg := Config{Symbol: "BTCUSDT", Period: period.Rolling{Periods: 3, Interval: "1h"}}

	res, err := CalculateAt(cs, cfg, tp("2022-01-16T10:00:00Z"))

	require.NoError(t, err)
	require.Equal(t, common.JSONFloat64(109), res.High)
	require.Equal(t, common.JSONFloat64(107), res.Low)
	require.Equal(t, common.JSONFloat64(2), res.Range)
}

func TestCalculateBodyHighLowIgnoresWicks(t *testing.T) {
	cs := []common.Candle{
		hourly("2022-01-16T10:00:00Z", 100, 120, 80, 104),
		hourly("2022-01-16T11:00:00Z", 104, 118, 82, 101),
	}
	now := tp("2022-01-16T12:00:00Z")

	wick, err := CalculateAt(cs, Config{Symbol: "X", Period: period.Interval("1h")}, now)
	require.NoError(t, err)
	require.Equal(t, common.JSONFloat64(120), wick.High)
	require.Equal(t, common.JSONFloat64(80), wick.Low)

	body, err := CalculateAt(cs, Config{Symbol: "X", Period: period.Interval("1h"), UseBodyHighLow: true}, now)
	require.NoError(t, err)
	require.Equal(t, common.JSONFloat64(104), body.High)
	require.Equal(t, common.JSONFloat64(100), body.Low)
}

func TestCalculateTiesKeepEarliestOccurrence(t *testing.T) {
	cs := []common.Candle{
		hourly("2022-01-16T10:00:00Z", 100, 110, 95, 105),
		hourly("2022-01-16T11:00:00Z", 105, 110, 95, 100),
	}

	res, err := CalculateAt(cs, Config{Symbol: "X", Period: period.Interval("1h")}, tp("2022-01-16T12:00:00Z"))

	require.NoError(t, err)
	require.Equal(t, tp("2022-01-16T10:00:00Z"), res.HighTime)
	require.Equal(t, tp("2022-01-16T10:00:00Z"), res.LowTime)
}

func TestCalculateErrorsOnNoCandles(t *testing.T) {
	_, err := CalculateAt(nil, Config{Symbol: "X", Period: period.PrevDay}, tp("2022-01-16T12:00:00Z"))
	require.ErrorIs(t, err, common.ErrOutOfCandles)
}

func TestCalculateErrorsWhenPeriodFiltersEverything(t *testing.T) {
	// Candles two days old cannot belong to yesterday.
	cs := []common.Candle{hourly("2022-01-10T10:00:00Z", 100, 105, 98, 102)}
	cfg := Config{Symbol: "X", Period: period.PrevDay, Timezone: "UTC"}

	_, err := CalculateAt(cs, cfg, tp("2022-01-16T12:00:00Z"))
	require.ErrorIs(t, err, common.ErrEmptyPeriod)
}

func TestCalculateErrorsOnMalformedCandle(t *testing.T) {
	bad := hourly("2022-01-16T10:00:00Z", 100, 105, 98, 102)
	bad.High = 90
	_, err := CalculateAt([]common.Candle{bad}, Config{Symbol: "X", Period: period.Interval("1h")}, tp("2022-01-16T12:00:00Z"))
	require.ErrorIs(t, err, common.ErrInvalidCandleData)
}

func TestCalculateErrorsOnInvalidPeriod(t *testing.T) {
	cs := []common.Candle{hourly("2022-01-16T10:00:00Z", 100, 105, 98, 102)}
	_, err := CalculateAt(cs, Config{Symbol: "X", Period: period.Calendar("bogus")}, tp("2022-01-16T12:00:00Z"))
	require.ErrorIs(t, err, period.ErrInvalidCalendar)
}

func TestCalculateIsDeterministic(t *testing.T) {
	var (
		cs  = prevDayCandles()
		cfg = Config{Symbol: "BTCUSDT", Period: period.PrevDay, Timezone: "UTC"}
		now = tp("2022-01-16T15:00:00Z")
	)

	first, err := CalculateAt(cs, cfg, now)
	require.NoError(t, err)
	second, err := CalculateAt(cs, cfg, now)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
