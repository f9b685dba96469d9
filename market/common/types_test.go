package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCandleValidate(t *testing.T) {
	valid := Candle{
		Symbol:    "BTCUSDT",
		OpenTime:  tp("2022-01-16T10:45:00Z"),
		CloseTime: tp("2022-01-16T10:45:59Z"),
		Open:      100, High: 110, Low: 95, Close: 105,
	}
	require.NoError(t, valid.Validate())

	highBelowBody := valid
	highBelowBody.High = 104
	require.ErrorIs(t, highBelowBody.Validate(), ErrInvalidCandleData)

	lowAboveBody := valid
	lowAboveBody.Low = 101
	require.ErrorIs(t, lowAboveBody.Validate(), ErrInvalidCandleData)

	invertedTimes := valid
	invertedTimes.CloseTime = invertedTimes.OpenTime
	require.ErrorIs(t, invertedTimes.Validate(), ErrInvalidCandleData)
}

func TestCandleEnrichmentHelpers(t *testing.T) {
	red := Candle{Open: 105, High: 110, Low: 95, Close: 100}
	require.Equal(t, 105.0, red.BodyHigh())
	require.Equal(t, 100.0, red.BodyLow())
	require.Equal(t, 5.0, red.UpperWick())
	require.Equal(t, 5.0, red.LowerWick())
	require.False(t, red.IsGreen())

	green := Candle{Open: 100, High: 110, Low: 95, Close: 105}
	require.True(t, green.IsGreen())
}

func TestDirectionValid(t *testing.T) {
	require.True(t, CrossOver.Valid())
	require.True(t, CrossUnder.Valid())
	require.False(t, Direction("SIDEWAYS").Valid())
	require.False(t, Direction("").Valid())
}

func TestJSONFloat64MarshalsNicely(t *testing.T) {
	bs, err := json.Marshal(JSONFloat64(1.1050))
	require.NoError(t, err)
	require.Equal(t, "1.105", string(bs))

	bs, err = json.Marshal(JSONFloat64(100))
	require.NoError(t, err)
	require.Equal(t, "100", string(bs))
}

func TestProviderErrorUnwraps(t *testing.T) {
	err := ProviderError{Err: ErrRateLimited, VenueSide: true}
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, ErrRateLimited.Error(), err.Error())
}

func tp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
