package indicator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chu0802/CryptoTrader/internal/model"
)

func candleSeries(prices []float64) []model.KLine {
	base := time.Date(2024, 4, 5, 20, 32, 0, 0, time.UTC)
	candles := make([]model.KLine, len(prices))
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		candles[i] = model.KLine{
			Open:      d,
			High:      d.Add(decimal.NewFromInt(1)),
			Low:       d.Sub(decimal.NewFromInt(1)),
			Close:     d,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return candles
}

func TestComputeWarmUp(t *testing.T) {
	candles := candleSeries([]float64{100, 101, 102, 103, 104, 105, 106, 107})
	series := Compute(candles)
	assert.Empty(t, series, "no value before nine candles are seen")
}

func TestComputeSeedAndSmoothing(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110}
	candles := candleSeries(prices)
	series := Compute(candles)

	assert.Len(t, series, len(prices)-WarmUp+1)

	first, ok := series.At(candles[WarmUp-1].Timestamp)
	assert.True(t, ok)
	assert.True(t, first.K.Equal(decimal.NewFromInt(50)))
	assert.True(t, first.D.Equal(decimal.NewFromInt(50)))
	assert.True(t, first.J.Equal(decimal.NewFromInt(50)))

	// A steady uptrend keeps the RSV high, so K climbs above its seed.
	second, ok := series.At(candles[WarmUp].Timestamp)
	assert.True(t, ok)
	assert.True(t, second.K.GreaterThan(first.K))
	assert.True(t, second.J.Equal(second.K.Mul(decimal.NewFromInt(3)).Sub(second.D.Mul(decimal.NewFromInt(2)))))
}

func TestComputeFlatRangeClamped(t *testing.T) {
	candles := candleSeries([]float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100})
	for i := range candles {
		candles[i].High = candles[i].Close
		candles[i].Low = candles[i].Close
	}

	// Must not divide by zero on a zero high-low range.
	series := Compute(candles)
	assert.NotEmpty(t, series)
}

func TestFloorToInterval(t *testing.T) {
	ts := time.Date(2024, 4, 5, 14, 37, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 5, 14, 30, 0, 0, time.UTC), FloorToInterval(ts, 15))
	assert.Equal(t, time.Date(2024, 4, 5, 14, 35, 0, 0, time.UTC), FloorToInterval(ts, 5))
	assert.Equal(t, ts, FloorToInterval(ts, 1))
}

func TestResample(t *testing.T) {
	candles := candleSeries([]float64{100, 104, 98, 101, 103, 99})
	base := time.Date(2024, 4, 5, 21, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i].Timestamp = base.Add(time.Duration(i) * time.Minute)
	}
	out := Resample(candles, 3)

	assert.Len(t, out, 2)

	first := out[0]
	assert.True(t, first.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, first.Close.Equal(decimal.NewFromInt(98)))
	assert.True(t, first.High.Equal(decimal.NewFromInt(105)))
	assert.True(t, first.Low.Equal(decimal.NewFromInt(97)))
}
