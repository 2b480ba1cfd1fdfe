package indicator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// WarmUp is the number of candles consumed before the first KDJ value is
// produced.
const WarmUp = 9

// KDJ is one smoothed stochastic oscillator triple.
type KDJ struct {
	K decimal.Decimal `json:"K"`
	D decimal.Decimal `json:"D"`
	J decimal.Decimal `json:"J"`
}

// Series is a read-only lookup from timestamp to a precomputed KDJ value.
type Series map[int64]KDJ

// At returns the value for the given timestamp.
func (s Series) At(t time.Time) (KDJ, bool) {
	v, ok := s[t.Unix()]
	return v, ok
}

var (
	third      = decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	twoThirds  = decimal.NewFromInt(2).Div(decimal.NewFromInt(3))
	hundred    = decimal.NewFromInt(100)
	seed       = decimal.NewFromInt(50)
	rangeFloor = decimal.NewFromFloat(0.001)
)

// Compute precomputes the 9-period KDJ series for a time-ordered candle
// sequence. K and D are seeded at 50; a zero high-low range is clamped so the
// RSV stays defined.
func Compute(candles []model.KLine) Series {
	series := make(Series, max(0, len(candles)-WarmUp+1))

	var k, d decimal.Decimal
	first := true

	for i := range candles {
		if i < WarmUp-1 {
			continue
		}

		window := candles[i-WarmUp+1 : i+1]
		highest := window[0].High
		lowest := window[0].Low
		for _, c := range window[1:] {
			highest = decimal.Max(highest, c.High)
			lowest = decimal.Min(lowest, c.Low)
		}

		span := highest.Sub(lowest)
		if span.IsZero() {
			span = rangeFloor
		}
		rsv := candles[i].Close.Sub(lowest).Div(span).Mul(hundred)

		if first {
			k, d = seed, seed
			first = false
		} else {
			k = twoThirds.Mul(k).Add(third.Mul(rsv))
			d = twoThirds.Mul(d).Add(third.Mul(k))
		}

		series[candles[i].Timestamp.Unix()] = KDJ{
			K: k,
			D: d,
			J: k.Mul(decimal.NewFromInt(3)).Sub(d.Mul(decimal.NewFromInt(2))),
		}
	}

	return series
}

// FloorToInterval snaps a timestamp down to the containing interval bucket,
// e.g. 14:37 with a 15-minute interval becomes 14:30.
func FloorToInterval(t time.Time, intervalMinutes int) time.Time {
	if intervalMinutes <= 1 {
		return t.Truncate(time.Minute)
	}
	offset := t.Minute() % intervalMinutes
	return t.Truncate(time.Minute).Add(-time.Duration(offset) * time.Minute)
}
