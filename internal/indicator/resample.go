package indicator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// Resample folds 1-minute candles into wider buckets (3m, 5m, 15m, ...),
// keyed by the bucket's opening minute. Input order does not matter; output
// is time ordered.
func Resample(candles []model.KLine, intervalMinutes int) []model.KLine {
	if intervalMinutes <= 1 {
		out := make([]model.KLine, len(candles))
		copy(out, candles)
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
		return out
	}

	buckets := make(map[int64]*model.KLine)
	opens := make(map[int64]time.Time)
	closes := make(map[int64]time.Time)

	for _, c := range candles {
		window := FloorToInterval(c.Timestamp, intervalMinutes)
		key := window.Unix()

		agg, ok := buckets[key]
		if !ok {
			k := c
			k.Timestamp = window
			buckets[key] = &k
			opens[key] = c.Timestamp
			closes[key] = c.Timestamp
			continue
		}

		agg.High = decimal.Max(agg.High, c.High)
		agg.Low = decimal.Min(agg.Low, c.Low)
		if c.Timestamp.Before(opens[key]) {
			agg.Open = c.Open
			opens[key] = c.Timestamp
		}
		if c.Timestamp.After(closes[key]) {
			agg.Close = c.Close
			closes[key] = c.Timestamp
		}
	}

	out := make([]model.KLine, 0, len(buckets))
	for _, k := range buckets {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
