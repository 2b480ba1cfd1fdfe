package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// ErrDataGap reports a missing candle inside the requested range. No
// interpolation is performed; loading fails instead.
var ErrDataGap = errors.New("missing candle at required timestamp")

// BuildSeries assembles the contiguous 1-minute candle sequence covering
// [start, end] from a timestamp-keyed store. A zero end extends the range to
// the latest candle in the store.
func BuildSeries(prices map[int64]model.KLine, start, end time.Time) ([]model.KLine, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("empty candle store: %w", ErrDataGap)
	}

	if end.IsZero() {
		var latest int64
		for ts := range prices {
			if ts > latest {
				latest = ts
			}
		}
		end = time.Unix(latest, 0).UTC()
	}

	series := make([]model.KLine, 0, end.Sub(start)/model.KLineStep+1)
	for t := start; !t.After(end); t = t.Add(model.KLineStep) {
		k, ok := prices[t.Unix()]
		if !ok {
			return nil, fmt.Errorf("candle at %s: %w", t, ErrDataGap)
		}
		k.Timestamp = t
		series = append(series, k)
	}

	return series, nil
}
