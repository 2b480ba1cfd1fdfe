package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// KLineStep is the fixed spacing of the 1-minute candle feed.
const KLineStep = time.Minute

// KLine (Candle) 代表一根K线
type KLine struct {
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Timestamp time.Time       `json:"-"`
}

// Intersects reports whether the candle's [low, high] range overlaps
// [lowest, highest].
func (k KLine) Intersects(lowest, highest decimal.Decimal) bool {
	return !decimal.Max(k.Low, lowest).GreaterThan(decimal.Min(k.High, highest))
}

// Rising reports whether the candle closed at or above its open.
func (k KLine) Rising() bool {
	return k.Close.GreaterThanOrEqual(k.Open)
}
