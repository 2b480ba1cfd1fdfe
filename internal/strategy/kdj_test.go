package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chu0802/CryptoTrader/internal/indicator"
	"github.com/chu0802/CryptoTrader/internal/model"
)

func kdjValue(k, d float64) indicator.KDJ {
	kd := decimal.NewFromFloat(k)
	dd := decimal.NewFromFloat(d)
	return indicator.KDJ{K: kd, D: dd, J: kd.Mul(decimal.NewFromInt(3)).Sub(dd.Mul(decimal.NewFromInt(2)))}
}

func seriesAt(values map[int]indicator.KDJ) indicator.Series {
	s := make(indicator.Series, len(values))
	for minute, v := range values {
		s[testStart.Add(time.Duration(minute)*time.Minute).Unix()] = v
	}
	return s
}

func testKDJGridConfig() KDJGridConfig {
	return KDJGridConfig{
		Budget:      decimal.NewFromInt(10000),
		Leverage:    decimal.NewFromInt(1),
		Highest:     decimal.NewFromInt(75000),
		Lowest:      decimal.NewFromInt(60000),
		NumInterval: 20,
		Amount:      decimal.NewFromFloat(0.003),
		ColdStart:   0,
		LowerBound:  decimal.NewFromInt(20),
		UpperBound:  decimal.NewFromInt(80),
		MinInterval: 5,
	}
}

func TestKDJGridBuySignal(t *testing.T) {
	// Oversold on both lookback candles with K turning upward.
	series := seriesAt(map[int]indicator.KDJ{
		0: kdjValue(10, 12),
		1: kdjValue(15, 13),
	})
	g := NewKDJGrid(testKDJGridConfig(), series, nil)

	k := candle(66750, 66900, 66700, 66800, 2)
	txs, err := g.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, model.SideBuy, txs[0].Side)
	assert.True(t, txs[0].Price.Equal(k.Open), "kdj grid trades at the open")
}

func TestKDJGridColdStart(t *testing.T) {
	cfg := testKDJGridConfig()
	cfg.ColdStart = 3
	series := seriesAt(map[int]indicator.KDJ{0: kdjValue(10, 12), 1: kdjValue(15, 13)})
	g := NewKDJGrid(cfg, series, nil)

	k := candle(66750, 66900, 66700, 66800, 2)
	txs, err := g.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Empty(t, txs, "no signal inside the cold-start window")
}

func TestKDJGridDataGap(t *testing.T) {
	g := NewKDJGrid(testKDJGridConfig(), indicator.Series{}, nil)

	k := candle(66750, 66900, 66700, 66800, 2)
	_, err := g.Decide(k.Timestamp, k)
	assert.True(t, errors.Is(err, ErrDataGap))
}

func TestKDJGridCooldownBlocksResignal(t *testing.T) {
	series := seriesAt(map[int]indicator.KDJ{
		0: kdjValue(10, 12),
		1: kdjValue(15, 13),
		2: kdjValue(16, 13),
		3: kdjValue(17, 14),
	})
	g := NewKDJGrid(testKDJGridConfig(), series, nil)

	first := candle(66750, 66900, 66700, 66800, 2)
	txs, err := g.Decide(first.Timestamp, first)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)

	// Still oversold one candle later, but the cooldown has not elapsed.
	second := candle(66000, 66100, 65900, 66050, 3)
	txs, err = g.Decide(second.Timestamp, second)
	assert.NoError(t, err)
	assert.Empty(t, txs)
}

func testKDJTimeConfig() KDJTimeConfig {
	return KDJTimeConfig{
		Budget:    decimal.NewFromInt(100000),
		Leverage:  decimal.NewFromInt(1),
		Amount:    decimal.NewFromInt(1),
		Low:       decimal.NewFromInt(20),
		High:      decimal.NewFromInt(80),
		MinRatio:  decimal.NewFromFloat(0.02),
		Intervals: []int{1},
		MaxRun:    2,
	}
}

func TestKDJTimeBuyRequiresAllIntervals(t *testing.T) {
	cfg := testKDJTimeConfig()
	cfg.Intervals = []int{1, 5}

	oversold := seriesAt(map[int]indicator.KDJ{0: kdjValue(15, 10)})
	neutral := indicator.Series{testStart.Unix(): kdjValue(50, 50)}

	s := NewKDJTime(cfg, map[int]indicator.Series{1: oversold, 5: neutral}, nil)

	k := candle(50000, 50100, 49900, 50000, 0)
	txs, err := s.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Empty(t, txs, "every interval must agree before signaling")
}

func TestKDJTimeBuyAndCooldown(t *testing.T) {
	series := seriesAt(map[int]indicator.KDJ{
		0: kdjValue(15, 10),
		1: kdjValue(14, 11),
	})
	s := NewKDJTime(testKDJTimeConfig(), map[int]indicator.Series{1: series}, nil)

	k := candle(50000, 50100, 49900, 50000, 0)
	txs, err := s.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, model.SideBuy, txs[0].Side)
	s.Commit(k.Timestamp, k, txs)

	// Price has not moved by min_ratio, so the repeat signal is suppressed.
	next := candle(50000, 50100, 49900, 49900, 1)
	txs, err = s.Decide(next.Timestamp, next)
	assert.NoError(t, err)
	assert.Empty(t, txs)
}

func TestKDJTimeForcedUnwind(t *testing.T) {
	series := seriesAt(map[int]indicator.KDJ{
		0: kdjValue(15, 10),
		1: kdjValue(14, 11),
		2: kdjValue(50, 50),
	})
	s := NewKDJTime(testKDJTimeConfig(), map[int]indicator.Series{1: series}, nil)

	first := candle(50000, 50100, 49900, 50000, 0)
	txs, _ := s.Decide(first.Timestamp, first)
	s.Commit(first.Timestamp, first, txs)

	// Second buy 3% lower fills the run limit of two.
	second := candle(48500, 48600, 48400, 48500, 1)
	txs, err := s.Decide(second.Timestamp, second)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	s.Commit(second.Timestamp, second, txs)

	// Price rallies past the last buy by more than min_ratio: the whole
	// position is unwound.
	third := candle(49600, 49700, 49500, 49600, 2)
	txs, err = s.Decide(third.Timestamp, third)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, model.SideSell, txs[0].Side)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(2)), "unwind = %s", txs[0].Amount)
}
