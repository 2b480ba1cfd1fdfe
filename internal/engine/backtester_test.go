package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chu0802/CryptoTrader/internal/model"
	"github.com/chu0802/CryptoTrader/internal/strategy"
)

var runStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func candleAt(t time.Time, open, high, low, close float64) model.KLine {
	return model.KLine{
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Timestamp: t,
	}
}

func newTestDCA(budget, leverage, notional float64, interval time.Duration) *strategy.Periodic {
	return strategy.NewDCA(strategy.PeriodicConfig{
		Budget:   decimal.NewFromFloat(budget),
		Leverage: decimal.NewFromFloat(leverage),
		Interval: interval,
		Notional: decimal.NewFromFloat(notional),
	}, nil)
}

func committedTrades(snapshots []model.TransactionSnapshot) int {
	n := 0
	for _, s := range snapshots {
		if s.Transaction != nil {
			n++
		}
	}
	return n
}

func TestRunRecordsEveryStep(t *testing.T) {
	candles := []model.KLine{
		candleAt(runStart, 100, 105, 95, 100),
		candleAt(runStart.Add(time.Minute), 100, 115, 100, 110),
		candleAt(runStart.Add(2*time.Minute), 110, 125, 110, 120),
	}

	s := newTestDCA(10000, 1, 100, time.Minute)
	result, err := NewTester(candles, nil).Run(s)
	require.NoError(t, err)

	assert.False(t, result.Bankrupt)
	require.Len(t, result.ProfitHistory, 3)
	assert.Equal(t, 3, committedTrades(result.Snapshots))

	// The run ends with a mark-price snapshot, not a trade.
	last := result.Snapshots[len(result.Snapshots)-1]
	assert.Nil(t, last.Transaction)
	require.NotNil(t, last.CurrentPrice)
	assert.True(t, last.CurrentPrice.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, runStart.Add(2*time.Minute), last.Time)
}

func TestRunIsDeterministic(t *testing.T) {
	candles := []model.KLine{
		candleAt(runStart, 100, 105, 95, 100),
		candleAt(runStart.Add(time.Minute), 100, 115, 100, 110),
		candleAt(runStart.Add(2*time.Minute), 110, 125, 105, 108),
	}

	first, err := NewTester(candles, nil).Run(newTestDCA(10000, 2, 100, time.Minute))
	require.NoError(t, err)
	second, err := NewTester(candles, nil).Run(newTestDCA(10000, 2, 100, time.Minute))
	require.NoError(t, err)

	require.Equal(t, len(first.ProfitHistory), len(second.ProfitHistory))
	for i := range first.ProfitHistory {
		assert.True(t, first.ProfitHistory[i].Profit.Equal(second.ProfitHistory[i].Profit))
	}
	assert.True(t, first.LargestDrop.Equal(second.LargestDrop))
	assert.True(t, first.LargestGain.Equal(second.LargestGain))
}

func TestRunBankruptOnFirstCandle(t *testing.T) {
	s := newTestDCA(1000, 1, 100, time.Hour)
	s.ApplyFill(model.NewTransaction(model.SideBuy, decimal.NewFromInt(50000), decimal.NewFromInt(1), runStart.Add(-time.Minute)))

	candles := []model.KLine{candleAt(runStart, 50000, 50000, 100, 200)}
	result, err := NewTester(candles, nil).Run(s)
	require.NoError(t, err)

	assert.True(t, result.Bankrupt)
	assert.Equal(t, runStart, result.BankruptAt)
	assert.Empty(t, result.ProfitHistory)

	// Only the pre-existing fill is recorded; the bankrupting candle adds no
	// trade, just the closing snapshot at its low.
	assert.Equal(t, 1, committedTrades(result.Snapshots))
	last := result.Snapshots[len(result.Snapshots)-1]
	require.NotNil(t, last.CurrentPrice)
	assert.True(t, last.CurrentPrice.Equal(decimal.NewFromInt(100)))
}

func TestRunBankruptMidRun(t *testing.T) {
	candles := []model.KLine{
		candleAt(runStart, 100, 105, 95, 100),
		candleAt(runStart.Add(time.Minute), 100, 100, 1, 2),
		candleAt(runStart.Add(2*time.Minute), 2, 3, 1, 2),
	}

	s := newTestDCA(100, 10, 50, time.Minute)
	result, err := NewTester(candles, nil).Run(s)
	require.NoError(t, err)

	assert.True(t, result.Bankrupt)
	assert.Equal(t, runStart.Add(time.Minute), result.BankruptAt)
	require.Len(t, result.ProfitHistory, 1)
	assert.Equal(t, 1, committedTrades(result.Snapshots))

	// The closing snapshot marks the last solvent candle.
	last := result.Snapshots[len(result.Snapshots)-1]
	assert.Equal(t, runStart, last.Time)
}

func TestRunLargestDrop(t *testing.T) {
	s := newTestDCA(100000, 1, 100, time.Hour)
	s.ApplyFill(model.NewTransaction(model.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1), runStart.Add(-time.Minute)))

	candles := []model.KLine{
		candleAt(runStart, 100, 165, 100, 160),
		candleAt(runStart.Add(time.Minute), 160, 160, 105, 110),
	}
	result, err := NewTester(candles, nil).Run(s)
	require.NoError(t, err)

	assert.True(t, result.LargestDrop.Equal(decimal.NewFromInt(50)), result.LargestDrop.String())
	assert.True(t, result.LargestGain.IsZero(), result.LargestGain.String())
}

func TestRunLargestGain(t *testing.T) {
	s := newTestDCA(100000, 1, 100, time.Hour)
	s.ApplyFill(model.NewTransaction(model.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1), runStart.Add(-time.Minute)))

	candles := []model.KLine{
		candleAt(runStart, 100, 115, 100, 110),
		candleAt(runStart.Add(time.Minute), 110, 165, 110, 160),
	}
	result, err := NewTester(candles, nil).Run(s)
	require.NoError(t, err)

	assert.True(t, result.LargestGain.Equal(decimal.NewFromInt(50)), result.LargestGain.String())
	assert.True(t, result.LargestDrop.IsZero(), result.LargestDrop.String())
}
