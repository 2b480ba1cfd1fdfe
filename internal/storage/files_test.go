package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chu0802/CryptoTrader/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	root := t.TempDir()
	return NewFileStore(root+"/data", root+"/results", root+"/status", nil)
}

func TestCandleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	candles := map[int64]model.KLine{
		ts.Unix(): {
			Open:  decimal.NewFromInt(100),
			High:  decimal.NewFromInt(105),
			Low:   decimal.NewFromInt(95),
			Close: decimal.NewFromInt(102),
		},
	}
	require.NoError(t, store.SaveCandles("BTCUSDT", candles))

	loaded, err := store.LoadCandles("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	k := loaded[ts.Unix()]
	assert.Equal(t, ts, k.Timestamp)
	assert.True(t, k.Close.Equal(decimal.NewFromInt(102)))
}

func TestSaveCandlesMergesExisting(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	candle := model.KLine{
		Open:  decimal.NewFromInt(100),
		High:  decimal.NewFromInt(101),
		Low:   decimal.NewFromInt(99),
		Close: decimal.NewFromInt(100),
	}

	require.NoError(t, store.SaveCandles("btcusdt", map[int64]model.KLine{base.Unix(): candle}))
	require.NoError(t, store.SaveCandles("btcusdt", map[int64]model.KLine{base.Add(time.Minute).Unix(): candle}))

	loaded, err := store.LoadCandles("btcusdt")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestActionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	missing, err := store.LoadAction("optimal", "btcusdt")
	require.NoError(t, err)
	assert.Nil(t, missing)

	decisionTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := model.NewTransaction(model.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1), decisionTime)
	action := &model.Action{
		DecisionTime: decisionTime,
		Order: &model.Order{
			OrderTime: decisionTime,
			OrderID:   42,
			Status:    model.OrderStatusNew,
			Expected:  &tx,
		},
	}
	require.NoError(t, store.SaveAction("optimal", "btcusdt", action))

	loaded, err := store.LoadAction("optimal", "btcusdt")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.HasOrder())
	assert.Equal(t, int64(42), loaded.Order.OrderID)
	assert.Equal(t, model.OrderStatusNew, loaded.Order.Status)
	assert.True(t, loaded.Order.Expected.Price.Equal(decimal.NewFromInt(100)))
}

func TestStrategyStateRoundTrip(t *testing.T) {
	store := newTestStore(t)

	missing, err := store.LoadStrategyState("grid_trading", "ethusdt")
	require.NoError(t, err)
	assert.Nil(t, missing)

	state := []byte(`{"buy_price":"100"}`)
	require.NoError(t, store.SaveStrategyState("grid_trading", "ethusdt", state))

	loaded, err := store.LoadStrategyState("grid_trading", "ethusdt")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestWriteResults(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	snapshots := []model.TransactionSnapshot{{Time: ts}}
	history := []model.ProfitPoint{{Time: ts, Profit: decimal.NewFromInt(5)}}
	require.NoError(t, store.WriteResults("backtest", "grid_trading", "btcusdt", snapshots, history))

	// Overwriting with the trader's result.json only is fine too.
	require.NoError(t, store.WriteResults("trader", "grid_trading", "btcusdt", snapshots, nil))
}
