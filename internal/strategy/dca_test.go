package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chu0802/CryptoTrader/internal/model"
)

func testPeriodicConfig() PeriodicConfig {
	return PeriodicConfig{
		Budget:   decimal.NewFromInt(10000),
		Leverage: decimal.NewFromInt(1),
		Interval: 24 * time.Hour,
		Notional: decimal.NewFromInt(100),
	}
}

func TestDCAFirstCandleBuys(t *testing.T) {
	s := NewDCA(testPeriodicConfig(), nil)

	k := candle(50000, 50100, 49900, 50000, 0)
	txs, err := s.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, model.SideBuy, txs[0].Side)

	// amount = notional / close
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(100).Div(decimal.NewFromInt(50000))))
}

func TestDCAWaitsForInterval(t *testing.T) {
	s := NewDCA(testPeriodicConfig(), nil)

	k := candle(50000, 50100, 49900, 50000, 0)
	txs, _ := s.Decide(k.Timestamp, k)
	s.Commit(k.Timestamp, k, txs)

	early := candle(50000, 50100, 49900, 50000, 1)
	txs, err := s.Decide(early.Timestamp, early)
	assert.NoError(t, err)
	assert.Empty(t, txs, "one minute after the last buy is too soon")

	due := candle(51000, 51100, 50900, 51000, 24*60)
	txs, err = s.Decide(due.Timestamp, due)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestGoingShortSells(t *testing.T) {
	s := NewGoingShort(testPeriodicConfig(), nil)

	k := candle(50000, 50100, 49900, 50000, 0)
	txs, err := s.Decide(k.Timestamp, k)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, model.SideSell, txs[0].Side)
}
