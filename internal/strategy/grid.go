package strategy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// gridBand holds the fixed price band shared by the grid variants. Levels
// are spaced `interval` apart starting at `lowest`.
type gridBand struct {
	lowest   decimal.Decimal
	highest  decimal.Decimal
	interval decimal.Decimal
}

func (g gridBand) closestLowerBound(price decimal.Decimal) decimal.Decimal {
	return g.lowest.Add(price.Sub(g.lowest).Div(g.interval).Floor().Mul(g.interval))
}

func (g gridBand) closestUpperBound(price decimal.Decimal) decimal.Decimal {
	return g.closestLowerBound(price).Add(g.interval)
}

// Grid buys and sells at fixed levels inside [lowest, highest], draining
// every level the candle crosses. The drain order inside one candle follows
// the candle's direction: a rising candle buys first, a falling candle sells
// first. This approximates the intra-candle path from OHLC alone and must
// stay fixed for reproducible backtests.
type Grid struct {
	*Base
	gridBand
	amount    decimal.Decimal
	priceStep decimal.Decimal

	buyPrice    decimal.Decimal
	sellPrice   decimal.Decimal
	initialized bool
}

type GridConfig struct {
	Budget      decimal.Decimal
	Leverage    decimal.Decimal
	Highest     decimal.Decimal
	Lowest      decimal.Decimal
	NumInterval int64
	Amount      decimal.Decimal
	PriceStep   decimal.Decimal
}

func NewGrid(cfg GridConfig, logger *zap.Logger) *Grid {
	return &Grid{
		Base: newBase("grid_trading", cfg.Budget, cfg.Leverage, logger),
		gridBand: gridBand{
			lowest:   cfg.Lowest,
			highest:  cfg.Highest,
			interval: cfg.Highest.Sub(cfg.Lowest).Div(decimal.NewFromInt(cfg.NumInterval)).Floor(),
		},
		amount:    cfg.Amount,
		priceStep: cfg.PriceStep,
	}
}

func (g *Grid) Decide(t time.Time, k model.KLine) ([]model.Transaction, error) {
	if !k.Intersects(g.lowest, g.highest) {
		return nil, nil
	}

	if !g.initialized {
		// Center the band on the current close.
		g.buyPrice = g.closestLowerBound(k.Close)
		g.sellPrice = g.closestUpperBound(k.Close).Add(g.interval)
		g.initialized = true
	}

	var transactions []model.Transaction
	if k.Rising() {
		if k.Low.LessThanOrEqual(g.buyPrice) {
			transactions = append(transactions, g.buyProcess(t, k)...)
		}
		if k.High.GreaterThanOrEqual(g.sellPrice) {
			transactions = append(transactions, g.sellProcess(t, k)...)
		}
	} else {
		if k.High.GreaterThanOrEqual(g.sellPrice) {
			transactions = append(transactions, g.sellProcess(t, k)...)
		}
		if k.Low.LessThanOrEqual(g.buyPrice) {
			transactions = append(transactions, g.buyProcess(t, k)...)
		}
	}

	return transactions, nil
}

// buyProcess drains every level the candle low crossed, then recenters the
// sell trigger just above the post-drain level so one candle cannot drain
// both sides endlessly.
func (g *Grid) buyProcess(t time.Time, k model.KLine) []model.Transaction {
	var transactions []model.Transaction
	for k.Low.LessThanOrEqual(g.buyPrice) {
		transactions = append(transactions, model.NewTransaction(model.SideBuy, g.buyPrice, g.amount, t))
		g.buyPrice = g.closestLowerBound(g.buyPrice.Sub(g.priceStep))
	}
	g.sellPrice = g.closestUpperBound(g.buyPrice.Add(g.interval.Mul(decimal.NewFromInt(2))).Sub(g.priceStep))
	return transactions
}

func (g *Grid) sellProcess(t time.Time, k model.KLine) []model.Transaction {
	var transactions []model.Transaction
	for k.High.GreaterThanOrEqual(g.sellPrice) {
		transactions = append(transactions, model.NewTransaction(model.SideSell, g.sellPrice, g.amount, t))
		g.sellPrice = g.closestUpperBound(g.sellPrice.Add(g.priceStep))
	}
	g.buyPrice = g.closestLowerBound(g.sellPrice.Sub(g.interval.Mul(decimal.NewFromInt(2))).Add(g.priceStep))
	return transactions
}

// BuyPrice exposes the current buy trigger for reporting.
func (g *Grid) BuyPrice() decimal.Decimal { return g.buyPrice }

// SellPrice exposes the current sell trigger for reporting.
func (g *Grid) SellPrice() decimal.Decimal { return g.sellPrice }

type gridState struct {
	baseState
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Initialized bool            `json:"initialized"`
}

func (g *Grid) DumpState() ([]byte, error) {
	return json.Marshal(gridState{
		baseState:   g.dumpBase(),
		BuyPrice:    g.buyPrice,
		SellPrice:   g.sellPrice,
		Initialized: g.initialized,
	})
}

func (g *Grid) RestoreState(data []byte) error {
	var s gridState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	g.restoreBase(s.baseState)
	g.buyPrice = s.BuyPrice
	g.sellPrice = s.SellPrice
	g.initialized = s.Initialized
	return nil
}
