package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/indicator"
	"github.com/chu0802/CryptoTrader/internal/model"
)

// KDJGrid gates grid entries on the previous two oscillator values: both K
// and D must sit past the threshold on both candles, with the K turning
// back, and a per-side cooldown must have elapsed. Unlike the plain grid it
// trades at the candle open and recenters with a relative step.
type KDJGrid struct {
	*Base
	gridBand
	amount      decimal.Decimal
	coldStart   int
	lowerBound  decimal.Decimal
	upperBound  decimal.Decimal
	minCooldown int

	kdj indicator.Series

	counter      int
	buyCooldown  int
	sellCooldown int
	buyPrice     decimal.Decimal
	sellPrice    decimal.Decimal
	initialized  bool
}

type KDJGridConfig struct {
	Budget      decimal.Decimal
	Leverage    decimal.Decimal
	Highest     decimal.Decimal
	Lowest      decimal.Decimal
	NumInterval int64
	Amount      decimal.Decimal
	ColdStart   int
	LowerBound  decimal.Decimal
	UpperBound  decimal.Decimal
	MinInterval int
}

var (
	stepDown = decimal.NewFromFloat(0.999)
	stepUp   = decimal.NewFromFloat(1.001)
)

func NewKDJGrid(cfg KDJGridConfig, kdj indicator.Series, logger *zap.Logger) *KDJGrid {
	return &KDJGrid{
		Base: newBase("kdj_grid_trading", cfg.Budget, cfg.Leverage, logger),
		gridBand: gridBand{
			lowest:   cfg.Lowest,
			highest:  cfg.Highest,
			interval: cfg.Highest.Sub(cfg.Lowest).Div(decimal.NewFromInt(cfg.NumInterval)).Floor(),
		},
		amount:       cfg.Amount,
		coldStart:    cfg.ColdStart,
		lowerBound:   cfg.LowerBound,
		upperBound:   cfg.UpperBound,
		minCooldown:  cfg.MinInterval,
		kdj:          kdj,
		buyCooldown:  cfg.MinInterval,
		sellCooldown: cfg.MinInterval,
	}
}

func (g *KDJGrid) Decide(t time.Time, k model.KLine) ([]model.Transaction, error) {
	defer func() {
		g.counter++
		g.buyCooldown++
		g.sellCooldown++
	}()

	if g.counter < g.coldStart || !k.Intersects(g.lowest, g.highest) {
		return nil, nil
	}

	prev, ok := g.kdj.At(t.Add(-model.KLineStep))
	if !ok {
		return nil, fmt.Errorf("kdj at %s: %w", t.Add(-model.KLineStep), ErrDataGap)
	}
	pprev, ok := g.kdj.At(t.Add(-2 * model.KLineStep))
	if !ok {
		return nil, fmt.Errorf("kdj at %s: %w", t.Add(-2*model.KLineStep), ErrDataGap)
	}

	var transactions []model.Transaction
	if k.Rising() {
		if g.buyCriteria(k, prev, pprev) {
			transactions = append(transactions, g.buyProcess(t, k)...)
			g.buyCooldown = 0
		}
		if g.sellCriteria(k, prev, pprev) {
			transactions = append(transactions, g.sellProcess(t, k)...)
			g.sellCooldown = 0
		}
	} else {
		if g.sellCriteria(k, prev, pprev) {
			transactions = append(transactions, g.sellProcess(t, k)...)
			g.sellCooldown = 0
		}
		if g.buyCriteria(k, prev, pprev) {
			transactions = append(transactions, g.buyProcess(t, k)...)
			g.buyCooldown = 0
		}
	}

	return transactions, nil
}

func (g *KDJGrid) buyCriteria(k model.KLine, prev, pprev indicator.KDJ) bool {
	met := prev.K.LessThan(g.lowerBound) &&
		prev.D.LessThan(g.lowerBound) &&
		pprev.K.LessThan(g.lowerBound) &&
		pprev.D.LessThan(g.lowerBound) &&
		prev.K.GreaterThan(pprev.K) &&
		g.buyCooldown >= g.minCooldown

	if met && !g.initialized {
		g.initializePrices(k.Open, model.SideBuy)
	}
	return met && k.Low.LessThanOrEqual(g.buyPrice)
}

func (g *KDJGrid) sellCriteria(k model.KLine, prev, pprev indicator.KDJ) bool {
	met := prev.K.GreaterThan(g.upperBound) &&
		prev.D.GreaterThan(g.upperBound) &&
		pprev.K.GreaterThan(g.upperBound) &&
		pprev.D.GreaterThan(g.upperBound) &&
		prev.K.LessThan(pprev.K) &&
		g.sellCooldown >= g.minCooldown

	if met && !g.initialized {
		g.initializePrices(k.Open, model.SideSell)
	}
	return met && k.High.GreaterThanOrEqual(g.sellPrice)
}

func (g *KDJGrid) initializePrices(price decimal.Decimal, base model.Side) {
	if base == model.SideBuy {
		g.buyPrice = g.closestLowerBound(price)
		g.sellPrice = g.buyPrice.Add(g.interval)
	} else {
		g.sellPrice = g.closestUpperBound(price)
		g.buyPrice = g.sellPrice.Sub(g.interval)
	}
	g.initialized = true
}

func (g *KDJGrid) buyProcess(t time.Time, k model.KLine) []model.Transaction {
	var transactions []model.Transaction
	if k.Open.LessThanOrEqual(g.buyPrice) {
		transactions = append(transactions, model.NewTransaction(model.SideBuy, k.Open, g.amount, t))
	}
	g.buyPrice = g.closestLowerBound(k.Open.Mul(stepDown))
	g.sellPrice = g.buyPrice.Add(g.interval)
	return transactions
}

func (g *KDJGrid) sellProcess(t time.Time, k model.KLine) []model.Transaction {
	var transactions []model.Transaction
	if k.Open.GreaterThanOrEqual(g.sellPrice) {
		transactions = append(transactions, model.NewTransaction(model.SideSell, k.Open, g.amount, t))
	}
	g.sellPrice = g.closestUpperBound(k.Open.Mul(stepUp))
	g.buyPrice = g.sellPrice.Sub(g.interval)
	return transactions
}

type kdjGridState struct {
	baseState
	Counter      int             `json:"counter"`
	BuyCooldown  int             `json:"buy_cooldown"`
	SellCooldown int             `json:"sell_cooldown"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Initialized  bool            `json:"initialized"`
}

func (g *KDJGrid) DumpState() ([]byte, error) {
	return json.Marshal(kdjGridState{
		baseState:    g.dumpBase(),
		Counter:      g.counter,
		BuyCooldown:  g.buyCooldown,
		SellCooldown: g.sellCooldown,
		BuyPrice:     g.buyPrice,
		SellPrice:    g.sellPrice,
		Initialized:  g.initialized,
	})
}

func (g *KDJGrid) RestoreState(data []byte) error {
	var s kdjGridState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	g.restoreBase(s.baseState)
	g.counter = s.Counter
	g.buyCooldown = s.BuyCooldown
	g.sellCooldown = s.SellCooldown
	g.buyPrice = s.BuyPrice
	g.sellPrice = s.SellPrice
	g.initialized = s.Initialized
	return nil
}
