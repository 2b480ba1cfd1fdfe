package strategy

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// Periodic accumulates a fixed notional at a fixed cadence: one transaction
// when nothing has been recorded yet, then one whenever the configured
// interval has elapsed since the last recorded transaction. The short flavor
// sells instead of buying.
type Periodic struct {
	*Base
	side     model.Side
	interval time.Duration
	notional decimal.Decimal
}

type PeriodicConfig struct {
	Budget   decimal.Decimal
	Leverage decimal.Decimal
	Interval time.Duration
	Notional decimal.Decimal
}

func NewDCA(cfg PeriodicConfig, logger *zap.Logger) *Periodic {
	return newPeriodic("dca", model.SideBuy, cfg, logger)
}

func NewGoingShort(cfg PeriodicConfig, logger *zap.Logger) *Periodic {
	return newPeriodic("going_short", model.SideSell, cfg, logger)
}

func newPeriodic(name string, side model.Side, cfg PeriodicConfig, logger *zap.Logger) *Periodic {
	return &Periodic{
		Base:     newBase(name, cfg.Budget, cfg.Leverage, logger),
		side:     side,
		interval: cfg.Interval,
		notional: cfg.Notional,
	}
}

func (p *Periodic) Decide(t time.Time, k model.KLine) ([]model.Transaction, error) {
	amount := p.notional.Div(k.Close)

	last := p.LastSnapshot()
	if last == nil || t.Sub(last.Time) >= p.interval {
		return []model.Transaction{model.NewTransaction(p.side, k.Close, amount, t)}, nil
	}
	return nil, nil
}
