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

// KDJTime signals on oscillator thresholds across several candle intervals
// at once: every configured interval's K and D must be simultaneously past
// the bound for a transaction to fire. A signed run counter caps consecutive
// same-direction entries; past the cap the position is force-unwound once
// price has moved favorably by the minimum ratio.
type KDJTime struct {
	*Base
	amount    decimal.Decimal
	low       decimal.Decimal
	high      decimal.Decimal
	minRatio  decimal.Decimal
	intervals []int
	series    map[int]indicator.Series
	maxRun    int

	weight        int
	prevAction    model.Side
	prevBuyPrice  decimal.Decimal
	prevSellPrice decimal.Decimal
}

type KDJTimeConfig struct {
	Budget    decimal.Decimal
	Leverage  decimal.Decimal
	Amount    decimal.Decimal
	Low       decimal.Decimal
	High      decimal.Decimal
	MinRatio  decimal.Decimal
	Intervals []int
	MaxRun    int
}

func NewKDJTime(cfg KDJTimeConfig, series map[int]indicator.Series, logger *zap.Logger) *KDJTime {
	intervals := cfg.Intervals
	if len(intervals) == 0 {
		intervals = []int{1}
	}
	return &KDJTime{
		Base:      newBase("kdj_time", cfg.Budget, cfg.Leverage, logger),
		amount:    cfg.Amount,
		low:       cfg.Low,
		high:      cfg.High,
		minRatio:  cfg.MinRatio,
		intervals: intervals,
		series:    series,
		maxRun:    cfg.MaxRun,
	}
}

func (s *KDJTime) Decide(t time.Time, k model.KLine) ([]model.Transaction, error) {
	kdjs := make([]indicator.KDJ, 0, len(s.intervals))
	for _, interval := range s.intervals {
		at := indicator.FloorToInterval(t, interval)
		v, ok := s.series[interval].At(at)
		if !ok {
			return nil, fmt.Errorf("kdj %dm at %s: %w", interval, at, ErrDataGap)
		}
		kdjs = append(kdjs, v)
	}

	one := decimal.NewFromInt(1)

	// Forced unwind once the same-direction run limit is exceeded and price
	// has moved favorably.
	if s.weight >= s.maxRun && k.Close.GreaterThan(s.prevBuyPrice.Mul(one.Add(s.minRatio))) {
		s.weight = 0
		s.prevAction = model.SideSell
		s.prevBuyPrice = decimal.Zero
		s.prevSellPrice = k.Close
		return []model.Transaction{
			model.NewTransaction(model.SideSell, k.Close, s.unwindAmount(), t),
		}, nil
	}
	if s.weight <= -s.maxRun && k.Close.LessThan(s.prevSellPrice.Mul(one.Sub(s.minRatio))) {
		s.weight = 0
		s.prevAction = model.SideBuy
		s.prevBuyPrice = k.Close
		s.prevSellPrice = decimal.Zero
		return []model.Transaction{
			model.NewTransaction(model.SideBuy, k.Close, s.unwindAmount(), t),
		}, nil
	}

	switch {
	case s.buyCriteria(kdjs):
		if (s.prevAction == model.SideBuy && s.diffRatio(s.prevBuyPrice, k.Close).LessThan(s.minRatio)) ||
			s.weight >= s.maxRun {
			return nil, nil
		}
		s.prevAction = model.SideBuy
		s.prevBuyPrice = k.Close
		s.weight++
		return []model.Transaction{model.NewTransaction(model.SideBuy, k.Close, s.amount, t)}, nil

	case s.sellCriteria(kdjs):
		if (s.prevAction == model.SideSell && s.diffRatio(s.prevSellPrice, k.Close).LessThan(s.minRatio)) ||
			s.weight <= -s.maxRun {
			return nil, nil
		}
		s.prevAction = model.SideSell
		s.prevSellPrice = k.Close
		s.weight--
		return []model.Transaction{model.NewTransaction(model.SideSell, k.Close, s.amount, t)}, nil
	}

	return nil, nil
}

// unwindAmount is the open position expressed pre-leverage; Commit multiplies
// the leverage back in.
func (s *KDJTime) unwindAmount() decimal.Decimal {
	return s.Flow().Amount.Div(s.Leverage()).Abs()
}

func (s *KDJTime) buyCriteria(kdjs []indicator.KDJ) bool {
	for _, kdj := range kdjs {
		if !(kdj.K.LessThan(s.low) && kdj.D.LessThan(s.low) && kdj.K.GreaterThanOrEqual(kdj.D)) {
			return false
		}
	}
	return true
}

func (s *KDJTime) sellCriteria(kdjs []indicator.KDJ) bool {
	for _, kdj := range kdjs {
		if !(kdj.K.GreaterThan(s.high) && kdj.D.GreaterThan(s.high) && kdj.K.LessThanOrEqual(kdj.D)) {
			return false
		}
	}
	return true
}

func (s *KDJTime) diffRatio(prev, current decimal.Decimal) decimal.Decimal {
	return prev.Sub(current).Abs().Div(prev)
}

type kdjTimeState struct {
	baseState
	Weight        int             `json:"weight"`
	PrevAction    model.Side      `json:"prev_action"`
	PrevBuyPrice  decimal.Decimal `json:"prev_buy_price"`
	PrevSellPrice decimal.Decimal `json:"prev_sell_price"`
}

func (s *KDJTime) DumpState() ([]byte, error) {
	return json.Marshal(kdjTimeState{
		baseState:     s.dumpBase(),
		Weight:        s.weight,
		PrevAction:    s.prevAction,
		PrevBuyPrice:  s.prevBuyPrice,
		PrevSellPrice: s.prevSellPrice,
	})
}

func (s *KDJTime) RestoreState(data []byte) error {
	var st kdjTimeState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	s.restoreBase(st.baseState)
	s.weight = st.Weight
	s.prevAction = st.PrevAction
	s.prevBuyPrice = st.PrevBuyPrice
	s.prevSellPrice = st.PrevSellPrice
	return nil
}
