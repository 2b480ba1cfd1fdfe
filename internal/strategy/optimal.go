package strategy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// Optimal buys local minima and sells local maxima of a rolling close-price
// window, with a minimum move ratio between same-direction entries and a
// hard cap on the open amount. After a full run of same-direction entries it
// unwinds the whole position once price crosses the average cost.
type Optimal struct {
	*Base
	windowSize int
	minRatio   decimal.Decimal
	amount     decimal.Decimal
	maxAmount  decimal.Decimal
	maxRun     int

	window        []decimal.Decimal
	buyRun        int
	sellRun       int
	prevAction    model.Side
	prevBuyPrice  decimal.Decimal
	prevSellPrice decimal.Decimal
}

type OptimalConfig struct {
	Budget     decimal.Decimal
	Leverage   decimal.Decimal
	WindowSize int
	Amount     decimal.Decimal
	MinRatio   decimal.Decimal
	MaxRun     int
}

func NewOptimal(cfg OptimalConfig, logger *zap.Logger) *Optimal {
	return &Optimal{
		Base:       newBase("optimal", cfg.Budget, cfg.Leverage, logger),
		windowSize: cfg.WindowSize,
		minRatio:   cfg.MinRatio,
		amount:     cfg.Amount,
		maxAmount:  cfg.Amount.Mul(decimal.NewFromInt(int64(cfg.MaxRun))),
		maxRun:     cfg.MaxRun,
	}
}

func (s *Optimal) Decide(t time.Time, k model.KLine) ([]model.Transaction, error) {
	s.pushPrice(k.Close)
	openAmount := s.Flow().Amount.Div(s.Leverage())

	switch {
	case s.buyRun >= s.maxRun && k.Close.GreaterThan(s.Flow().AveragePrice):
		s.resetRuns(model.SideSell, k.Close)
		return []model.Transaction{
			model.NewTransaction(model.SideSell, k.Close, openAmount.Abs(), t),
		}, nil

	case s.sellRun >= s.maxRun && k.Close.LessThan(s.Flow().AveragePrice):
		s.resetRuns(model.SideBuy, k.Close)
		return []model.Transaction{
			model.NewTransaction(model.SideBuy, k.Close, openAmount.Abs(), t),
		}, nil

	case s.isWindowMin(k.Close) && s.allowedBuy(k.Close):
		if openAmount.Add(s.amount).Abs().GreaterThan(s.maxAmount) {
			return nil, nil
		}
		s.prevAction = model.SideBuy
		s.prevBuyPrice = k.Close
		s.buyRun++
		s.sellRun = 0
		return []model.Transaction{model.NewTransaction(model.SideBuy, k.Close, s.amount, t)}, nil

	case s.isWindowMax(k.Close) && s.allowedSell(k.Close):
		if openAmount.Sub(s.amount).Abs().GreaterThan(s.maxAmount) {
			return nil, nil
		}
		s.prevAction = model.SideSell
		s.prevSellPrice = k.Close
		s.sellRun++
		s.buyRun = 0
		return []model.Transaction{model.NewTransaction(model.SideSell, k.Close, s.amount, t)}, nil
	}

	return nil, nil
}

func (s *Optimal) pushPrice(price decimal.Decimal) {
	if len(s.window) >= s.windowSize {
		s.window = s.window[1:]
	}
	s.window = append(s.window, price)
}

func (s *Optimal) isWindowMin(price decimal.Decimal) bool {
	for _, p := range s.window {
		if price.GreaterThan(p) {
			return false
		}
	}
	return true
}

func (s *Optimal) isWindowMax(price decimal.Decimal) bool {
	for _, p := range s.window {
		if price.LessThan(p) {
			return false
		}
	}
	return true
}

func (s *Optimal) allowedBuy(price decimal.Decimal) bool {
	switch s.prevAction {
	case model.SideBuy:
		return s.prevBuyPrice.Sub(price).Div(s.prevBuyPrice).GreaterThanOrEqual(s.minRatio)
	default:
		return true
	}
}

func (s *Optimal) allowedSell(price decimal.Decimal) bool {
	switch s.prevAction {
	case model.SideSell:
		return price.Sub(s.prevSellPrice).Div(s.prevSellPrice).GreaterThanOrEqual(s.minRatio)
	default:
		return true
	}
}

func (s *Optimal) resetRuns(action model.Side, price decimal.Decimal) {
	s.buyRun = 0
	s.sellRun = 0
	s.prevAction = action
	s.window = []decimal.Decimal{price}
	if action == model.SideBuy {
		s.prevBuyPrice = price
		s.prevSellPrice = decimal.Zero
	} else {
		s.prevSellPrice = price
		s.prevBuyPrice = decimal.Zero
	}
}

type optimalState struct {
	baseState
	Window        []decimal.Decimal `json:"window"`
	BuyRun        int               `json:"buy_run"`
	SellRun       int               `json:"sell_run"`
	PrevAction    model.Side        `json:"prev_action"`
	PrevBuyPrice  decimal.Decimal   `json:"prev_buy_price"`
	PrevSellPrice decimal.Decimal   `json:"prev_sell_price"`
}

func (s *Optimal) DumpState() ([]byte, error) {
	return json.Marshal(optimalState{
		baseState:     s.dumpBase(),
		Window:        s.window,
		BuyRun:        s.buyRun,
		SellRun:       s.sellRun,
		PrevAction:    s.prevAction,
		PrevBuyPrice:  s.prevBuyPrice,
		PrevSellPrice: s.prevSellPrice,
	})
}

func (s *Optimal) RestoreState(data []byte) error {
	var st optimalState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	s.restoreBase(st.baseState)
	s.window = st.Window
	s.buyRun = st.BuyRun
	s.sellRun = st.SellRun
	s.prevAction = st.PrevAction
	s.prevBuyPrice = st.PrevBuyPrice
	s.prevSellPrice = st.PrevSellPrice
	return nil
}
