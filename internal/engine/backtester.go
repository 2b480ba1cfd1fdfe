package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/infrastructure"
	"github.com/chu0802/CryptoTrader/internal/model"
	"github.com/chu0802/CryptoTrader/internal/strategy"
)

// DefaultProfitWindow is the extremum-tracker size used for the drawdown and
// rally statistics.
const DefaultProfitWindow = 1000

// Result is everything a finished (or bankrupted) backtest produced.
type Result struct {
	Snapshots     []model.TransactionSnapshot `json:"snapshots"`
	ProfitHistory []model.ProfitPoint         `json:"profit_history"`
	LargestDrop   decimal.Decimal             `json:"largest_drop"`
	LargestGain   decimal.Decimal             `json:"largest_gain"`
	Bankrupt      bool                        `json:"bankrupt"`
	BankruptAt    time.Time                   `json:"bankrupt_at,omitempty"`
}

// Tester drives a candle series through one strategy, strictly in time
// order. Re-running with identical inputs reproduces identical output; there
// is no hidden randomness.
type Tester struct {
	candles    []model.KLine
	windowSize int
	logger     *zap.Logger
}

func NewTester(candles []model.KLine, logger *zap.Logger) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{
		candles:    candles,
		windowSize: DefaultProfitWindow,
		logger:     logger,
	}
}

// Run executes the backtest. Insolvency at the candle's low or high stops
// the run before that candle is handed to the strategy, so a bankrupting
// candle records no trade; it is a terminal outcome, not an error.
func (t *Tester) Run(s strategy.Strategy) (*Result, error) {
	result := &Result{}
	window := model.NewTimeValueWindow(t.windowSize)
	stats := newProfitStats()

	var lastTime time.Time
	var lastClose decimal.Decimal

	for _, k := range t.candles {
		// Intrabar risk: the position must survive both candle extremes.
		if !s.CheckBudget(k.Low) || !s.CheckBudget(k.High) {
			result.Bankrupt = true
			result.BankruptAt = k.Timestamp
			t.logger.Info("bankrupt, stopping backtest",
				zap.String("strategy", s.Name()),
				zap.Time("time", k.Timestamp),
			)
			break
		}

		transactions, err := s.Decide(k.Timestamp, k)
		if err != nil {
			return nil, err
		}
		s.Commit(k.Timestamp, k, transactions)
		infrastructure.CandlesProcessed.WithLabelValues(s.Name()).Inc()

		profit := s.Flow().NetProfit(k.Close)
		result.ProfitHistory = append(result.ProfitHistory, model.ProfitPoint{
			Time:         k.Timestamp,
			Price:        k.Close,
			AveragePrice: s.Flow().AveragePrice,
			Profit:       profit,
		})

		window.Append(model.TimeValue{Time: k.Timestamp, Value: profit})
		stats.observe(window)

		lastTime = k.Timestamp
		lastClose = k.Close
	}

	if !lastTime.IsZero() || result.Bankrupt {
		if lastTime.IsZero() {
			// Bankrupt on the very first candle: close out at its low.
			lastTime = result.BankruptAt
			lastClose = t.candles[0].Low
		}
		s.FinalSnapshot(lastTime, lastClose)
	}

	result.Snapshots = s.Snapshots()
	result.LargestDrop = stats.largestDrop
	result.LargestGain = stats.largestGain
	return result, nil
}

// profitStats tracks the all-time largest profit drop and gain seen through
// the sliding window.
type profitStats struct {
	largestDrop decimal.Decimal
	largestGain decimal.Decimal
}

func newProfitStats() *profitStats {
	return &profitStats{}
}

// observe classifies the current window spread: a max strictly before the
// min is a drop, a max at or after the min is a gain.
func (p *profitStats) observe(window *model.TimeValueWindow) {
	mn, ok := window.Min()
	if !ok {
		return
	}
	mx, _ := window.Max()

	spread := mx.Value.Sub(mn.Value)
	if mx.Time.Before(mn.Time) {
		p.largestDrop = decimal.Max(p.largestDrop, spread)
	} else {
		p.largestGain = decimal.Max(p.largestGain, spread)
	}
}
