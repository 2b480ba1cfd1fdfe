package strategy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// ErrDataGap reports a missing indicator value at a timestamp a strategy
// needs. No interpolation is performed; the run stops.
var ErrDataGap = errors.New("missing indicator value at required timestamp")

// Strategy is a rule-based decision unit. Decide is a pure function of the
// current candle and the strategy's own state; Commit applies leverage and
// the budget guard before folding each transaction into the ledger.
type Strategy interface {
	Name() string

	// Decide converts the current candle into zero or more transaction
	// intents without touching the ledger.
	Decide(t time.Time, k model.KLine) ([]model.Transaction, error)

	// Commit applies leverage to each intent in order, re-checks the budget
	// against the candle close, and records one snapshot per committed
	// transaction. It stops the whole batch on the first breach and returns
	// the transactions actually committed.
	Commit(t time.Time, k model.KLine, transactions []model.Transaction) []model.Transaction

	// ApplyFill records one exchange-confirmed transaction (live trading).
	// The amount must already carry leverage.
	ApplyFill(tx model.Transaction)

	// FinalSnapshot appends the closing snapshot of a run at the given mark
	// price.
	FinalSnapshot(t time.Time, price decimal.Decimal)

	// CheckBudget reports whether the remaining budget at the given mark
	// price is still positive.
	CheckBudget(price decimal.Decimal) bool

	Flow() model.TransactionFlow
	Snapshots() []model.TransactionSnapshot
	Leverage() decimal.Decimal

	// DumpState / RestoreState serialize the strategy's full mutable state
	// for crash recovery; a restored strategy reproduces identical decisions
	// on identical future candles.
	DumpState() ([]byte, error)
	RestoreState(data []byte) error
}
