package strategy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/infrastructure"
	"github.com/chu0802/CryptoTrader/internal/model"
)

// Base carries the state and wrapper behavior shared by every strategy
// variant: the ledger, the snapshot log, the budget guard and leverage.
type Base struct {
	name           string
	originalBudget decimal.Decimal
	leverage       decimal.Decimal
	flow           model.TransactionFlow
	snapshots      []model.TransactionSnapshot
	logger         *zap.Logger
}

func newBase(name string, budget, leverage decimal.Decimal, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		name:           name,
		originalBudget: budget,
		leverage:       leverage,
		logger:         logger,
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Flow() model.TransactionFlow {
	return b.flow
}

func (b *Base) Leverage() decimal.Decimal {
	return b.leverage
}

func (b *Base) Snapshots() []model.TransactionSnapshot {
	return b.snapshots
}

// LastSnapshot returns the most recent snapshot, or nil before any
// transaction has been recorded.
func (b *Base) LastSnapshot() *model.TransactionSnapshot {
	if len(b.snapshots) == 0 {
		return nil
	}
	return &b.snapshots[len(b.snapshots)-1]
}

func (b *Base) CheckBudget(price decimal.Decimal) bool {
	return b.checkBudget(price, b.flow)
}

func (b *Base) checkBudget(price decimal.Decimal, flow model.TransactionFlow) bool {
	return b.originalBudget.Add(flow.NetProfit(price)).IsPositive()
}

func (b *Base) Commit(t time.Time, k model.KLine, transactions []model.Transaction) []model.Transaction {
	committed := make([]model.Transaction, 0, len(transactions))

	for _, tx := range transactions {
		tx.Amount = tx.Amount.Mul(b.leverage)

		next := b.flow.Merge(tx)
		if !b.checkBudget(k.Close, next) {
			b.logger.Warn("budget exhausted, dropping remaining transactions",
				zap.String("strategy", b.name),
				zap.Time("time", t),
				zap.String("price", k.Close.String()),
			)
			break
		}

		b.flow = next
		b.appendSnapshot(t, k.Close, tx)
		committed = append(committed, tx)
	}

	return committed
}

func (b *Base) ApplyFill(tx model.Transaction) {
	b.flow = b.flow.Merge(tx)
	b.appendSnapshot(tx.Time, tx.Price, tx)
}

func (b *Base) appendSnapshot(t time.Time, price decimal.Decimal, tx model.Transaction) {
	b.snapshots = append(b.snapshots, model.TransactionSnapshot{
		Time:        t,
		Transaction: &tx,
		Flow:        b.flow.Dump(price),
	})
	infrastructure.TradesCommitted.WithLabelValues(b.name).Inc()
}

// FinalSnapshot appends the closing snapshot of a run; it records the mark
// price instead of a transaction.
func (b *Base) FinalSnapshot(t time.Time, price decimal.Decimal) {
	b.snapshots = append(b.snapshots, model.TransactionSnapshot{
		Time:         t,
		Flow:         b.flow.Dump(price),
		CurrentPrice: &price,
	})
}

type baseState struct {
	Flow      model.TransactionFlow       `json:"transaction_flow"`
	Snapshots []model.TransactionSnapshot `json:"transaction_snapshots"`
}

func (b *Base) dumpBase() baseState {
	return baseState{Flow: b.flow, Snapshots: b.snapshots}
}

func (b *Base) restoreBase(s baseState) {
	b.flow = s.Flow
	b.snapshots = s.Snapshots
}

// DumpState covers variants whose only mutable state is the ledger and the
// snapshot log; variants with private state override it.
func (b *Base) DumpState() ([]byte, error) {
	return json.Marshal(b.dumpBase())
}

func (b *Base) RestoreState(data []byte) error {
	var s baseState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b.restoreBase(s)
	return nil
}
