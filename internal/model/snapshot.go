package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSnapshot is an append-only log entry recorded once per committed
// transaction, plus one final entry (without a transaction) when a run ends.
type TransactionSnapshot struct {
	Time         time.Time        `json:"time"`
	Transaction  *Transaction     `json:"transaction,omitempty"`
	Flow         FlowDump         `json:"transaction_flow"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
}

// ProfitPoint is one entry of the per-step net-profit history.
type ProfitPoint struct {
	Time         time.Time       `json:"time"`
	Price        decimal.Decimal `json:"price"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Profit       decimal.Decimal `json:"profit"`
}
