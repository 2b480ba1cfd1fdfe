package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction maps a side onto a signed amount multiplier: a BUY increases the
// position, a SELL decreases it. Flipping this silently flips P&L sign, so it
// lives in exactly one place.
func (s Side) Direction() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// DefaultFeeRatio is the taker fee applied when a transaction does not carry
// an explicit one.
var DefaultFeeRatio = decimal.NewFromFloat(2e-4)

// Transaction 代表策略产生的一笔成交意图 (回测中即视为成交)
type Transaction struct {
	Side     Side            `json:"mode"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
	Time     time.Time       `json:"time"`
	FeeRatio decimal.Decimal `json:"fee_ratio"`
}

func NewTransaction(side Side, price, amount decimal.Decimal, t time.Time) Transaction {
	return Transaction{
		Side:     side,
		Price:    price,
		Amount:   amount,
		Time:     t,
		FeeRatio: DefaultFeeRatio,
	}
}

// SignedAmount is the position delta of the transaction.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(t.Side.Direction())
}

// Fee is the cost of executing the transaction, always non-negative.
func (t Transaction) Fee() decimal.Decimal {
	return t.Price.Mul(t.Amount).Mul(t.FeeRatio).Abs()
}
