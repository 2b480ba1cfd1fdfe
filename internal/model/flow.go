package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// FlowPrecision is the decimal precision every ledger field is rounded to
// after each merge, stopping floating drift across thousands of merges.
const FlowPrecision = 10

// TransactionFlow is the running position ledger: signed open amount, its
// average cost, and the profit realized by closed trades. The zero value is
// an empty ledger.
type TransactionFlow struct {
	Amount         decimal.Decimal `json:"amount"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
}

// Merge folds one transaction into the ledger and returns the new ledger.
// Transactions must be applied in time order; profit on the overlapping part
// of a reducing trade is realized before the average price is reweighted.
func (f TransactionFlow) Merge(t Transaction) TransactionFlow {
	signed := t.SignedAmount()
	amount := f.Amount.Add(signed)
	realized := f.RealizedProfit.Sub(t.Fee())

	var average decimal.Decimal
	if f.Amount.Sign()*signed.Sign() < 0 {
		// Reducing or reversing trade: realize profit on the overlap.
		overlap := decimal.Min(f.Amount.Abs(), signed.Abs())
		realized = realized.Add(
			t.Price.Sub(f.AveragePrice).Mul(overlap).Mul(decimal.NewFromInt(int64(f.Amount.Sign()))),
		)

		switch {
		case amount.IsZero():
			average = decimal.Zero
		case amount.Sign() == f.Amount.Sign():
			// Partial close keeps the cost basis.
			average = f.AveragePrice
		default:
			// Full reversal rebases onto the trade price.
			average = t.Price
		}
	} else {
		// Adding to the position: amount-weighted mean of old and new.
		if amount.IsZero() {
			average = decimal.Zero
		} else {
			average = f.AveragePrice.Mul(f.Amount).Add(t.Price.Mul(signed)).Div(amount)
		}
	}

	return TransactionFlow{
		Amount:         amount.Round(FlowPrecision),
		AveragePrice:   average.Round(FlowPrecision),
		RealizedProfit: realized.Round(FlowPrecision),
	}
}

// FlowFromTransactions folds a batch of transactions, sorted by time, into a
// fresh ledger.
func FlowFromTransactions(transactions []Transaction) TransactionFlow {
	sorted := make([]Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	var flow TransactionFlow
	for _, t := range sorted {
		flow = flow.Merge(t)
	}
	return flow
}

// UnrealizedProfit is the mark-to-market profit of the open position.
func (f TransactionFlow) UnrealizedProfit(markPrice decimal.Decimal) decimal.Decimal {
	if f.Amount.IsZero() {
		return decimal.Zero
	}
	return markPrice.Sub(f.AveragePrice).Mul(f.Amount)
}

// NetProfit is unrealized plus realized profit at the mark price.
func (f TransactionFlow) NetProfit(markPrice decimal.Decimal) decimal.Decimal {
	return f.UnrealizedProfit(markPrice).Add(f.RealizedProfit)
}

// NetProfitWithFunding additionally applies an external funding adjustment.
func (f TransactionFlow) NetProfitWithFunding(markPrice, funding decimal.Decimal) decimal.Decimal {
	return f.NetProfit(markPrice).Add(funding)
}

// FlowDump is the reporting view of a ledger at a given mark price.
type FlowDump struct {
	Amount           decimal.Decimal `json:"amount"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	RealizedProfit   decimal.Decimal `json:"realized_profit"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	NetProfit        decimal.Decimal `json:"net_profit"`
}

func (f TransactionFlow) Dump(markPrice decimal.Decimal) FlowDump {
	return FlowDump{
		Amount:           f.Amount,
		AveragePrice:     f.AveragePrice,
		RealizedProfit:   f.RealizedProfit,
		UnrealizedProfit: f.UnrealizedProfit(markPrice),
		NetProfit:        f.NetProfit(markPrice),
	}
}
