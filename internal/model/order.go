package model

import "time"

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Order wraps a single strategy-produced transaction submitted to the
// exchange. Status is mutated only by status-query responses; FILLED and
// CANCELED are terminal.
type Order struct {
	OrderTime time.Time    `json:"order_time"`
	OrderID   int64        `json:"order_id"`
	Status    OrderStatus  `json:"status"`
	Expected  *Transaction `json:"expected_transaction,omitempty"`
}

func (o *Order) Filled() bool {
	return o.Status == OrderStatusFilled
}

// Action is one live-trading decision and, if the strategy produced a
// transaction, the pending exchange order for it.
type Action struct {
	DecisionTime time.Time `json:"decision_time"`
	Order        *Order    `json:"order,omitempty"`
}

func (a *Action) HasOrder() bool {
	return a != nil && a.Order != nil
}

func (a *Action) Filled() bool {
	return a.HasOrder() && a.Order.Filled()
}
