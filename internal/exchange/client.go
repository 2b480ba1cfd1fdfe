package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// OrderUpdate is the slice of an order-status response the trader cares
// about: the current status and the price the exchange reports.
type OrderUpdate struct {
	Status model.OrderStatus
	Price  decimal.Decimal
}

// Client is the narrow exchange surface the live trader needs. Amounts and
// prices are decimals end to end; the implementation formats them for the
// wire.
type Client interface {
	ServerTime(ctx context.Context) (time.Time, error)

	// RecentKLine returns the latest 1-minute candle for the symbol.
	RecentKLine(ctx context.Context, symbol string) (model.KLine, error)

	// PlaceOrder submits a GTC limit order and returns the exchange order ID
	// with its submission time.
	PlaceOrder(ctx context.Context, symbol string, side model.Side, price, quantity decimal.Decimal) (*model.Order, error)

	QueryOrder(ctx context.Context, symbol string, orderID int64) (OrderUpdate, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
}
