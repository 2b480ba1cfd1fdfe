package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/exchange"
	"github.com/chu0802/CryptoTrader/internal/infrastructure"
	"github.com/chu0802/CryptoTrader/internal/model"
	"github.com/chu0802/CryptoTrader/internal/notify"
	"github.com/chu0802/CryptoTrader/internal/storage"
	"github.com/chu0802/CryptoTrader/internal/strategy"
)

const (
	// DecisionInterval is the minimum spacing between strategy decisions,
	// measured on exchange server time.
	DecisionInterval = 60 * time.Second

	// OrderTimeout is how long an unfilled limit order may stay open before
	// it is canceled and the trader stops.
	OrderTimeout = 50 * time.Second
)

var pollInterval = time.Second

// ErrOrderTimeout reports a limit order that stayed unfilled past
// OrderTimeout. The order is canceled first; the trader treats this as fatal
// so an operator can reconcile state before restarting.
var ErrOrderTimeout = errors.New("order unfilled past timeout, canceled")

// Publisher is the slice of the JetStream API the trader publishes snapshots
// through.
type Publisher interface {
	Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Trader runs one strategy live: every decision window it feeds the latest
// candle to the strategy, submits the first resulting transaction as a limit
// order, and polls until the order reaches a terminal state. A fill is
// applied to the ledger exactly once, at the price the exchange reports.
type Trader struct {
	strategy strategy.Strategy
	client   exchange.Client
	store    *storage.FileStore
	notifier notify.Notifier
	js       Publisher
	logger   *zap.Logger
	symbol   string

	lastAction    *model.Action
	currentAction *model.Action
}

func New(s strategy.Strategy, client exchange.Client, store *storage.FileStore, notifier notify.Notifier, js Publisher, symbol string, logger *zap.Logger) (*Trader, error) {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	last, err := store.LoadAction(s.Name(), symbol)
	if err != nil {
		return nil, fmt.Errorf("load last action: %w", err)
	}

	return &Trader{
		strategy:   s,
		client:     client,
		store:      store,
		notifier:   notifier,
		js:         js,
		logger:     logger,
		symbol:     symbol,
		lastAction: last,
	}, nil
}

// Run executes decision cycles until the context is canceled or an order
// times out.
func (t *Trader) Run(ctx context.Context) error {
	for {
		if err := t.RunCycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// RunCycle performs one full decision: wait for the decision window, decide,
// place the order if the strategy produced one, and poll it to a terminal
// state.
func (t *Trader) RunCycle(ctx context.Context) error {
	for {
		currentTime, err := t.client.ServerTime(ctx)
		if err != nil {
			return fmt.Errorf("server time: %w", err)
		}

		if t.currentAction == nil && t.decisionDue(currentTime) {
			if err := t.trade(ctx, currentTime); err != nil {
				return err
			}
		}

		if t.currentAction != nil {
			done, err := t.validate(ctx, currentTime)
			if err != nil {
				return err
			}
			if done {
				t.finishCycle()
				return t.persistState()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (t *Trader) decisionDue(currentTime time.Time) bool {
	return t.lastAction == nil || currentTime.Sub(t.lastAction.DecisionTime) >= DecisionInterval
}

func (t *Trader) finishCycle() {
	t.lastAction = t.currentAction
	t.currentAction = nil
}

func (t *Trader) trade(ctx context.Context, currentTime time.Time) error {
	k, err := t.client.RecentKLine(ctx, t.symbol)
	if err != nil {
		return fmt.Errorf("recent kline: %w", err)
	}

	transactions, err := t.strategy.Decide(currentTime, k)
	if err != nil {
		return err
	}

	t.currentAction = &model.Action{DecisionTime: currentTime}

	if len(transactions) > 0 {
		tx := transactions[0]
		quantity := tx.Amount.Mul(t.strategy.Leverage())

		order, err := t.client.PlaceOrder(ctx, t.symbol, tx.Side, tx.Price, quantity)
		if err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		order.Expected = &tx
		t.currentAction.Order = order
		infrastructure.OrdersPlaced.Inc()

		t.logger.Info("order placed",
			zap.Int64("order_id", order.OrderID),
			zap.String("side", string(tx.Side)),
			zap.String("price", tx.Price.String()),
			zap.String("quantity", quantity.String()),
		)
		t.notify(ctx, "Transaction",
			fmt.Sprintf("%s %s %s @ %s", t.symbol, tx.Side, quantity, tx.Price))
	}

	return t.store.SaveAction(t.strategy.Name(), t.symbol, t.currentAction)
}

// validate polls the in-flight order once. It returns true when the cycle is
// finished, either because there was no order or because the order filled.
func (t *Trader) validate(ctx context.Context, currentTime time.Time) (bool, error) {
	if !t.currentAction.HasOrder() {
		return true, nil
	}
	order := t.currentAction.Order
	if order.Filled() {
		return true, nil
	}

	update, err := t.client.QueryOrder(ctx, t.symbol, order.OrderID)
	if err != nil {
		return false, fmt.Errorf("query order: %w", err)
	}
	order.Status = update.Status

	if order.Filled() {
		fill := *order.Expected
		fill.Amount = fill.Amount.Mul(t.strategy.Leverage())
		fill.Price = update.Price
		t.strategy.ApplyFill(fill)

		if err := t.store.WriteResults("trader", t.strategy.Name(), t.symbol, t.strategy.Snapshots(), nil); err != nil {
			return false, fmt.Errorf("write results: %w", err)
		}
		t.publishSnapshot()
		t.notify(ctx, "Filled",
			fmt.Sprintf("%s %s %s @ %s", t.symbol, fill.Side, fill.Amount, fill.Price))
		return true, nil
	}

	if currentTime.Sub(order.OrderTime) >= OrderTimeout {
		if err := t.client.CancelOrder(ctx, t.symbol, order.OrderID); err != nil {
			return false, fmt.Errorf("cancel order: %w", err)
		}
		order.Status = model.OrderStatusCanceled
		infrastructure.OrdersCanceled.Inc()
		t.notify(ctx, "Message", "order was canceled after timeout")
		return false, ErrOrderTimeout
	}

	return false, nil
}

func (t *Trader) persistState() error {
	state, err := t.strategy.DumpState()
	if err != nil {
		return fmt.Errorf("dump strategy state: %w", err)
	}
	return t.store.SaveStrategyState(t.strategy.Name(), t.symbol, state)
}

func (t *Trader) publishSnapshot() {
	if t.js == nil {
		return
	}
	last := t.strategy.Snapshots()
	if len(last) == 0 {
		return
	}

	data, err := json.Marshal(last[len(last)-1])
	if err != nil {
		t.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("trade.snapshot.%s.%s", t.strategy.Name(), t.symbol)
	if _, err := t.js.Publish(subject, data); err != nil {
		t.logger.Error("failed to publish snapshot", zap.Error(err))
		return
	}
	infrastructure.SnapshotsPublished.Inc()
}

func (t *Trader) notify(ctx context.Context, title, message string) {
	if err := t.notifier.Send(ctx, title, message); err != nil {
		t.logger.Warn("notification failed", zap.Error(err))
	}
}
