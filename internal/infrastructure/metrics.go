package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandlesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_candles_total",
		Help: "Total number of candles fed through a strategy",
	}, []string{"strategy"})

	TradesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_committed_total",
		Help: "Total number of transactions merged into a ledger",
	}, []string{"strategy"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of live orders submitted to the exchange",
	})

	OrdersCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_canceled_total",
		Help: "Total number of live orders canceled after timing out",
	})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "price_fetch_latency_seconds",
		Help: "Latency of historical kline batch fetches",
	}, []string{"symbol"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	SnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_published_total",
		Help: "Total number of trade snapshots published to the bus",
	})
)
