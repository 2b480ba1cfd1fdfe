package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chu0802/CryptoTrader/internal/infrastructure"
	"github.com/chu0802/CryptoTrader/internal/model"
)

// BatchSize is the exchange's per-request candle limit.
const BatchSize = 1000

// Source serves one batch of 1-minute candles ending at endTime.
type Source interface {
	KLines(ctx context.Context, symbol string, limit int, endTime time.Time) ([]model.KLine, error)
}

// Fetcher downloads candle history in parallel batches, walking backwards
// from the current minute. Batches overlap at their edges on some exchanges;
// the timestamp-keyed result map deduplicates them.
type Fetcher struct {
	source      Source
	logger      *zap.Logger
	concurrency int
}

func New(source Source, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:      source,
		logger:      logger,
		concurrency: 8,
	}
}

// FetchHistory downloads the latest `total` 1-minute candles for the symbol,
// keyed by unix seconds.
func (f *Fetcher) FetchHistory(ctx context.Context, symbol string, total int) (map[int64]model.KLine, error) {
	return f.FetchHistoryBefore(ctx, symbol, total, time.Now().UTC())
}

// FetchHistoryBefore is FetchHistory anchored at an explicit end time.
func (f *Fetcher) FetchHistoryBefore(ctx context.Context, symbol string, total int, end time.Time) (map[int64]model.KLine, error) {
	end = end.Truncate(time.Minute)

	endTimes := make([]time.Time, 0, (total+BatchSize-1)/BatchSize)
	for i := 0; i < total; i += BatchSize {
		endTimes = append(endTimes, end.Add(-time.Duration(i)*time.Minute))
	}

	batches := make([][]model.KLine, len(endTimes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, endTime := range endTimes {
		i, endTime := i, endTime
		g.Go(func() error {
			started := time.Now()
			candles, err := f.source.KLines(gctx, symbol, BatchSize, endTime)
			if err != nil {
				return err
			}
			infrastructure.FetchLatency.WithLabelValues(symbol).Observe(time.Since(started).Seconds())
			batches[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[int64]model.KLine, total)
	for _, batch := range batches {
		for _, k := range batch {
			merged[k.Timestamp.Unix()] = k
		}
	}

	f.logger.Info("fetched candle history",
		zap.String("symbol", symbol),
		zap.Int("requested", total),
		zap.Int("received", len(merged)),
	)
	return merged, nil
}
