package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// Repository mirrors the candle file store into Postgres so the web server
// can query history without touching the data files.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InitSchema creates the candle table when it does not exist yet.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS klines (
			symbol TEXT NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			open NUMERIC NOT NULL,
			high NUMERIC NOT NULL,
			low NUMERIC NOT NULL,
			close NUMERIC NOT NULL,
			PRIMARY KEY (symbol, time)
		)`)
	return err
}

// LoadCandles reads the 1-minute candles covering [start, end], keyed by unix
// seconds to match the file store.
func (r *Repository) LoadCandles(ctx context.Context, symbol string, start, end time.Time) (map[int64]model.KLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time, open, high, low, close
		FROM klines
		WHERE symbol = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC`,
		symbol, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candles := make(map[int64]model.KLine)
	for rows.Next() {
		var k model.KLine
		if err := rows.Scan(&k.Timestamp, &k.Open, &k.High, &k.Low, &k.Close); err != nil {
			return nil, err
		}
		candles[k.Timestamp.Unix()] = k
	}
	return candles, rows.Err()
}

// RecentCandles returns the latest `limit` candles in descending time order.
func (r *Repository) RecentCandles(ctx context.Context, symbol string, limit int) ([]model.KLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time, open, high, low, close
		FROM klines
		WHERE symbol = $1
		ORDER BY time DESC
		LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.KLine
	for rows.Next() {
		var k model.KLine
		if err := rows.Scan(&k.Timestamp, &k.Open, &k.High, &k.Low, &k.Close); err != nil {
			return nil, err
		}
		candles = append(candles, k)
	}
	return candles, rows.Err()
}

// SaveCandles upserts a batch of candles in one round trip.
func (r *Repository) SaveCandles(ctx context.Context, symbol string, candles map[int64]model.KLine) error {
	batch := &pgx.Batch{}
	for ts, k := range candles {
		batch.Queue(`
			INSERT INTO klines (symbol, time, open, high, low, close)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (symbol, time) DO UPDATE
			SET open = EXCLUDED.open, high = EXCLUDED.high,
			    low = EXCLUDED.low, close = EXCLUDED.close`,
			symbol, time.Unix(ts, 0).UTC(), k.Open, k.High, k.Low, k.Close)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range candles {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
