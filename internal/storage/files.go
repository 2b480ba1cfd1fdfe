package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
)

// FileStore persists candle data, run results and trader status as JSON files
// under three configurable roots. Writes go through a temp file and a rename
// so a crash mid-write never leaves a truncated file behind.
type FileStore struct {
	dataRoot    string
	resultsRoot string
	statusRoot  string
	logger      *zap.Logger
}

func NewFileStore(dataRoot, resultsRoot, statusRoot string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		dataRoot:    dataRoot,
		resultsRoot: resultsRoot,
		statusRoot:  statusRoot,
		logger:      logger,
	}
}

func (f *FileStore) pricesPath(symbol string) string {
	return filepath.Join(f.dataRoot, strings.ToLower(symbol), "prices.json")
}

func (f *FileStore) resultsDir(mode, strategy, symbol string) string {
	return filepath.Join(f.resultsRoot, mode, strategy, strings.ToLower(symbol))
}

func (f *FileStore) statusDir(strategy, symbol string) string {
	return filepath.Join(f.statusRoot, "trader", strategy, strings.ToLower(symbol))
}

// LoadCandles reads the candle store for a symbol, keyed by unix seconds.
func (f *FileStore) LoadCandles(symbol string) (map[int64]model.KLine, error) {
	data, err := os.ReadFile(f.pricesPath(symbol))
	if err != nil {
		return nil, fmt.Errorf("read candle store: %w", err)
	}

	var raw map[string]model.KLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode candle store: %w", err)
	}

	candles := make(map[int64]model.KLine, len(raw))
	for key, k := range raw {
		ts, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("candle key %q: %w", key, err)
		}
		k.Timestamp = time.Unix(ts, 0).UTC()
		candles[ts] = k
	}
	return candles, nil
}

// SaveCandles writes the candle store for a symbol, merging over whatever is
// already on disk so incremental fetches extend the history.
func (f *FileStore) SaveCandles(symbol string, candles map[int64]model.KLine) error {
	merged, err := f.LoadCandles(symbol)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("rebuilding candle store", zap.String("symbol", symbol), zap.Error(err))
		}
		merged = make(map[int64]model.KLine, len(candles))
	}
	for ts, k := range candles {
		merged[ts] = k
	}

	out := make(map[string]model.KLine, len(merged))
	for ts, k := range merged {
		out[strconv.FormatInt(ts, 10)] = k
	}
	return writeJSON(f.pricesPath(symbol), out)
}

// WriteResults stores a finished run: the snapshot log and the per-step
// profit history, side by side.
func (f *FileStore) WriteResults(mode, strategy, symbol string, snapshots []model.TransactionSnapshot, history []model.ProfitPoint) error {
	dir := f.resultsDir(mode, strategy, symbol)
	if err := writeJSON(filepath.Join(dir, "result.json"), snapshots); err != nil {
		return err
	}
	if history == nil {
		return nil
	}
	return writeJSON(filepath.Join(dir, "profit.json"), history)
}

// LoadResults reads a run's snapshot log.
func (f *FileStore) LoadResults(mode, strategy, symbol string) ([]model.TransactionSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(f.resultsDir(mode, strategy, symbol), "result.json"))
	if err != nil {
		return nil, err
	}
	var snapshots []model.TransactionSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return snapshots, nil
}

// LoadProfitHistory reads a run's per-step profit log.
func (f *FileStore) LoadProfitHistory(mode, strategy, symbol string) ([]model.ProfitPoint, error) {
	data, err := os.ReadFile(filepath.Join(f.resultsDir(mode, strategy, symbol), "profit.json"))
	if err != nil {
		return nil, err
	}
	var history []model.ProfitPoint
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode profit history: %w", err)
	}
	return history, nil
}

// SaveAction records the trader's in-flight decision so a restarted process
// does not double-trade inside the same decision window.
func (f *FileStore) SaveAction(strategy, symbol string, action *model.Action) error {
	return writeJSON(filepath.Join(f.statusDir(strategy, symbol), "last_action.json"), action)
}

// LoadAction returns the last recorded decision, or nil when none exists yet.
func (f *FileStore) LoadAction(strategy, symbol string) (*model.Action, error) {
	data, err := os.ReadFile(filepath.Join(f.statusDir(strategy, symbol), "last_action.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var action model.Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("decode last action: %w", err)
	}
	return &action, nil
}

// SaveStrategyState persists a strategy's serialized mutable state.
func (f *FileStore) SaveStrategyState(strategy, symbol string, state []byte) error {
	return writeRaw(filepath.Join(f.statusDir(strategy, symbol), "state.json"), state)
}

// LoadStrategyState returns the persisted state, or nil when none exists.
func (f *FileStore) LoadStrategyState(strategy, symbol string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.statusDir(strategy, symbol), "state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeRaw(path, data)
}

func writeRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
