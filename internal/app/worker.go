package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/engine"
	"github.com/chu0802/CryptoTrader/internal/exchange"
	"github.com/chu0802/CryptoTrader/internal/fetcher"
	"github.com/chu0802/CryptoTrader/internal/indicator"
	"github.com/chu0802/CryptoTrader/internal/model"
	"github.com/chu0802/CryptoTrader/internal/notify"
	"github.com/chu0802/CryptoTrader/internal/strategy"
	"github.com/chu0802/CryptoTrader/internal/trader"
)

// StrategyFile is the on-disk strategy description shared by the backtest
// and trade modes.
type StrategyFile struct {
	Name   string                 `json:"name"`
	Symbol string                 `json:"symbol"`
	Config map[string]interface{} `json:"config"`
}

func (a *App) loadStrategyFile() (*StrategyFile, error) {
	data, err := os.ReadFile(a.Config.StrategyConfig)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}

	var sf StrategyFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode strategy config: %w", err)
	}
	if sf.Symbol == "" {
		sf.Symbol = a.Config.Symbol
	}
	return &sf, nil
}

// buildIndicators precomputes every KDJ interval series the strategy needs
// from the stored candle history.
func (a *App) buildIndicators(sf *StrategyFile, candles map[int64]model.KLine) map[int]indicator.Series {
	intervals := strategy.Intervals(sf.Name, sf.Config)
	if len(intervals) == 0 {
		return nil
	}

	base := make([]model.KLine, 0, len(candles))
	for _, k := range candles {
		base = append(base, k)
	}

	indicators := make(map[int]indicator.Series, len(intervals))
	for _, interval := range intervals {
		indicators[interval] = indicator.Compute(indicator.Resample(base, interval))
	}
	return indicators
}

func (a *App) buildStrategy(sf *StrategyFile, candles map[int64]model.KLine) (strategy.Strategy, error) {
	return strategy.New(sf.Name, sf.Config, strategy.Options{
		Logger:     a.Logger,
		Indicators: a.buildIndicators(sf, candles),
	})
}

// RunFetch downloads the latest `total` 1-minute candles and stores them in
// the data files, mirroring to Postgres when it is reachable.
func (a *App) RunFetch(ctx context.Context, total int) error {
	symbol := strings.ToUpper(a.Config.Symbol)
	client := exchange.NewBinance(a.Config.ExchangeURL, "", "", a.Logger)

	candles, err := fetcher.New(client, a.Logger).FetchHistory(ctx, symbol, total)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if err := a.Store.SaveCandles(a.Config.Symbol, candles); err != nil {
		return fmt.Errorf("save candles: %w", err)
	}

	if err := a.initDatabase(ctx); err != nil {
		a.Logger.Warn("skipping database mirror", zap.Error(err))
		return nil
	}
	defer a.DB.Close()

	if err := a.Repo.SaveCandles(ctx, symbol, candles); err != nil {
		return fmt.Errorf("mirror candles: %w", err)
	}
	return nil
}

// RunBacktest replays the configured candle window through the configured
// strategy and writes the result files.
func (a *App) RunBacktest(ctx context.Context) error {
	sf, err := a.loadStrategyFile()
	if err != nil {
		return err
	}

	candles, err := a.Store.LoadCandles(sf.Symbol)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}

	start, end, err := a.Config.Window()
	if err != nil {
		return fmt.Errorf("parse backtest window: %w", err)
	}

	series, err := engine.BuildSeries(candles, start, end)
	if err != nil {
		return err
	}

	s, err := a.buildStrategy(sf, candles)
	if err != nil {
		return err
	}

	result, err := engine.NewTester(series, a.Logger).Run(s)
	if err != nil {
		return err
	}

	if err := a.Store.WriteResults("backtest", sf.Name, sf.Symbol, result.Snapshots, result.ProfitHistory); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	a.Logger.Info("backtest finished",
		zap.String("strategy", sf.Name),
		zap.String("symbol", sf.Symbol),
		zap.Int("steps", len(result.ProfitHistory)),
		zap.String("largest_drop", result.LargestDrop.String()),
		zap.String("largest_gain", result.LargestGain.String()),
		zap.Bool("bankrupt", result.Bankrupt),
	)
	return nil
}

// RunTrade starts the live trading loop for the configured strategy.
func (a *App) RunTrade(ctx context.Context) error {
	sf, err := a.loadStrategyFile()
	if err != nil {
		return err
	}

	// Oscillator strategies need indicator history; the candle store feeds
	// the warmup.
	var candles map[int64]model.KLine
	if len(strategy.Intervals(sf.Name, sf.Config)) > 0 {
		candles, err = a.Store.LoadCandles(sf.Symbol)
		if err != nil {
			return fmt.Errorf("load candles for indicators: %w", err)
		}
	}

	s, err := a.buildStrategy(sf, candles)
	if err != nil {
		return err
	}

	if state, err := a.Store.LoadStrategyState(sf.Name, sf.Symbol); err != nil {
		return fmt.Errorf("load strategy state: %w", err)
	} else if state != nil {
		if err := s.RestoreState(state); err != nil {
			return fmt.Errorf("restore strategy state: %w", err)
		}
		a.Logger.Info("restored strategy state", zap.String("strategy", sf.Name))
	}

	client := exchange.NewBinance(a.Config.ExchangeURL, a.Config.APIKey, a.Config.SecretKey, a.Logger)

	symbol := strings.ToUpper(sf.Symbol)
	if err := client.ChangeLeverage(ctx, symbol, int(s.Leverage().IntPart())); err != nil {
		return fmt.Errorf("change leverage: %w", err)
	}

	var notifier notify.Notifier = notify.Noop{}
	if a.Config.SlackWebhookURL != "" {
		notifier = notify.NewSlackSender(a.Config.SlackWebhookURL)
	}

	var publisher trader.Publisher
	if err := a.initNATS(); err != nil {
		a.Logger.Warn("snapshot publishing disabled", zap.Error(err))
	} else {
		publisher = a.JS
		defer a.NC.Close()
	}

	tr, err := trader.New(s, client, a.Store, notifier, publisher, sf.Symbol, a.Logger)
	if err != nil {
		return err
	}
	return tr.Run(ctx)
}
