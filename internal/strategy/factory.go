package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/indicator"
)

// ErrUnknownStrategy reports a strategy name with no registered variant.
var ErrUnknownStrategy = errors.New("unknown strategy name")

// Options carries the collaborators a variant may need beyond its own
// configuration.
type Options struct {
	Logger *zap.Logger
	// Indicators maps a candle interval in minutes to its precomputed KDJ
	// series; required by the oscillator variants only.
	Indicators map[int]indicator.Series
}

// New builds one concrete strategy from its config map. The set of variants
// is closed; anything else is a configuration error.
func New(name string, config map[string]interface{}, opts Options) (Strategy, error) {
	budget, err := requiredParam(config, "budget")
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	leverage := floatParam(config, "leverage", 1)
	if !leverage.IsPositive() {
		return nil, fmt.Errorf("strategy %q: leverage must be positive", name)
	}

	switch name {
	case "grid_trading":
		cfg := GridConfig{
			Budget:      budget,
			Leverage:    leverage,
			Highest:     floatParam(config, "highest", 75000),
			Lowest:      floatParam(config, "lowest", 60000),
			NumInterval: int64(intParam(config, "num_interval", 20)),
			Amount:      floatParam(config, "amount", 0.003),
			PriceStep:   floatParam(config, "price_step", 100),
		}
		if !cfg.Highest.GreaterThan(cfg.Lowest) {
			return nil, fmt.Errorf("strategy %q: highest must exceed lowest", name)
		}
		if !cfg.Highest.Sub(cfg.Lowest).Div(decimal.NewFromInt(cfg.NumInterval)).Floor().IsPositive() {
			return nil, fmt.Errorf("strategy %q: band too narrow for %d intervals", name, cfg.NumInterval)
		}
		if !cfg.PriceStep.IsPositive() {
			return nil, fmt.Errorf("strategy %q: price_step must be positive", name)
		}
		return NewGrid(cfg, opts.Logger), nil

	case "dca", "going_short":
		cfg := PeriodicConfig{
			Budget:   budget,
			Leverage: leverage,
			Interval: time.Duration(intParam(config, "time_interval", 86400)) * time.Second,
			Notional: floatParam(config, "amount_in_usd", 100),
		}
		if name == "dca" {
			return NewDCA(cfg, opts.Logger), nil
		}
		return NewGoingShort(cfg, opts.Logger), nil

	case "kdj_grid_trading":
		cfg := KDJGridConfig{
			Budget:      budget,
			Leverage:    leverage,
			Highest:     floatParam(config, "highest", 75000),
			Lowest:      floatParam(config, "lowest", 60000),
			NumInterval: int64(intParam(config, "num_interval", 20)),
			Amount:      floatParam(config, "amount", 0.003),
			ColdStart:   intParam(config, "cold_start", 10),
			LowerBound:  floatParam(config, "lower_bound", 20),
			UpperBound:  floatParam(config, "upper_bound", 80),
			MinInterval: intParam(config, "min_interval", 5),
		}
		series, ok := opts.Indicators[1]
		if !ok {
			return nil, fmt.Errorf("strategy %q: missing 1m kdj series", name)
		}
		return NewKDJGrid(cfg, series, opts.Logger), nil

	case "kdj_time":
		cfg := KDJTimeConfig{
			Budget:    budget,
			Leverage:  leverage,
			Amount:    floatParam(config, "amount", 8),
			Low:       floatParam(config, "low", 20),
			High:      floatParam(config, "high", 80),
			MinRatio:  floatParam(config, "min_ratio", 0.2),
			Intervals: intSliceParam(config, "kdj_intervals", []int{1}),
			MaxRun:    intParam(config, "max_continual_count", 5),
		}
		for _, interval := range cfg.Intervals {
			if _, ok := opts.Indicators[interval]; !ok {
				return nil, fmt.Errorf("strategy %q: missing %dm kdj series", name, interval)
			}
		}
		return NewKDJTime(cfg, opts.Indicators, opts.Logger), nil

	case "optimal":
		cfg := OptimalConfig{
			Budget:     budget,
			Leverage:   leverage,
			WindowSize: intParam(config, "window_size", 5),
			Amount:     floatParam(config, "amount", 7),
			MinRatio:   floatParam(config, "min_ratio", 0.005),
			MaxRun:     intParam(config, "max_continual_operation", 5),
		}
		return NewOptimal(cfg, opts.Logger), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
}

// Intervals reports which KDJ interval series the named strategy needs, so
// callers can precompute only those.
func Intervals(name string, config map[string]interface{}) []int {
	switch name {
	case "kdj_grid_trading":
		return []int{1}
	case "kdj_time":
		return intSliceParam(config, "kdj_intervals", []int{1})
	default:
		return nil
	}
}

func requiredParam(config map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := config[key].(float64)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("missing or malformed parameter %q", key)
	}
	return decimal.NewFromFloat(v), nil
}

func floatParam(config map[string]interface{}, key string, fallback float64) decimal.Decimal {
	if v, ok := config[key].(float64); ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.NewFromFloat(fallback)
}

func intParam(config map[string]interface{}, key string, fallback int) int {
	if v, ok := config[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func intSliceParam(config map[string]interface{}, key string, fallback []int) []int {
	raw, ok := config[key].([]interface{})
	if !ok {
		return fallback
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
