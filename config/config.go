package config

import (
	"errors"
	"fmt"
)

// CombineMode selects how the outputs of several rules are reconciled.
type CombineMode string

const (
	// ModeSingle runs exactly one rule and returns its output directly.
	ModeSingle CombineMode = "single"
	// ModeAny fires on the first rule that agrees, in declared priority order.
	ModeAny CombineMode = "any"
)

type RuleType string

const (
	RuleCrossover RuleType = "crossover"
	RuleMACD      RuleType = "macd"
	RuleRSI       RuleType = "rsi"
	RuleBollinger RuleType = "bollinger"
	RuleTimeStop  RuleType = "timestop"
)

// BandMode is the Bollinger sub-policy.
type BandMode string

const (
	// BandRecross buys when close climbs back above the lower band and sells
	// when it falls back below the upper band.
	BandRecross BandMode = "recross"
	// BandTouch buys a close under the lower band, but only above the long
	// trend average and with RSI below RSIExtreme.
	BandTouch BandMode = "touch"
)

const (
	SourceTechan = "techan"
	SourceGoti   = "goti"
)

var (
	ErrNoRules     = errors.New("strategy has no rules")
	ErrUnknownRule = errors.New("unknown rule type")
)

// RuleConfig declares one signal rule. Only the fields relevant to Type are
// read; the rest stay zero.
type RuleConfig struct {
	Type RuleType `yaml:"type"`

	// crossover / macd
	MA           string `yaml:"ma"` // "sma" (default) or "ema"
	FastPeriod   int    `yaml:"fast"`
	SlowPeriod   int    `yaml:"slow"`
	SignalPeriod int    `yaml:"signal"`

	// rsi / bollinger
	Period    int     `yaml:"period"`
	Source    string  `yaml:"source"` // rsi only: "techan" (default) or "goti"
	BuyBelow  float64 `yaml:"buy_below"`
	SellAbove float64 `yaml:"sell_above"`

	Deviation   float64  `yaml:"deviation"`
	Band        BandMode `yaml:"band"`
	TrendPeriod int      `yaml:"trend"`
	RSIPeriod   int      `yaml:"rsi_period"`
	RSIExtreme  float64  `yaml:"rsi_extreme"`
	RSIExit     float64  `yaml:"rsi_exit"` // touch only: exit a long once RSI rises above this

	// timestop
	MaxBars int `yaml:"max_bars"`
}

// StrategyConfig holds all tunable parameters for one strategy instance.
// It is copied into the strategy at construction and never changed after.
type StrategyConfig struct {
	Name   string       `yaml:"name"`
	Symbol string       `yaml:"symbol"`
	Mode   CombineMode  `yaml:"mode"`
	Rules  []RuleConfig `yaml:"rules"`

	// GateBollinger applies the position gate to Bollinger rules in ModeAny.
	// Off by default: Bollinger is then checked on every bar regardless of
	// the current position.
	GateBollinger bool `yaml:"gate_bollinger"`

	// PrintLog enables per-order and per-trade logging.
	PrintLog bool `yaml:"printlog"`

	// Sizing. Stake is a fixed order size used unless MaxRiskPerTrade > 0.
	Stake           float64 `yaml:"stake"`
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade"` // e.g. 0.01 = 1 % of equity
	StopLossPct     float64 `yaml:"stop_loss_pct"`      // e.g. 0.015 = 1.5 %

	// QuantityPrecision defines the number of decimal places to round to
	// (e.g. 2 for crypto/futures, 0 for equities).
	QuantityPrecision int `yaml:"quantity_precision"`

	// Minimum order size accepted by the broker (e.g. 0.001 BTC).
	MinQty float64 `yaml:"min_qty"`

	// StepSize – the increment allowed by the exchange (e.g. 0.0001).
	StepSize float64 `yaml:"step_size"`
}

// WithDefaults returns a copy with unset parameters filled in. Periods
// follow the usual textbook values; the crossover defaults to the 50/200
// golden cross.
func (c StrategyConfig) WithDefaults() StrategyConfig {
	out := c
	out.Rules = make([]RuleConfig, len(c.Rules))
	for i, r := range c.Rules {
		out.Rules[i] = r.withDefaults()
	}
	if out.Mode == "" {
		out.Mode = ModeAny
		if len(out.Rules) == 1 {
			out.Mode = ModeSingle
		}
	}
	if out.Stake == 0 && out.MaxRiskPerTrade == 0 {
		out.Stake = 10
	}
	if out.Name == "" && len(out.Rules) > 0 {
		out.Name = string(out.Rules[0].Type)
	}
	return out
}

func (r RuleConfig) withDefaults() RuleConfig {
	setInt := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	setFloat := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	switch r.Type {
	case RuleCrossover:
		setInt(&r.FastPeriod, 50)
		setInt(&r.SlowPeriod, 200)
		if r.MA == "" {
			r.MA = "sma"
		}
	case RuleMACD:
		setInt(&r.FastPeriod, 12)
		setInt(&r.SlowPeriod, 26)
		setInt(&r.SignalPeriod, 9)
	case RuleRSI:
		setInt(&r.Period, 14)
		setFloat(&r.BuyBelow, 30)
		setFloat(&r.SellAbove, 70)
		if r.Source == "" {
			r.Source = SourceTechan
		}
	case RuleBollinger:
		setInt(&r.Period, 20)
		setFloat(&r.Deviation, 2)
		if r.Band == "" {
			r.Band = BandRecross
		}
		if r.Band == BandTouch {
			setInt(&r.TrendPeriod, 200)
			setInt(&r.RSIPeriod, 14)
			setFloat(&r.RSIExtreme, 30)
			setFloat(&r.RSIExit, 50)
		}
	}
	return r
}

// Validate checks that all numeric fields are within sensible bounds.
// It returns the first encountered error, allowing the caller to surface a
// clear configuration problem before any bar is processed.
func (c *StrategyConfig) Validate() error {
	if len(c.Rules) == 0 {
		return ErrNoRules
	}
	switch c.Mode {
	case ModeSingle:
		if len(c.Rules) != 1 {
			return fmt.Errorf("mode %q needs exactly one rule, got %d", c.Mode, len(c.Rules))
		}
	case ModeAny:
	default:
		return fmt.Errorf("unknown combine mode %q", c.Mode)
	}
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, c.Rules[i].Type, err)
		}
	}

	if c.MaxRiskPerTrade == 0 {
		if c.Stake <= 0 {
			return fmt.Errorf("Stake (%f) must be positive", c.Stake)
		}
		return nil
	}
	if c.MaxRiskPerTrade < 0 || c.MaxRiskPerTrade > 0.5 {
		return fmt.Errorf("MaxRiskPerTrade (%f) must be >0 and <=0.5", c.MaxRiskPerTrade)
	}
	if c.StopLossPct <= 0 || c.StopLossPct > 0.2 {
		return fmt.Errorf("StopLossPct (%f) must be >0 and <=0.2", c.StopLossPct)
	}
	if c.QuantityPrecision < 0 {
		return errors.New("QuantityPrecision cannot be negative")
	}
	if c.MinQty < 0 {
		return errors.New("MinQty cannot be negative")
	}
	if c.StepSize < 0 {
		return errors.New("StepSize cannot be negative")
	}
	return nil
}

// Validate checks a single rule declaration.
func (r *RuleConfig) Validate() error {
	switch r.Type {
	case RuleCrossover:
		if r.MA != "sma" && r.MA != "ema" {
			return fmt.Errorf("moving average kind %q not supported", r.MA)
		}
		return validateFastSlow(r.FastPeriod, r.SlowPeriod)
	case RuleMACD:
		if err := validateFastSlow(r.FastPeriod, r.SlowPeriod); err != nil {
			return err
		}
		if r.SignalPeriod <= 0 {
			return errors.New("signal period must be positive")
		}
	case RuleRSI:
		if r.Period <= 0 {
			return errors.New("rsi period must be positive")
		}
		if r.Source != SourceTechan && r.Source != SourceGoti {
			return fmt.Errorf("rsi source %q not supported", r.Source)
		}
		if r.BuyBelow >= r.SellAbove {
			return fmt.Errorf("buy_below (%g) must be below sell_above (%g)", r.BuyBelow, r.SellAbove)
		}
		if r.BuyBelow < 0 || r.SellAbove > 100 {
			return errors.New("rsi thresholds must lie within [0, 100]")
		}
	case RuleBollinger:
		if r.Period <= 1 {
			return errors.New("band period must be greater than one")
		}
		if r.Deviation <= 0 {
			return errors.New("deviation must be positive")
		}
		switch r.Band {
		case BandRecross:
		case BandTouch:
			if r.TrendPeriod <= 0 || r.RSIPeriod <= 0 {
				return errors.New("touch mode needs positive trend and rsi_period")
			}
			if r.RSIExtreme <= 0 || r.RSIExtreme >= 100 {
				return fmt.Errorf("rsi_extreme (%g) must lie within (0, 100)", r.RSIExtreme)
			}
			if r.RSIExit <= 0 || r.RSIExit >= 100 {
				return fmt.Errorf("rsi_exit (%g) must lie within (0, 100)", r.RSIExit)
			}
		default:
			return fmt.Errorf("band mode %q not supported", r.Band)
		}
	case RuleTimeStop:
		if r.MaxBars <= 0 {
			return errors.New("max_bars must be positive")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRule, r.Type)
	}
	return nil
}

func validateFastSlow(fast, slow int) error {
	if fast <= 0 || slow <= 0 {
		return errors.New("periods must be positive")
	}
	if fast >= slow {
		return fmt.Errorf("fast period (%d) must be shorter than slow period (%d)", fast, slow)
	}
	return nil
}
