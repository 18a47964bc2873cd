package signal

import (
	"fmt"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/indicator"
)

// FromConfig validates cfg and builds its engine.
func FromConfig(cfg config.StrategyConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(cfg.Rules))
	for i, rc := range cfg.Rules {
		r, err := BuildRule(rc)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return NewEngine(cfg.Mode, rules, GateBands(cfg.GateBollinger))
}

// BuildRule turns one declaration into a Rule.
func BuildRule(rc config.RuleConfig) (Rule, error) {
	switch rc.Type {
	case config.RuleCrossover:
		if rc.MA == "ema" {
			return NewCrossoverRule(indicator.EMA(rc.FastPeriod), indicator.EMA(rc.SlowPeriod)), nil
		}
		return NewCrossoverRule(indicator.SMA(rc.FastPeriod), indicator.SMA(rc.SlowPeriod)), nil
	case config.RuleMACD:
		return NewMACDRule(rc.FastPeriod, rc.SlowPeriod, rc.SignalPeriod), nil
	case config.RuleRSI:
		key := indicator.RSI(rc.Period)
		if rc.Source == config.SourceGoti {
			key = indicator.GotiRSI(rc.Period)
		}
		return &RSIRule{RSI: key, BuyBelow: rc.BuyBelow, SellAbove: rc.SellAbove}, nil
	case config.RuleBollinger:
		r := &BollingerRule{
			Mode:  rc.Band,
			Close: indicator.Close(),
			Lower: indicator.BollLower(rc.Period, rc.Deviation),
			Upper: indicator.BollUpper(rc.Period, rc.Deviation),
		}
		if rc.Band == config.BandTouch {
			r.Trend = indicator.SMA(rc.TrendPeriod)
			r.RSI = indicator.RSI(rc.RSIPeriod)
			r.RSIExtreme = rc.RSIExtreme
			r.RSIExit = rc.RSIExit
		}
		return r, nil
	case config.RuleTimeStop:
		return &TimeStopRule{MaxBars: rc.MaxBars}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownRule, rc.Type)
}
