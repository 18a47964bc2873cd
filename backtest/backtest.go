// Package backtest drives strategies over a historical bar stream against
// a paper broker.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/logger"
	"github.com/evdnx/gosig/strategy"
	"github.com/evdnx/gosig/types"
)

// Runner owns one paper broker and the strategies trading one symbol on it.
type Runner struct {
	symbol string
	cfg    config.BrokerConfig
	log    logger.Logger
	broker *executor.PaperBroker
	strats []*strategy.Strategy
}

// StrategyResult summarises one strategy's run.
type StrategyResult struct {
	Name    string         `json:"name"`
	Actions []types.Action `json:"actions"`
	Buys    int            `json:"buys"`
	Sells   int            `json:"sells"`
	Trades  int            `json:"trades"`
	Wins    int            `json:"wins"`
	Losses  int            `json:"losses"`
	NetPnL  float64        `json:"net_pnl"`
}

// Result holds the results of a backtest
type Result struct {
	Symbol         string                `json:"symbol"`
	Start          time.Time             `json:"start"`
	End            time.Time             `json:"end"`
	Bars           int                   `json:"bars"`
	StartValue     float64               `json:"start_value"`
	EndValue       float64               `json:"end_value"`
	ReturnPct      float64               `json:"return_pct"`
	BuyAndHoldPct  float64               `json:"buy_and_hold_pct"`
	MaxDrawdown    float64               `json:"max_drawdown"`
	MaxDrawdownPct float64               `json:"max_drawdown_pct"`
	EquityCurve    []float64             `json:"equity_curve"`
	Strategies     []StrategyResult      `json:"strategies"`
	Trades         []executor.TradeEvent `json:"trades"`
}

// New creates a runner for symbol with a fresh paper broker.
func New(symbol string, cfg config.BrokerConfig, log logger.Logger) (*Runner, error) {
	if symbol == "" {
		return nil, fmt.Errorf("backtest needs a symbol")
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		symbol: symbol,
		cfg:    cfg,
		log:    log,
		broker: executor.NewPaperBroker(cfg.Cash, cfg.Commission, log),
	}, nil
}

// AddStrategy builds a strategy from sc on the runner's broker. Names must
// be unique because they key the broker books.
func (r *Runner) AddStrategy(sc config.StrategyConfig) (*strategy.Strategy, error) {
	sc = sc.WithDefaults()
	if sc.Symbol != "" && sc.Symbol != r.symbol {
		return nil, fmt.Errorf("strategy %s trades %s, runner feeds %s", sc.Name, sc.Symbol, r.symbol)
	}
	for _, s := range r.strats {
		if s.Name == sc.Name {
			return nil, fmt.Errorf("duplicate strategy name %q", sc.Name)
		}
	}
	s, err := strategy.New(sc.Name, r.symbol, sc, r.broker, r.log, strategy.WithInterval(r.cfg.Interval))
	if err != nil {
		return nil, err
	}
	r.strats = append(r.strats, s)
	return s, nil
}

// Broker exposes the paper broker, e.g. for a metrics endpoint.
func (r *Runner) Broker() *executor.PaperBroker { return r.broker }

// Run feeds bars in order. For each bar the broker first fills what was
// ordered on the previous bar, then every strategy sees the bar.
// Cancellation is checked between bars.
func (r *Runner) Run(ctx context.Context, bars []types.Bar) (*Result, error) {
	if len(r.strats) == 0 {
		return nil, config.ErrNoRules
	}
	res := &Result{
		Symbol:      r.symbol,
		StartValue:  r.broker.Value(),
		EquityCurve: make([]float64, 0, len(bars)),
	}
	start := time.Now()
	for i, b := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest stopped at bar %d: %w", i, err)
		}
		r.broker.OnBar(r.symbol, b)
		for _, s := range r.strats {
			s.ProcessBar(b)
		}
		res.EquityCurve = append(res.EquityCurve, r.broker.Value())
	}
	for _, s := range r.strats {
		s.Stop()
	}

	res.Bars = len(bars)
	if len(bars) > 0 {
		res.Start, res.End = bars[0].Time, bars[len(bars)-1].Time
		if first := bars[0].Close; first != 0 {
			res.BuyAndHoldPct = (bars[len(bars)-1].Close - first) / first * 100
		}
	}
	res.EndValue = r.broker.Value()
	if res.StartValue != 0 {
		res.ReturnPct = (res.EndValue - res.StartValue) / res.StartValue * 100
	}
	res.MaxDrawdown, res.MaxDrawdownPct = drawdown(res.StartValue, res.EquityCurve)
	res.Trades = r.broker.Trades()
	res.Strategies = r.summarise(res.Trades)

	r.log.Info("backtest_finished",
		logger.String("symbol", r.symbol),
		logger.Int("bars", res.Bars),
		logger.Int("trades", len(res.Trades)),
		logger.Float64("end_value", res.EndValue),
		logger.String("took", time.Since(start).String()),
	)
	return res, nil
}

func (r *Runner) summarise(trades []executor.TradeEvent) []StrategyResult {
	out := make([]StrategyResult, 0, len(r.strats))
	for _, s := range r.strats {
		sr := StrategyResult{Name: s.Name, Actions: s.Actions()}
		for _, a := range sr.Actions {
			switch a {
			case types.ActionBuy:
				sr.Buys++
			case types.ActionSell:
				sr.Sells++
			}
		}
		for _, tr := range trades {
			if tr.Book != s.Name {
				continue
			}
			sr.Trades++
			sr.NetPnL += tr.Net
			if tr.Net > 0 {
				sr.Wins++
			} else {
				sr.Losses++
			}
		}
		out = append(out, sr)
	}
	return out
}

// drawdown returns the largest peak-to-trough fall of the curve, in money
// and as a percentage of the peak.
func drawdown(start float64, curve []float64) (float64, float64) {
	peak := start
	var maxDD, maxPct float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
			if peak != 0 {
				maxPct = dd / peak * 100
			}
		}
	}
	return maxDD, maxPct
}
