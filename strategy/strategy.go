// Package strategy runs a signal engine against a live bar stream and a
// broker. One Strategy type serves every rule combination; the rules come
// from config.
package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/indicator"
	"github.com/evdnx/gosig/logger"
	"github.com/evdnx/gosig/metrics"
	"github.com/evdnx/gosig/risk"
	"github.com/evdnx/gosig/signal"
	"github.com/evdnx/gosig/types"
)

// phase tracks whether an order is in flight. While awaiting a fill no new
// order is sent, whatever the rules say.
type phase int

const (
	phaseReady phase = iota
	phaseAwaitingFill
)

func (p phase) String() string {
	if p == phaseAwaitingFill {
		return "awaiting_fill"
	}
	return "ready"
}

// Strategy bundles the engine with its indicators, broker and logger.
type Strategy struct {
	Name   string
	Symbol string
	Cfg    config.StrategyConfig
	Broker executor.Broker
	Log    logger.Logger

	engine *signal.Engine
	inds   *indicator.Set
	sizer  risk.Sizer

	phase     phase
	pendingID string

	bars      int // bars processed so far
	entryBar  int // value of bars on the bar the open position was filled
	markEntry bool
	holding   bool
	lastTime  time.Time

	actions []types.Action
}

// Option tweaks a Strategy at construction.
type Option func(*options)

type options struct {
	interval time.Duration
}

// WithInterval sets the bar length handed to the indicator series.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// New validates cfg, builds the engine and subscribes to the broker under
// name. Empty name and symbol fall back to the config's.
func New(name, symbol string, cfg config.StrategyConfig, broker executor.Broker, log logger.Logger, opts ...Option) (*Strategy, error) {
	if broker == nil {
		return nil, errors.New("strategy needs a broker")
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.WithDefaults()
	if name == "" {
		name = cfg.Name
	}
	if symbol == "" {
		symbol = cfg.Symbol
	}
	if name == "" || symbol == "" {
		return nil, errors.New("strategy needs a name and a symbol")
	}
	engine, err := signal.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	inds := indicator.NewSet(o.interval)
	var keys []indicator.Key
	for _, q := range engine.Requires() {
		keys = append(keys, q.Key)
	}
	if err := inds.Track(keys...); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}

	s := &Strategy{
		Name:   name,
		Symbol: symbol,
		Cfg:    cfg,
		Broker: broker,
		Log:    log,
		engine: engine,
		inds:   inds,
		sizer:  risk.SizerFor(cfg),
	}
	broker.Subscribe(name, s)
	return s, nil
}

// ProcessBar feeds one bar to the indicators, asks the engine for a
// decision and, on Buy or Sell, submits the order. It returns the action
// taken on this bar: Hold when no order went out.
func (s *Strategy) ProcessBar(bar types.Bar) types.Action {
	if err := s.inds.Add(bar); err != nil {
		if errors.Is(err, indicator.ErrOutOfOrder) {
			s.Log.Error("bar_rejected", logger.String("strategy", s.Name), logger.Err(err))
			return types.Hold
		}
		s.Log.Warn("indicator_add_error", logger.String("strategy", s.Name), logger.Err(err))
	}
	s.bars++
	s.lastTime = bar.Time
	if s.markEntry {
		s.entryBar = s.bars
		s.markEntry = false
	}

	qty, _ := s.Broker.Position(s.Name, s.Symbol)
	pos := types.PositionOf(qty)
	st := signal.State{
		Position: pos,
		Pending:  s.phase == phaseAwaitingFill,
	}
	if pos != types.Flat {
		st.BarsHeld = s.bars - s.entryBar
	}

	d := s.engine.Decide(s.inds, st)
	taken := s.take(d, bar, qty)
	metrics.Decisions.WithLabelValues(s.Name, taken.String()).Inc()
	s.actions = append(s.actions, taken)
	return taken
}

func (s *Strategy) take(d signal.Decision, bar types.Bar, held float64) types.Action {
	if d.Action == types.Hold {
		return types.Hold
	}
	if s.Cfg.PrintLog {
		s.Log.Info("signal",
			logger.String("strategy", s.Name),
			logger.String("action", d.Action.String()),
			logger.String("rule", d.Rule),
			logger.Float64("close", bar.Close),
			logger.String("date", bar.Time.Format(time.DateOnly)),
		)
	}
	if !s.act(d, bar.Close, held) {
		return types.Hold
	}
	return d.Action
}

// Actions returns the action taken on every processed bar, oldest first.
func (s *Strategy) Actions() []types.Action {
	out := make([]types.Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// Pending reports whether an order is in flight.
func (s *Strategy) Pending() bool { return s.phase == phaseAwaitingFill }

// Engine exposes the decision engine, mostly for inspection in tests.
func (s *Strategy) Engine() *signal.Engine { return s.engine }

// Stop logs the final account value. It is always logged, printlog or not.
func (s *Strategy) Stop() {
	s.Log.Info("ending_value",
		logger.String("strategy", s.Name),
		logger.Float64("value", s.Broker.Value()),
		logger.String("date", s.lastTime.Format(time.DateOnly)),
	)
}
