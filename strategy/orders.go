package strategy

import (
	"math"
	"time"

	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/logger"
	"github.com/evdnx/gosig/metrics"
	"github.com/evdnx/gosig/signal"
	"github.com/evdnx/gosig/types"
)

// act turns a Buy or Sell decision into a market order. An order against
// the open position closes all of it; anything else is an entry sized by
// the configured sizer. It reports whether the order was accepted for
// submission.
func (s *Strategy) act(d signal.Decision, price, held float64) bool {
	side, ok := d.Action.Side()
	if !ok {
		return false
	}
	var qty float64
	ctx := "entry"
	if (held > 0 && side == types.Sell) || (held < 0 && side == types.Buy) {
		qty = math.Abs(held)
		ctx = "exit"
	} else {
		qty = s.sizer.Size(price, s.Broker.Value())
	}
	if qty <= 0 {
		s.Log.Warn("order_size_zero",
			logger.String("strategy", s.Name),
			logger.String("side", string(side)),
			logger.Float64("price", price),
		)
		return false
	}
	o := types.Order{
		Strategy: s.Name,
		Symbol:   s.Symbol,
		Side:     side,
		Qty:      qty,
		Comment:  d.Rule,
	}
	return s.submitOrder(o, ctx) == nil
}

// submitOrder is a thin wrapper that records metrics, logs and raises the
// pending flag. The flag goes up before Submit so a broker that reports a
// final status synchronously still lowers it.
func (s *Strategy) submitOrder(o types.Order, ctx string) error {
	s.phase = phaseAwaitingFill
	id, err := s.Broker.Submit(o)
	if err != nil {
		s.phase = phaseReady
		s.Log.Error("order_submit_failed",
			logger.String("strategy", s.Name),
			logger.String("symbol", o.Symbol),
			logger.String("side", string(o.Side)),
			logger.Float64("qty", o.Qty),
			logger.Err(err),
		)
		return err
	}
	if s.phase == phaseAwaitingFill {
		s.pendingID = id
	}
	if s.Cfg.PrintLog {
		s.Log.Info("order_submitted",
			logger.String("strategy", s.Name),
			logger.String("id", id),
			logger.String("symbol", o.Symbol),
			logger.String("side", string(o.Side)),
			logger.Float64("qty", o.Qty),
			logger.String("rule", o.Comment),
			logger.String("ctx", ctx),
		)
	}
	metrics.OrdersSubmitted.WithLabelValues(s.Name).Inc()
	return nil
}

// OnOrder consumes broker status notifications. Only a final status clears
// the pending flag; on failure the position is left as the broker reports
// it and nothing is retried.
func (s *Strategy) OnOrder(ev executor.OrderEvent) {
	if s.pendingID != "" && ev.Order.ID != s.pendingID {
		return
	}
	if !ev.Status.Terminal() {
		return
	}
	if ev.Status == types.OrderCompleted {
		if s.Cfg.PrintLog {
			s.Log.Info("order_executed",
				logger.String("strategy", s.Name),
				logger.String("side", string(ev.Order.Side)),
				logger.Float64("price", ev.ExecPrice),
				logger.Float64("cost", ev.ExecValue),
				logger.Float64("comm", ev.Commission),
				logger.String("date", ev.Time.Format(time.DateOnly)),
			)
		}
		s.trackPosition()
	} else {
		s.Log.Warn("order_rejected",
			logger.String("strategy", s.Name),
			logger.String("id", ev.Order.ID),
			logger.String("status", string(ev.Status)),
		)
		metrics.OrdersRejected.WithLabelValues(s.Name, string(ev.Status)).Inc()
	}
	s.phase = phaseReady
	s.pendingID = ""
}

// OnTrade logs the result of a closed trade.
func (s *Strategy) OnTrade(ev executor.TradeEvent) {
	if !s.Cfg.PrintLog {
		return
	}
	s.Log.Info("trade_closed",
		logger.String("strategy", s.Name),
		logger.Float64("gross", ev.Gross),
		logger.Float64("net", ev.Net),
	)
}

// trackPosition records when the book leaves flat so BarsHeld can be
// counted from the fill bar.
func (s *Strategy) trackPosition() {
	qty, _ := s.Broker.Position(s.Name, s.Symbol)
	switch {
	case qty == 0:
		s.holding = false
		s.markEntry = false
		metrics.PositionsOpen.WithLabelValues(s.Name).Set(0)
	case !s.holding:
		s.holding = true
		s.markEntry = true
		metrics.PositionsOpen.WithLabelValues(s.Name).Set(1)
	}
}
