package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosig_orders_submitted_total",
			Help: "Total number of orders submitted (by strategy).",
		},
		[]string{"strategy"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosig_orders_rejected_total",
			Help: "Orders that ended canceled, margin-rejected or rejected (by strategy and status).",
		},
		[]string{"strategy", "status"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosig_decisions_total",
			Help: "Per-bar actions taken, Hold when no order went out (by strategy and action).",
		},
		[]string{"strategy", "action"},
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gosig_positions_open",
			Help: "Current number of open positions per strategy.",
		},
		[]string{"strategy"},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gosig_equity",
			Help: "Current value of the broker account (cash plus marked positions).",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersSubmitted, OrdersRejected, Decisions, PositionsOpen, EquityGauge)
}
