package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mining_claims_total",
			Help: "Claim attempts by result",
		},
		[]string{"result"},
	)
	TokensCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mining_tokens_credited_total",
			Help: "Tokens credited by claims and referral bonuses",
		},
		[]string{"token", "source"},
	)
	ReferralBonuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_bonuses_total",
			Help: "Referral bonus deliveries by outcome",
		},
		[]string{"outcome"},
	)
	Payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_payments_total",
			Help: "Payment proofs by lifecycle step",
		},
		[]string{"status"},
	)
	TiersDowngraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tier_downgrades_total",
			Help: "Accounts reset to free by the expiry sweep",
		},
	)
	BusDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_bus_deliveries_total",
			Help: "Event deliveries per consumer group and result",
		},
		[]string{"group", "result"},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open websocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(Claims)
	prometheus.MustRegister(TokensCredited)
	prometheus.MustRegister(ReferralBonuses)
	prometheus.MustRegister(Payments)
	prometheus.MustRegister(TiersDowngraded)
	prometheus.MustRegister(BusDeliveries)
	prometheus.MustRegister(WSConnections)
}
