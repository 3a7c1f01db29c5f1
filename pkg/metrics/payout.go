package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// PayoutMetrics records settlement sweep outcomes per batch kind
// (influencer/host).
type PayoutMetrics struct {
	groups  *prometheus.CounterVec
	settled *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout sweep metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	groups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roamnest",
		Name:      "payout_groups_total",
		Help:      "Payout groups handled per sweep, by outcome.",
	}, []string{"kind", "outcome"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roamnest",
		Name:      "payout_settled_amount",
		Help:      "Total settled amount per sweep kind and currency.",
	}, []string{"kind", "currency"})
	reg.MustRegister(groups, settled)
	return &PayoutMetrics{groups: groups, settled: settled}
}

// ObserveSweep records the outcome counts of one sweep run.
func (p *PayoutMetrics) ObserveSweep(kind string, processed, skipped, failed int) {
	if p == nil || p.groups == nil {
		return
	}
	p.groups.WithLabelValues(kind, "processed").Add(float64(processed))
	p.groups.WithLabelValues(kind, "skipped").Add(float64(skipped))
	p.groups.WithLabelValues(kind, "failed").Add(float64(failed))
}

// ObserveSettled records the settled amount for one currency.
func (p *PayoutMetrics) ObserveSettled(kind, currency string, amount decimal.Decimal) {
	if p == nil || p.settled == nil {
		return
	}
	value, _ := amount.Float64()
	p.settled.WithLabelValues(kind, currency).Add(value)
}
