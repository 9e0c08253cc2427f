// Package observability defines the engine's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement engine. A nil
// *Metrics is valid and records nothing, which keeps tests free of registry
// setup.
type Metrics struct {
	BetsPlaced       prometheus.Counter
	EventsResolved   *prometheus.CounterVec // outcome: settled|voided
	BetsSettled      *prometheus.CounterVec // status: won|lost|voided
	ParlaysCreated   prometheus.Counter
	WagersSettled    *prometheus.CounterVec // status: won|lost|voided
	MatchesCreated   prometheus.Counter
	MatchesCompleted *prometheus.CounterVec // result: win|draw|timeout|cancelled
	PayoutCents      prometheus.Counter
	TxRetries        prometheus.Counter
	TxConflicts      prometheus.Counter
	OpDuration       *prometheus.HistogramVec // op
}

// New creates and registers all engine metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BetsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_bets_placed_total",
			Help: "Single bets accepted.",
		}),
		EventsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stakehouse_events_resolved_total",
			Help: "Events transitioned to a terminal state.",
		}, []string{"outcome"}),
		BetsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stakehouse_bets_settled_total",
			Help: "Single bets swept to a terminal state.",
		}, []string{"status"}),
		ParlaysCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_parlays_created_total",
			Help: "Parlay tickets created.",
		}),
		WagersSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stakehouse_parlay_wagers_settled_total",
			Help: "Parlay wagers settled to a terminal state.",
		}, []string{"status"}),
		MatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_matches_created_total",
			Help: "Wagered matches opened.",
		}),
		MatchesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stakehouse_matches_completed_total",
			Help: "Wagered matches reaching a terminal state.",
		}, []string{"result"}),
		PayoutCents: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_payout_cents_total",
			Help: "Total cents credited to winners across all settlement paths.",
		}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_tx_retries_total",
			Help: "Optimistic transaction retries after version conflicts.",
		}),
		TxConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakehouse_tx_conflicts_total",
			Help: "Operations that exhausted their retry budget.",
		}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stakehouse_op_duration_seconds",
			Help:    "End-to-end duration of engine operations.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
	}
}

// Counter helpers below are nil-safe so services can run without metrics.

func (m *Metrics) IncBetsPlaced() {
	if m != nil {
		m.BetsPlaced.Inc()
	}
}

func (m *Metrics) IncEventsResolved(outcome string) {
	if m != nil {
		m.EventsResolved.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncBetsSettled(status string) {
	if m != nil {
		m.BetsSettled.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncParlaysCreated() {
	if m != nil {
		m.ParlaysCreated.Inc()
	}
}

func (m *Metrics) IncWagersSettled(status string) {
	if m != nil {
		m.WagersSettled.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncMatchesCreated() {
	if m != nil {
		m.MatchesCreated.Inc()
	}
}

func (m *Metrics) IncMatchesCompleted(result string) {
	if m != nil {
		m.MatchesCompleted.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AddPayoutCents(cents int64) {
	if m != nil && cents > 0 {
		m.PayoutCents.Add(float64(cents))
	}
}

func (m *Metrics) IncTxRetries() {
	if m != nil {
		m.TxRetries.Inc()
	}
}

func (m *Metrics) IncTxConflicts() {
	if m != nil {
		m.TxConflicts.Inc()
	}
}

func (m *Metrics) ObserveOp(op string, seconds float64) {
	if m != nil {
		m.OpDuration.WithLabelValues(op).Observe(seconds)
	}
}
