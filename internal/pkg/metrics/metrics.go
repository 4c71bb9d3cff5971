package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the inventory counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	UnitsCreated       *prometheus.CounterVec
	UnitTransitions    *prometheus.CounterVec
	TransitionRetries  prometheus.Counter
	SweepRuns          prometheus.Counter
	SweepExpired       prometheus.Counter
	SweepFailures      prometheus.Counter
	SweepDuration      prometheus.Histogram
	Reservations       *prometheus.CounterVec
	HoldsExpired       prometheus.Counter
	DonationsRecorded  prometheus.Counter
	DonationsRefused   prometheus.Counter
	EligibilityRestore prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UnitsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_units_created_total",
			Help: "Blood units created, by component type",
		}, []string{"component_type"}),
		UnitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_unit_transitions_total",
			Help: "Applied unit status transitions",
		}, []string{"from", "to"}),
		TransitionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_unit_transition_retries_total",
			Help: "Transitions re-evaluated after a version conflict",
		}),
		SweepRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_expiry_sweep_runs_total",
			Help: "Completed expiry sweeps",
		}),
		SweepExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_expiry_sweep_units_expired_total",
			Help: "Units moved to expired by the sweeper",
		}),
		SweepFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_expiry_sweep_unit_failures_total",
			Help: "Per-unit failures skipped by the sweeper",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodbank_expiry_sweep_duration_seconds",
			Help:    "Wall time of an expiry sweep",
			Buckets: prometheus.DefBuckets,
		}),
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_reservations_total",
			Help: "Reservation outcomes",
		}, []string{"outcome"}),
		HoldsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_reservation_holds_expired_total",
			Help: "Reservations auto-released after their hold time",
		}),
		DonationsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_donations_recorded_total",
			Help: "Accepted donations",
		}),
		DonationsRefused: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_donations_refused_total",
			Help: "Donations refused because the donor was ineligible",
		}),
		EligibilityRestore: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_donors_eligibility_restored_total",
			Help: "Donors made eligible again by the deferral rule",
		}),
	}
}

func (m *Metrics) UnitCreated(component string) {
	if m == nil {
		return
	}
	m.UnitsCreated.WithLabelValues(component).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.UnitTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) TransitionRetried() {
	if m == nil {
		return
	}
	m.TransitionRetries.Inc()
}

func (m *Metrics) SweepCompleted(expired, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
	m.SweepExpired.Add(float64(expired))
	m.SweepFailures.Add(float64(failed))
	m.SweepDuration.Observe(seconds)
}

// Reservation counts an outcome: reserved, insufficient, committed, released, failed.
func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HoldExpired() {
	if m == nil {
		return
	}
	m.HoldsExpired.Inc()
}

func (m *Metrics) Donation(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.DonationsRecorded.Inc()
		return
	}
	m.DonationsRefused.Inc()
}

func (m *Metrics) EligibilityRestored(n int) {
	if m == nil {
		return
	}
	m.EligibilityRestore.Add(float64(n))
}
