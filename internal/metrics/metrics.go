package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the import pipeline,
// labeled by provider.
type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	RecordsAccepted  *prometheus.CounterVec
	Quarantined      *prometheus.CounterVec
	DuplicatesFound  *prometheus.CounterVec
	TeamsMatched     *prometheus.CounterVec
	TeamsCreated     *prometheus.CounterVec
	FuzzyOutcomes    *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
}

// New creates and registers the pipeline collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_records_processed_total",
			Help: "Raw perspective records taken in per provider.",
		}, []string{"provider"}),
		RecordsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_records_accepted_total",
			Help: "Canonical game records persisted per provider.",
		}, []string{"provider"}),
		Quarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_records_quarantined_total",
			Help: "Records rejected by validation per provider and reason.",
		}, []string{"provider", "reason"}),
		DuplicatesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_duplicates_found_total",
			Help: "Records dropped as duplicates of persisted games.",
		}, []string{"provider"}),
		TeamsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_teams_matched_total",
			Help: "Team references resolved to existing master teams.",
		}, []string{"provider"}),
		TeamsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_teams_created_total",
			Help: "New master teams created by matcher fallbacks.",
		}, []string{"provider"}),
		FuzzyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concordia_fuzzy_outcomes_total",
			Help: "Fuzzy match outcomes per provider and tier.",
		}, []string{"provider", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concordia_import_run_seconds",
			Help:    "Wall-clock duration of import runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.RecordsProcessed, m.RecordsAccepted, m.Quarantined, m.DuplicatesFound,
		m.TeamsMatched, m.TeamsCreated, m.FuzzyOutcomes, m.RunDuration,
	)

	return m
}
