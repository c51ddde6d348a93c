package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/sinc-labs/janitor/internal/domain"
)

// Action outcomes used as metric labels.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the janitor.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	actionsTotal *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	lastPurged   prometheus.Gauge
	lastReset    prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// janitor metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "janitor_runs_total",
				Help: "Reconciliation runs by final status.",
			},
			[]string{"status"},
		),
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "janitor_actions_total",
				Help: "Per-store actions by outcome.",
			},
			[]string{"action", "outcome"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "janitor_store_errors_total",
				Help: "Failed store calls by store.",
			},
			[]string{"store"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "janitor_run_duration_seconds",
				Help:    "Wall time of a reconciliation run.",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "janitor_last_run_timestamp_seconds",
				Help: "Unix time the last run finished.",
			},
		),
		lastPurged: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "janitor_last_run_purged",
				Help: "Accounts purged by the last run.",
			},
		),
		lastReset: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "janitor_last_run_reset",
				Help: "Usage counters reset by the last run.",
			},
		),
	}
}

// IncrAction counts one store action outcome.
func (m *Metrics) IncrAction(action, outcome string) {
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}

// IncrStoreError increments the failed-call counter for a store.
func (m *Metrics) IncrStoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// RecordRun records the outcome of a finished run.
func (m *Metrics) RecordRun(s *domain.RunSummary) {
	m.runsTotal.WithLabelValues(string(s.Status)).Inc()
	m.runDuration.Observe(s.Duration().Seconds())
	m.lastRun.Set(float64(s.FinishedAt.Unix()))
	m.lastPurged.Set(float64(s.PurgedCount))
	m.lastReset.Set(float64(s.ResetCount))
}

// Snapshot returns cumulative counters suitable for the GET /v1/metrics/janitor endpoint.
func (m *Metrics) Snapshot() *domain.JanitorMetrics {
	succeeded := getCounterValue(m.runsTotal, string(domain.RunStatusSucceeded))
	partial := getCounterValue(m.runsTotal, string(domain.RunStatusPartial))
	failed := getCounterValue(m.runsTotal, string(domain.RunStatusFailed))
	empty := getCounterValue(m.runsTotal, string(domain.RunStatusEmpty))

	var lastRun time.Time
	if ts := getGaugeValue(m.lastRun); ts > 0 {
		lastRun = time.Unix(int64(ts), 0).UTC()
	}

	return &domain.JanitorMetrics{
		RunsSucceeded:       int64(succeeded),
		RunsPartial:         int64(partial),
		RunsFailed:          int64(failed),
		RunsEmpty:           int64(empty),
		RecordStoreErrors:   int64(getCounterValue(m.storeErrors, domain.StoreRecord)),
		IdentityStoreErrors: int64(getCounterValue(m.storeErrors, domain.StoreIdentity)),
		LastRunFinishedAt:   lastRun,
		LastRunPurgedCount:  int64(getGaugeValue(m.lastPurged)),
		LastRunResetCount:   int64(getGaugeValue(m.lastReset)),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}
