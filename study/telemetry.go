package study

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	trialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_trials_total",
			Help: "Total number of study trials executed.",
		},
	)

	trialFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_trial_failures_total",
			Help: "Total number of study trials that failed.",
		},
	)

	imputedCellsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_imputed_cells_total",
			Help: "Total number of missing cells handled by imputation methods.",
		},
	)

	runsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_runs_total",
			Help: "Total number of completed study runs.",
		},
	)

	lastRunDurationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "study_last_run_duration_seconds",
			Help: "Wall-clock duration of the most recent study run.",
		},
	)

	registered uint32
)

// RegisterMetrics registers and exposes Prometheus metrics on /metrics.
func RegisterMetrics(mux *http.ServeMux) {
	if atomic.CompareAndSwapUint32(&registered, 0, 1) {
		prometheus.MustRegister(trialsTotal, trialFailuresTotal,
			imputedCellsTotal, runsTotal, lastRunDurationSeconds)
	}
	mux.Handle("/metrics", promhttp.Handler())
}

// recordTrial increments the trial counters.
func recordTrial(failed bool) {
	trialsTotal.Inc()
	if failed {
		trialFailuresTotal.Inc()
	}
}

// recordImputedCells adds to the imputed cell counter.
func recordImputedCells(n int) {
	if n > 0 {
		imputedCellsTotal.Add(float64(n))
	}
}

// recordRun records a completed run.
func recordRun(d time.Duration) {
	runsTotal.Inc()
	lastRunDurationSeconds.Set(d.Seconds())
}
