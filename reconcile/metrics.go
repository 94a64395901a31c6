package reconcile

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/dsp-reconciler/staffing"
)

var (
	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dsp",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Total number of reconciliation runs broken down by mode and result.",
	}, []string{"mode", "result"})

	reconcileRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dsp",
		Subsystem: "reconcile",
		Name:      "rows_total",
		Help:      "Total number of reconciled rows broken down by match status.",
	}, []string{"status"})

	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dsp",
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Duration of reconciliation runs, ingestion to persistence.",
		Buckets: []float64{
			0.005, 0.01, 0.025,
			0.05, 0.1, 0.25,
			0.5, 1, 2.5, 5, 10,
		},
	}, []string{"mode"})
)

func recordRun(mode string, started time.Time, err error) {
	reconcileRuns.WithLabelValues(mode, resultLabel(err)).Inc()
	reconcileDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

func recordRows(matched, unmatched int) {
	reconcileRows.WithLabelValues("matched").Add(float64(matched))
	reconcileRows.WithLabelValues("unmatched").Add(float64(unmatched))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, staffing.ErrIngest):
		return "ingest_error"
	case errors.Is(err, staffing.ErrCatalog):
		return "catalog_error"
	case errors.Is(err, staffing.ErrStore):
		return "store_error"
	case staffing.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
