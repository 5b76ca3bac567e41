// Package metrics provides Prometheus instrumentation for a loadcast run.
//
// loadcast is a batch job with no HTTP endpoint, so metrics live in a private
// registry and are written once at the end of the run in the text exposition
// format, ready for the node_exporter textfile collector.
//
// Metrics exposed:
//   - loadcast_stage_duration_seconds: Histogram of pipeline stage durations by stage
//   - loadcast_history_points: Gauge of observations used for training
//   - loadcast_skipped_rows: Gauge of input rows without a demand value
//   - loadcast_forecast_points: Gauge of future points produced by the model
//   - loadcast_predicted_cost: Gauge of the total predicted cost over the horizon
//   - loadcast_last_run_timestamp_seconds: Gauge of the run completion time
//   - loadcast_errors_total: Counter of run failures by stage
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	HistoryPoints    prometheus.Gauge
	SkippedRows      prometheus.Gauge
	ForecastPoints   prometheus.Gauge
	PredictedCost    prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec
}

// New registers the run metrics in a fresh registry. model is attached as a
// constant label so runs of different models can share a textfile directory.
func New(model string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"model": model}

	return &Metrics{
		Registry: reg,

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "loadcast_stage_duration_seconds",
			Help:        "Time spent in each pipeline stage",
			Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: labels,
		}, []string{"stage"}),

		HistoryPoints: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_history_points",
			Help:        "Number of observations used to train the model",
			ConstLabels: labels,
		}),

		SkippedRows: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_skipped_rows",
			Help:        "Number of input rows skipped for a missing demand value",
			ConstLabels: labels,
		}),

		ForecastPoints: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_forecast_points",
			Help:        "Number of future points produced by the model",
			ConstLabels: labels,
		}),

		PredictedCost: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_predicted_cost",
			Help:        "Total predicted cost over the forecast horizon",
			ConstLabels: labels,
		}),

		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "loadcast_last_run_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: labels,
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "loadcast_errors_total",
			Help:        "Total number of run failures by stage",
			ConstLabels: labels,
		}, []string{"stage"}),
	}
}

func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) SetHistory(points, skipped int) {
	m.HistoryPoints.Set(float64(points))
	m.SkippedRows.Set(float64(skipped))
}

func (m *Metrics) SetForecastPoints(points int) {
	m.ForecastPoints.Set(float64(points))
}

func (m *Metrics) SetPredictedCost(cost float64) {
	m.PredictedCost.Set(cost)
}

func (m *Metrics) MarkRun(t time.Time) {
	m.LastRunTimestamp.Set(float64(t.Unix()))
}

func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
