// Package metrics counts the work of a conversion run so batch jobs can
// hand the numbers to the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "magick_tile"

// Recorder collects the metrics of one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry     *prometheus.Registry
	invocations  *prometheus.CounterVec
	failures     *prometheus.CounterVec
	filesWritten *prometheus.CounterVec
	stageSeconds *prometheus.GaugeVec
	sourcePixels prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Engine operations started, by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_failures_total",
			Help:      "Engine operations that failed, by operation.",
		}, []string{"op"}),
		filesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Output image files written, by kind (tile, full) and format.",
		}, []string{"kind", "format"}),
		stageSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each conversion stage.",
		}, []string{"stage"}),
		sourcePixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_pixels",
			Help:      "Pixel count of the source image.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful conversion finished.",
		}),
	}
	r.registry.MustRegister(r.invocations, r.failures, r.filesWritten, r.stageSeconds, r.sourcePixels, r.lastSuccess)
	return r
}

// Operation counts one engine call and, if err is non-nil, one failure.
func (r *Recorder) Operation(op string, err error) {
	if r == nil {
		return
	}
	r.invocations.WithLabelValues(op).Inc()
	if err != nil {
		r.failures.WithLabelValues(op).Inc()
	}
}

// FileWritten counts one output image.
func (r *Recorder) FileWritten(kind, format string) {
	if r == nil {
		return
	}
	r.filesWritten.WithLabelValues(kind, format).Inc()
}

// Stage records how long a stage took.
func (r *Recorder) Stage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageSeconds.WithLabelValues(stage).Set(d.Seconds())
}

// Source records the size of the source image.
func (r *Recorder) Source(width, height int) {
	if r == nil {
		return
	}
	r.sourcePixels.Set(float64(width) * float64(height))
}

// Succeeded marks the run as finished successfully at t.
func (r *Recorder) Succeeded(t time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(t.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes the metrics in text exposition format, atomically.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
