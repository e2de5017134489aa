// Package metrics counts conversions in Prometheus metrics, for the textfile
// collector of a node exporter.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voxelsplace/model2glb/api"
)

// Recorder holds the conversion metrics in its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	notices     *prometheus.CounterVec
	outputBytes prometheus.Counter
	duration    prometheus.Histogram
}

// NewRecorder creates and registers all conversion metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model2glb_conversions_total",
				Help: "Finished conversions by result and failed stage",
			},
			[]string{"result", "stage"},
		),
		notices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model2glb_notices_total",
				Help: "Recorded notices by tier",
			},
			[]string{"tier"},
		),
		outputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "model2glb_output_bytes_total",
				Help: "Bytes of GLB written",
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "model2glb_conversion_duration_seconds",
				Help:    "Wall time of a conversion run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}

// Observe records a finished run. It has the signature api.WithObserver
// expects.
func (r *Recorder) Observe(res *api.Result, took time.Duration) {
	if res == nil {
		return
	}
	result, stage := "success", "none"
	if !res.DidSucceed {
		result, stage = "failure", res.FailedStage.String()
	}
	r.conversions.WithLabelValues(result, stage).Inc()
	for _, n := range res.Notices {
		r.notices.WithLabelValues(n.Tier().String()).Inc()
	}
	r.outputBytes.Add(float64(res.OutputBytes))
	r.duration.Observe(took.Seconds())
}

// RunOption returns the pipeline option feeding this recorder.
func (r *Recorder) RunOption() api.RunOption {
	return api.WithObserver(r.Observe)
}

// Registry exposes the registry, for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
