// Package metrics records the outcome of a run in a Prometheus textfile,
// to be picked up by the node exporter textfile collector.
package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ubuntu/decorate"
)

const namespace = "freely_split"

// Run is the outcome of a successful run.
type Run struct {
	Channels int
	Events   int
	Skipped  int
	Filtered int
}

// Recorder holds the metrics of a single run.
type Recorder struct {
	registry *prometheus.Registry
	now      func() time.Time

	lastRun       prometheus.Gauge
	success       prometheus.Gauge
	channels      prometheus.Gauge
	events        prometheus.Gauge
	skipped       prometheus.Gauge
	filtered      prometheus.Gauge
	fetchDuration prometheus.Gauge
}

type options struct {
	// Private members exported for tests.
	now func() time.Time
}

// Options represents an optional function to override Recorder default values.
type Options func(*options)

// New returns a Recorder with all its metrics registered.
func New(args ...Options) *Recorder {
	opts := options{now: time.Now}
	for _, opt := range args {
		opt(&opts)
	}

	reg := prometheus.NewRegistry()
	gauge := func(name, help string) prometheus.Gauge {
		return promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Recorder{
		registry: reg,
		now:      opts.now,

		lastRun:       gauge("last_run_timestamp_seconds", "UNIX time of the last run."),
		success:       gauge("last_run_success", "Whether the last run succeeded."),
		channels:      gauge("channels_written", "Number of channel files written by the last run."),
		events:        gauge("events_written", "Number of events written by the last run."),
		skipped:       gauge("events_skipped", "Number of guide entries attached to no channel in the last run."),
		filtered:      gauge("channels_filtered", "Number of channels left out by the lineup in the last run."),
		fetchDuration: gauge("fetch_duration_seconds", "Duration of the guide download of the last run."),
	}
}

// ObserveFetch records how long the guide download took.
func (r *Recorder) ObserveFetch(d time.Duration) {
	r.fetchDuration.Set(d.Seconds())
}

// Succeeded marks the run as successful.
func (r *Recorder) Succeeded(run Run) {
	r.lastRun.Set(float64(r.now().Unix()))
	r.success.Set(1)
	r.channels.Set(float64(run.Channels))
	r.events.Set(float64(run.Events))
	r.skipped.Set(float64(run.Skipped))
	r.filtered.Set(float64(run.Filtered))
}

// Failed marks the run as failed. Counts of a failed run are reset.
func (r *Recorder) Failed() {
	r.lastRun.Set(float64(r.now().Unix()))
	r.success.Set(0)
	r.channels.Set(0)
	r.events.Set(0)
	r.skipped.Set(0)
	r.filtered.Set(0)
}

// WriteTextfile atomically writes the metrics in the Prometheus text format to path.
func (r *Recorder) WriteTextfile(path string) (err error) {
	defer decorate.OnError(&err, "could not write metrics to %s", path)

	if path == "" {
		return fmt.Errorf("no metrics file given")
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return err
	}
	slog.Debug("Metrics written", "file", path)
	return nil
}
