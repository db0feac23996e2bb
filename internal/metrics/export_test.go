package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithNow sets the clock of the Recorder.
func WithNow(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}

// Registry returns the registry of the Recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
