package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters updated by a conversion run.
type Metrics struct {
	Contacts       prometheus.Counter
	ContactsFailed prometheus.Counter
	EventsWritten  prometheus.Counter
	FilesRemoved   prometheus.Counter
	RunDuration    prometheus.Histogram
}

// New registers the metrics on reg. Use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Contacts: factory.NewCounter(prometheus.CounterOpts{
			Name: "event_extractor_contacts_total",
			Help: "Contacts read from all inputs",
		}),
		ContactsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "event_extractor_contacts_failed_total",
			Help: "Contacts that could not be converted",
		}),
		EventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "event_extractor_events_written_total",
			Help: "Reminder files written",
		}),
		FilesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "event_extractor_files_removed_total",
			Help: "Stale .ics files removed before regeneration",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "event_extractor_run_duration_seconds",
			Help:    "Duration of a full conversion run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Nop returns metrics registered on a private registry, for callers that do
// not export them.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
