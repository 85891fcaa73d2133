// Package metrics exposes soft delete activity as Prometheus counters.
package metrics

import (
	"context"
	"fmt"

	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/goliatone/go-auth-softdelete/activitymap"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures the activity collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	// Normalize options applied before labelling an event.
	Normalize []activitymap.Option
}

// ActivityMetrics counts soft delete activity events. It implements
// softdelete.ActivitySink so it can be combined with other sinks.
type ActivityMetrics struct {
	Events          *prometheus.CounterVec
	RestoreFailures *prometheus.CounterVec
	normalize       []activitymap.Option
}

// NewActivityMetrics constructs and registers the collectors.
func NewActivityMetrics(opts Options) (*ActivityMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "softdelete"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "events_total",
		Help:      "Total number of soft delete activity events partitioned by verb and channel.",
	}, []string{"verb", "channel"}))
	if err != nil {
		return nil, fmt.Errorf("register events collector: %w", err)
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "restore_failures_total",
		Help:      "Total number of rejected restore attempts partitioned by reason.",
	}, []string{"reason"}))
	if err != nil {
		return nil, fmt.Errorf("register restore failures collector: %w", err)
	}

	return &ActivityMetrics{
		Events:          events,
		RestoreFailures: failures,
		normalize:       opts.Normalize,
	}, nil
}

// Record implements softdelete.ActivitySink.
func (m *ActivityMetrics) Record(_ context.Context, event softdelete.ActivityEvent) error {
	if m == nil {
		return nil
	}

	record := activitymap.Normalize(event, m.normalize...)
	m.Events.WithLabelValues(record.Verb, record.Channel).Inc()

	if event.EventType == softdelete.ActivityEventRestoreFailed {
		reason := record.Reason
		if reason == "" {
			reason = "unknown"
		}
		m.RestoreFailures.WithLabelValues(reason).Inc()
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(vec)
	if err == nil {
		return vec, nil
	}
	if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
		return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
	}
	return nil, err
}

var _ softdelete.ActivitySink = (*ActivityMetrics)(nil)
