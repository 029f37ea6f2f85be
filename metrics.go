package authweb

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts form outcomes. It implements ActivitySink so it can be
// combined with other sinks through MultiSink.
type MetricsSink struct {
	Submissions *prometheus.CounterVec
}

// NewMetricsSink creates the counters and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	m := &MetricsSink{
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authweb_form_submissions_total",
				Help: "Total number of auth form submissions by form, event and failure reason",
			},
			[]string{"form", "event", "reason", "code"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Submissions)
	}
	return m
}

// Record implements ActivitySink.
func (m *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	if m == nil || m.Submissions == nil {
		return nil
	}
	m.Submissions.WithLabelValues(
		event.Form,
		string(event.EventType),
		string(event.Reason),
		string(event.Code),
	).Inc()
	return nil
}
