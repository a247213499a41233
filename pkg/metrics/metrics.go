// Package metrics holds the Prometheus collectors for chat and notification sweeps.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChatMessagesTotal     *prometheus.CounterVec // by kind
	ChatSideEffectErrors  *prometheus.CounterVec // by step: enqueue, publish
	ChatChannelsCreated   prometheus.Counter
	SweepEntriesTotal     *prometheus.CounterVec // by sweep, outcome: sent, failed, skipped
	SweepDuration         *prometheus.HistogramVec
	NotificationsEnqueued prometheus.Counter
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ChatMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreach_chat_messages_total",
			Help: "Chat messages appended, by message kind",
		}, []string{"kind"}),
		ChatSideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreach_chat_side_effect_errors_total",
			Help: "Non-fatal failures after a chat append, by step",
		}, []string{"step"}),
		ChatChannelsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusreach_chat_channels_created_total",
			Help: "Event chat channels created (each seeds one welcome message)",
		}),
		SweepEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreach_sweep_entries_total",
			Help: "Entries handled by notification sweeps, by sweep and outcome",
		}, []string{"sweep", "outcome"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusreach_sweep_duration_seconds",
			Help:    "Wall time of one sweep pass",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"sweep"}),
		NotificationsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusreach_notifications_enqueued_total",
			Help: "Recipient queue entries created or extended by chat posts",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.ChatMessagesTotal, m.ChatSideEffectErrors, m.ChatChannelsCreated,
		m.SweepEntriesTotal, m.SweepDuration, m.NotificationsEnqueued,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ChatMessage counts one appended message.
func (m *Metrics) ChatMessage(kind string) {
	if m == nil {
		return
	}
	m.ChatMessagesTotal.WithLabelValues(kind).Inc()
}

// ChatSideEffectError counts a swallowed enqueue or publish failure.
func (m *Metrics) ChatSideEffectError(step string) {
	if m == nil {
		return
	}
	m.ChatSideEffectErrors.WithLabelValues(step).Inc()
}

// ChannelCreated counts a new chat channel.
func (m *Metrics) ChannelCreated() {
	if m == nil {
		return
	}
	m.ChatChannelsCreated.Inc()
}

// Enqueued counts recipient entries touched by one post.
func (m *Metrics) Enqueued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NotificationsEnqueued.Add(float64(n))
}

// SweepOutcome counts one sweep entry outcome.
func (m *Metrics) SweepOutcome(sweep, outcome string) {
	if m == nil {
		return
	}
	m.SweepEntriesTotal.WithLabelValues(sweep, outcome).Inc()
}

// ObserveSweep records a sweep's duration in seconds.
func (m *Metrics) ObserveSweep(sweep string, seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.WithLabelValues(sweep).Observe(seconds)
}
