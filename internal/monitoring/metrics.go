// Package monitoring - metrics.go exposes Prometheus collectors.
//
// DESIGN: One collector per concern, registered on a caller-supplied
// Registerer so tests can use an isolated registry:
//   - turns:      inbound messages by channel and outcome
//   - completion: upstream latency by provider and status
//   - outbound:   replies sent by channel and status
//   - history:    users and stored messages (sampled from the store)
//
// All methods are nil-safe so callers can run without metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chatrelay"

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	turns             *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	outbound          *prometheus.CounterVec
	truncatedReplies  prometheus.Counter
	historyUsers      prometheus.Gauge
	historyMessages   prometheus.Gauge
}

// NewMetricsCollector creates and registers the relay collectors.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "turns_total",
			Help:      "Inbound messages handled, by channel and outcome",
		}, []string{"channel", "outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "latency_seconds",
			Help:      "Latency of completion requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "outbound_total",
			Help:      "Replies sent to chat channels",
		}, []string{"channel", "status"}),
		truncatedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "truncated_replies_total",
			Help:      "Replies shortened to fit the platform limit",
		}),
		historyUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "users",
			Help:      "Users with a conversation history",
		}),
		historyMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "messages",
			Help:      "Messages held across all histories",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(mc.turns, mc.completionLatency, mc.outbound,
		mc.truncatedReplies, mc.historyUsers, mc.historyMessages)
	return mc
}

// RecordTurn counts a handled inbound message.
func (mc *MetricsCollector) RecordTurn(channel string, outcome TurnOutcome) {
	if mc == nil {
		return
	}
	mc.turns.WithLabelValues(channel, string(outcome)).Inc()
}

// RecordCompletion observes one upstream call.
func (mc *MetricsCollector) RecordCompletion(provider string, success bool, latency time.Duration) {
	if mc == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	mc.completionLatency.WithLabelValues(provider, status).Observe(latency.Seconds())
}

// RecordOutbound counts a reply send attempt.
func (mc *MetricsCollector) RecordOutbound(channel string, success bool) {
	if mc == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	mc.outbound.WithLabelValues(channel, status).Inc()
}

// RecordTruncation counts a shortened reply.
func (mc *MetricsCollector) RecordTruncation() {
	if mc == nil {
		return
	}
	mc.truncatedReplies.Inc()
}

// SetHistory updates the history gauges.
func (mc *MetricsCollector) SetHistory(users, messages int) {
	if mc == nil {
		return
	}
	mc.historyUsers.Set(float64(users))
	mc.historyMessages.Set(float64(messages))
}
