// Package metrics exposes Prometheus collectors for the booking agent.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lessons"

// BookingMetrics counts inventory and dialogue events.
type BookingMetrics struct {
	reservations *prometheus.CounterVec
	seededDays   prometheus.Counter
	messages     *prometheus.CounterVec
	evictions    prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "reservations_total",
			Help:      "Seat reservation attempts by outcome",
		}, []string{"outcome"}),
		seededDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "seeded_days_total",
			Help:      "Calendar days created or backfilled from the weekly template",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "messages_total",
			Help:      "Inbound dialogue messages by the step they were received in",
		}, []string{"step"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "idle_evictions_total",
			Help:      "Conversations dropped after the idle timeout",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservations, m.seededDays, m.messages, m.evictions)
	return m
}

// ObserveReservation implements inventory.Recorder.
func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// ObserveSeed implements inventory.Recorder.
func (m *BookingMetrics) ObserveSeed(written bool) {
	if m == nil || !written {
		return
	}
	m.seededDays.Inc()
}

// ObserveMessage implements conversation.StepRecorder.
func (m *BookingMetrics) ObserveMessage(step string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(step).Inc()
}

// ObserveEviction matches the session store eviction hook.
func (m *BookingMetrics) ObserveEviction(string) {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// MessagingMetrics exposes counters/histograms for the SMS channel.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency prometheus.Histogram
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound SMS webhooks",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound SMS sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of SMS webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(status string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
	m.webhookLatency.Observe(seconds)
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
