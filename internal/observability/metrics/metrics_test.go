package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveReservation("reserved")
	m.ObserveReservation("reserved")
	m.ObserveReservation("no_capacity")
	m.ObserveSeed(true)
	m.ObserveSeed(false)
	m.ObserveMessage("ask_date")
	m.ObserveEviction("+393331234567")

	if got := testutil.ToFloat64(m.reservations.WithLabelValues("reserved")); got != 2 {
		t.Fatalf("expected 2 reservations, got %v", got)
	}
	if got := testutil.ToFloat64(m.reservations.WithLabelValues("no_capacity")); got != 1 {
		t.Fatalf("expected 1 no_capacity, got %v", got)
	}
	if got := testutil.ToFloat64(m.seededDays); got != 1 {
		t.Fatalf("expected 1 seeded day, got %v", got)
	}
	if got := testutil.ToFloat64(m.messages.WithLabelValues("ask_date")); got != 1 {
		t.Fatalf("expected 1 message, got %v", got)
	}
	if got := testutil.ToFloat64(m.evictions); got != 1 {
		t.Fatalf("expected 1 eviction, got %v", got)
	}
}

func TestMessagingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveInbound("accepted", 0.02)
	m.ObserveOutbound("sent")
	m.ObserveOutbound("failed")

	if got := testutil.ToFloat64(m.inboundTotal.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("expected 1 inbound, got %v", got)
	}
	if got := testutil.ToFloat64(m.outboundTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed send, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BookingMetrics
	b.ObserveReservation("reserved")
	b.ObserveSeed(true)
	b.ObserveMessage("new")
	b.ObserveEviction("x")

	var m *MessagingMetrics
	m.ObserveInbound("accepted", 0.1)
	m.ObserveOutbound("sent")
}
