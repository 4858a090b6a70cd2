package hooks

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	r := newTestRegistry(WithMetrics(m))
	r.On(UseItem, HandlerFunc(func(Args) error { return errors.New("nope") }))
	r.Once(UseItem, HandlerFunc(func(Args) error { return nil }))

	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues(string(UseItem))); got != 2 {
		t.Fatalf("expected 2 subscriptions, got %v", got)
	}

	r.Call(UseItem)
	r.Call(UseItem)

	if got := testutil.ToFloat64(m.calls.WithLabelValues(string(UseItem))); got != 2 {
		t.Fatalf("expected 2 calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues(string(UseItem))); got != 2 {
		t.Fatalf("expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues(string(UseItem))); got != 1 {
		t.Fatalf("expected 1 subscription after once fired, got %v", got)
	}
}

func TestMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
