package hooks

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts calls, handler failures and live subscriptions per channel.
// One Metrics may be shared by several registries. A nil *Metrics records
// nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rsr",
				Subsystem: "hooks",
				Name:      "calls_total",
				Help:      "Total number of hook calls",
			},
			[]string{"channel"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rsr",
				Subsystem: "hooks",
				Name:      "handler_failures_total",
				Help:      "Total number of hook handlers that failed or panicked",
			},
			[]string{"channel"},
		),
		subscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rsr",
				Subsystem: "hooks",
				Name:      "subscriptions",
				Help:      "Live subscriptions per channel",
			},
			[]string{"channel"},
		),
	}

	for _, c := range []prometheus.Collector{m.calls, m.failures, m.subscriptions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register hook metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) called(ch Channel) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) failed(ch Channel) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) subscribed(ch Channel) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) unsubscribed(ch Channel) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(string(ch)).Dec()
}
