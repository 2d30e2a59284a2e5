package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogueMetrics exposes counters/histograms for dialogue turns.
type DialogueMetrics struct {
	turnsTotal       *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	bookingsTotal    *prometheus.CounterVec
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Inbound messages handled, by the state they were handled in",
		}, []string{"state"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "dialogue",
			Name:      "transitions_total",
			Help:      "Dialogue state transitions",
		}, []string{"from", "to"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "dialogue",
			Name:      "turn_seconds",
			Help:      "Latency of handling one inbound message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.transitionsTotal, m.turnLatency, m.bookingsTotal)
	return m
}

func (m *DialogueMetrics) ObserveTurn(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state).Inc()
	m.turnLatency.WithLabelValues(state).Observe(seconds)
}

func (m *DialogueMetrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *DialogueMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

// GatewayMetrics counts outbound calls to the calendar, billing and memory backends.
type GatewayMetrics struct {
	requestsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Outbound backend requests",
		}, []string{"gateway", "operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "gateway",
			Name:      "request_seconds",
			Help:      "Latency of outbound backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"gateway", "operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.latency)
	return m
}

func (m *GatewayMetrics) ObserveRequest(gateway, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(gateway, operation, status).Inc()
	m.latency.WithLabelValues(gateway, operation).Observe(seconds)
}
