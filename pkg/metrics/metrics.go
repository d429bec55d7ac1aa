package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "xiot"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing, so
// components can be built without a registry.
type Metrics struct {
	messagesReceived   *prometheus.CounterVec
	messagesDiscarded  *prometheus.CounterVec
	readingsAppended   prometheus.Counter
	observers          prometheus.Gauge
	observersDropped   prometheus.Counter
	commandsDispatched *prometheus.CounterVec
	commandLatency     prometheus.Histogram
	devicesDiscovered  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Broker messages routed to a handler, by kind.",
		}, []string{"kind"}),
		messagesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_discarded_total",
			Help:      "Broker messages dropped before reaching observers, by reason.",
		}, []string{"reason"}),
		readingsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_appended_total",
			Help:      "Sensor readings written to the store.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Live observers currently joined to the broadcast group.",
		}),
		observersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observers_dropped_total",
			Help:      "Observers removed because a send failed or their queue was full.",
		}),
		commandsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dispatched_total",
			Help:      "Actuator commands published to the broker, by command.",
		}, []string{"command"}),
		commandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_publish_latency_seconds",
			Help:      "Time spent publishing an actuator command.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		devicesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_discovered_total",
			Help:      "Bus devices that answered the identify handshake.",
		}),
	}
	reg.MustRegister(
		m.messagesReceived,
		m.messagesDiscarded,
		m.readingsAppended,
		m.observers,
		m.observersDropped,
		m.commandsDispatched,
		m.commandLatency,
		m.devicesDiscovered,
	)
	return m
}

func (m *Metrics) MessageReceived(kind string) {
	if m != nil {
		m.messagesReceived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) MessageDiscarded(reason string) {
	if m != nil {
		m.messagesDiscarded.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ReadingAppended() {
	if m != nil {
		m.readingsAppended.Inc()
	}
}

func (m *Metrics) SetObservers(n int) {
	if m != nil {
		m.observers.Set(float64(n))
	}
}

func (m *Metrics) ObserverDropped() {
	if m != nil {
		m.observersDropped.Inc()
	}
}

func (m *Metrics) CommandDispatched(command string, seconds float64) {
	if m != nil {
		m.commandsDispatched.WithLabelValues(command).Inc()
		m.commandLatency.Observe(seconds)
	}
}

func (m *Metrics) DevicesDiscovered(n int) {
	if m != nil {
		m.devicesDiscovered.Add(float64(n))
	}
}
