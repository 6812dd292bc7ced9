package mq

import "github.com/prometheus/client_golang/prometheus"

// MetricsRecorder receives notifications of protocol-level events so a
// caller can expose them however it likes. The connection driver and timer
// orchestrator call into it; it is never required to implement every
// method meaningfully and WithMetrics accepts a nil-safe default when not
// configured.
type MetricsRecorder interface {
	// PacketSent is called once per control packet written to the wire,
	// named by its MQTT packet type (e.g. "PUBLISH", "PINGREQ").
	PacketSent(packetType string, bytes int)

	// PacketReceived is called once per control packet read from the wire.
	PacketReceived(packetType string, bytes int)

	// InFlightChanged reports the current number of unacknowledged QoS 1/2
	// outgoing publishes.
	InFlightChanged(count int)

	// Reconnected is called each time the automatic reconnect loop
	// re-establishes a connection.
	Reconnected()
}

// noopMetrics implements MetricsRecorder by doing nothing; it is the
// default used when WithMetrics is not called.
type noopMetrics struct{}

func (noopMetrics) PacketSent(string, int)     {}
func (noopMetrics) PacketReceived(string, int) {}
func (noopMetrics) InFlightChanged(int)        {}
func (noopMetrics) Reconnected()               {}

// PrometheusRecorder implements MetricsRecorder on top of
// github.com/prometheus/client_golang, following the counter/gauge
// breakdown a Prometheus-backed MQTT stack typically exposes: per-direction
// packet and byte counters, an in-flight gauge, and a reconnect counter.
type PrometheusRecorder struct {
	packetsSent     *prometheus.CounterVec
	packetsReceived *prometheus.CounterVec
	bytesSent       prometheus.Counter
	bytesReceived   prometheus.Counter
	inFlight        prometheus.Gauge
	reconnects      prometheus.Counter
}

// NewPrometheusRecorder creates and registers the client's metrics against
// reg. Pass prometheus.DefaultRegisterer to use the global registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_client_packets_sent_total",
			Help: "Total MQTT control packets sent, by packet type.",
		}, []string{"type"}),
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_client_packets_received_total",
			Help: "Total MQTT control packets received, by packet type.",
		}, []string{"type"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_sent_total",
			Help: "Total bytes written to the connection.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_received_total",
			Help: "Total bytes read from the connection.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_client_in_flight_publishes",
			Help: "Number of unacknowledged QoS 1/2 outgoing publishes.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_reconnects_total",
			Help: "Total number of successful automatic reconnections.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.packetsSent, r.packetsReceived, r.bytesSent, r.bytesReceived, r.inFlight, r.reconnects,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *PrometheusRecorder) PacketSent(packetType string, bytes int) {
	r.packetsSent.WithLabelValues(packetType).Inc()
	r.bytesSent.Add(float64(bytes))
}

func (r *PrometheusRecorder) PacketReceived(packetType string, bytes int) {
	r.packetsReceived.WithLabelValues(packetType).Inc()
	r.bytesReceived.Add(float64(bytes))
}

func (r *PrometheusRecorder) InFlightChanged(count int) {
	r.inFlight.Set(float64(count))
}

func (r *PrometheusRecorder) Reconnected() {
	r.reconnects.Inc()
}
