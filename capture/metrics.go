package capture

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/motionlog/metric"
)

// Metrics holds Prometheus metrics for the capture recorder
type Metrics struct {
	packetsReceived  prometheus.Counter
	bytesReceived    prometheus.Counter
	parseFailures    prometheus.Counter
	socketErrors     prometheus.Counter
	readingsAppended *prometheus.CounterVec
	datagramSize     prometheus.Histogram
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers recorder metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "packets_received_total",
			Help:      "Total UDP datagrams received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "bytes_received_total",
			Help:      "Total bytes received from UDP",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "parse_failures_total",
			Help:      "Datagrams dropped because the payload did not parse",
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "socket_errors_total",
			Help:      "Socket read errors encountered",
		}),
		readingsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "readings_appended_total",
			Help:      "Readings appended to the columnar store",
		}, []string{"device"}),
		datagramSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "datagram_size_bytes",
			Help:      "Size distribution of received datagrams",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 8),
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "motionlog",
			Subsystem: "capture",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of last received datagram",
		}),
	}

	registry.RegisterCounter("capture", "packets_received", metrics.packetsReceived)
	registry.RegisterCounter("capture", "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter("capture", "parse_failures", metrics.parseFailures)
	registry.RegisterCounter("capture", "socket_errors", metrics.socketErrors)
	registry.RegisterCounterVec("capture", "readings_appended", metrics.readingsAppended)
	registry.RegisterHistogram("capture", "datagram_size", metrics.datagramSize)
	registry.RegisterGauge("capture", "last_activity", metrics.lastActivity)

	return metrics
}
