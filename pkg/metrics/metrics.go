// Package metrics records per-component counters for the radio pipeline.
// Each layer owns its counter set; the node registers them all into a
// single registry served by the status API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RadioMetrics records mesh radio link activity.
type RadioMetrics struct {
	FramesSent     prometheus.Counter
	FramesReceived prometheus.Counter
	FramesCorrupt  prometheus.Counter
	DiscoverySent  prometheus.Counter
	Neighbors      prometheus.Gauge
}

// NewRadioMetrics constructs unregistered radio counters.
func NewRadioMetrics() *RadioMetrics {
	return &RadioMetrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radio_frames_sent_total",
			Help: "The total number of frames handed to the radio TX FIFO",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radio_frames_received_total",
			Help: "The total number of frames read from the radio",
		}),
		FramesCorrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radio_frames_corrupt_total",
			Help: "The total number of received frames dropped on checksum mismatch",
		}),
		DiscoverySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radio_discovery_sent_total",
			Help: "The total number of discovery frames enqueued",
		}),
		Neighbors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radio_neighbors",
			Help: "The number of known neighbor nodes",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *RadioMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FramesSent, m.FramesReceived, m.FramesCorrupt, m.DiscoverySent, m.Neighbors,
	}
}

// AckMetrics records reliable delivery activity.
type AckMetrics struct {
	FragmentsSent    prometheus.Counter
	FragmentsRetried prometheus.Counter
	FragmentsDropped prometheus.Counter
	AcksSent         prometheus.Counter
	AcksReceived     prometheus.Counter
}

// NewAckMetrics constructs unregistered ack counters.
func NewAckMetrics() *AckMetrics {
	return &AckMetrics{
		FragmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ack_fragments_sent_total",
			Help: "The total number of fragments first transmitted",
		}),
		FragmentsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ack_fragments_retried_total",
			Help: "The total number of fragment retransmissions",
		}),
		FragmentsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ack_fragments_dropped_total",
			Help: "The total number of fragments dropped after retry exhaustion",
		}),
		AcksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ack_acks_sent_total",
			Help: "The total number of acknowledgements sent",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ack_acks_received_total",
			Help: "The total number of acknowledgements received",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *AckMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FragmentsSent, m.FragmentsRetried, m.FragmentsDropped, m.AcksSent, m.AcksReceived,
	}
}

// FragmentMetrics records fragmentation and reassembly activity.
type FragmentMetrics struct {
	FragmentsSent       prometheus.Counter
	FragmentsReceived   prometheus.Counter
	PayloadsReassembled prometheus.Counter
}

// NewFragmentMetrics constructs unregistered fragmentation counters.
func NewFragmentMetrics() *FragmentMetrics {
	return &FragmentMetrics{
		FragmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragment_fragments_sent_total",
			Help: "The total number of fragments produced from payloads",
		}),
		FragmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragment_fragments_received_total",
			Help: "The total number of fragments buffered for reassembly",
		}),
		PayloadsReassembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragment_payloads_reassembled_total",
			Help: "The total number of payloads delivered upstream",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *FragmentMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FragmentsSent, m.FragmentsReceived, m.PayloadsReassembled,
	}
}

// TunnelMetrics records TUN device activity.
type TunnelMetrics struct {
	FramesRead    prometheus.Counter
	FramesWritten prometheus.Counter
	ReadErrors    prometheus.Counter
}

// NewTunnelMetrics constructs unregistered tunnel counters.
func NewTunnelMetrics() *TunnelMetrics {
	return &TunnelMetrics{
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunnel_frames_read_total",
			Help: "The total number of IP frames read from the TUN device",
		}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunnel_frames_written_total",
			Help: "The total number of IP frames written to the TUN device",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunnel_read_errors_total",
			Help: "The total number of failed TUN reads",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *TunnelMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.FramesRead, m.FramesWritten, m.ReadErrors}
}
