// Package ack provides reliable, bounded-window delivery of data fragments
// over the lossy radio link.
package ack

import (
	"crypto/rand"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/frame"
	"github.com/nrfnet/nrfnet/pkg/layer"
	"github.com/nrfnet/nrfnet/pkg/metrics"
)

var log = logging.MustGetLogger("ack")

const (
	// DefaultRetryUs is how long a fragment stays unacknowledged before
	// retransmission.
	DefaultRetryUs = 20000

	// DefaultMaxTries bounds retransmissions per fragment before it is
	// dropped.
	DefaultMaxTries = 10

	// MaxWindow is the largest permitted in-flight window. The wire
	// sequence is two bits, so more than four in-flight fragments cannot
	// be told apart.
	MaxWindow = 4
)

// Config tunes the layer. Zero values select the defaults.
type Config struct {
	// Window is the maximum number of in-flight fragments.
	Window int

	// RetryUs is the retransmission interval in microseconds.
	RetryUs uint64

	// MaxTries bounds retransmissions per fragment.
	MaxTries int

	// Disabled makes the layer a transparent passthrough: no sequence
	// stamping, no acknowledgements, no retries.
	Disabled bool
}

type inflight struct {
	buf        []byte
	seq        uint8
	lastSentUs uint64
	tries      int
}

// Layer queues fragments from above, transmits at most Window of them at a
// time, retransmits on ack timeout, and acknowledges data fragments
// arriving from below. Upstream deliveries preserve receipt order.
type Layer struct {
	layer.Base

	clock nrftime.Clock
	m     *metrics.AckMetrics
	cfg   Config

	queue   [][]byte
	pending []inflight
	seq     uint8

	lastRxSeq uint8
	haveRxSeq bool
}

// New creates the layer. The sequence counter starts at a random value so
// a rebooted node does not collide with its predecessor's window.
func New(cfg Config, clock nrftime.Clock, m *metrics.AckMetrics) *Layer {
	if cfg.Window <= 0 {
		cfg.Window = 1
	}
	if cfg.Window > MaxWindow {
		log.Warnf("window %d exceeds %d, clamping", cfg.Window, MaxWindow)
		cfg.Window = MaxWindow
	}
	if cfg.RetryUs == 0 {
		cfg.RetryUs = DefaultRetryUs
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if m == nil {
		m = metrics.NewAckMetrics()
	}

	var b [1]byte
	if _, err := rand.Read(b[:]); err == nil {
		return &Layer{clock: clock, m: m, cfg: cfg, seq: b[0]}
	}
	return &Layer{clock: clock, m: m, cfg: cfg}
}

// ReceiveFromUpstream queues an encoded data fragment for transmission.
func (l *Layer) ReceiveFromUpstream(data []byte) {
	if l.cfg.Disabled {
		l.SendDownstream(data)
		return
	}
	l.queue = append(l.queue, data)
}

// ReceiveFromDownstream handles a frame from the radio: data fragments are
// forwarded upstream and acknowledged; acknowledgements retire the matching
// in-flight entry.
func (l *Layer) ReceiveFromDownstream(data []byte) {
	if l.cfg.Disabled {
		l.SendUpstream(data)
		return
	}

	switch frame.TypeOf(data) {
	case frame.TypeData:
		seq := frame.DataSeq(data)
		duplicate := l.haveRxSeq && seq == l.lastRxSeq
		if !duplicate {
			l.lastRxSeq = seq
			l.haveRxSeq = true
			l.SendUpstream(data)
		}

		// A retransmission means the previous acknowledgement was lost;
		// ack again either way, but deliver only once.
		ackBuf := make([]byte, len(data))
		copy(ackBuf, data)
		frame.SetType(ackBuf, frame.TypeDataAck)
		l.m.AcksSent.Inc()
		l.SendDownstream(ackBuf)

	case frame.TypeDataAck:
		l.m.AcksReceived.Inc()
		seq := frame.DataSeq(data)
		for i, entry := range l.pending {
			if entry.seq&0x03 != seq {
				continue
			}
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
		log.Warnf("no in-flight fragment matches ack seq %d", seq)

	default:
		log.Errorf("unexpected %s frame", frame.TypeOf(data))
	}
}

// Run admits queued fragments into the window and retransmits stale
// in-flight entries.
func (l *Layer) Run() {
	if l.cfg.Disabled {
		return
	}
	now := l.clock.NowUs()

	if len(l.queue) > 0 && len(l.pending) < l.cfg.Window {
		buf := l.queue[0]
		l.queue = l.queue[1:]

		seq := l.seq
		l.seq++
		frame.SetDataSeq(buf, seq)

		l.m.FragmentsSent.Inc()
		l.SendDownstream(buf)
		l.pending = append(l.pending, inflight{buf: buf, seq: seq, lastSentUs: now, tries: 1})
	}

	kept := l.pending[:0]
	for _, entry := range l.pending {
		if entry.tries > l.cfg.MaxTries {
			log.Errorf("fragment seq %d failed after %d attempts, dropping", entry.seq, entry.tries)
			l.m.FragmentsDropped.Inc()
			continue
		}
		if now-entry.lastSentUs > l.cfg.RetryUs {
			l.m.FragmentsRetried.Inc()
			l.SendDownstream(entry.buf)
			entry.lastSentUs = now
			entry.tries++
		}
		kept = append(kept, entry)
	}
	l.pending = kept
}

// InFlight returns the number of unacknowledged fragments.
func (l *Layer) InFlight() int {
	return len(l.pending)
}

// Reset drops the queue, the in-flight window and the receive duplicate
// tracking.
func (l *Layer) Reset() {
	l.queue = nil
	l.pending = nil
	l.haveRxSeq = false
}
