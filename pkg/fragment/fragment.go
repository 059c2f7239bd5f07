// Package fragment converts variable-length payloads into sequences of
// fixed 32-byte data fragments and reassembles them on receipt.
package fragment

import (
	"fmt"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/pkg/frame"
	"github.com/nrfnet/nrfnet/pkg/layer"
	"github.com/nrfnet/nrfnet/pkg/metrics"
)

var log = logging.MustGetLogger("fragment")

// Layer splits payloads moving toward the radio and reassembles fragments
// moving toward the tunnel. Reassembly is strictly sequential: fragments
// accumulate in arrival order until one carries the final flag. There is no
// reassembly timeout; a missing final fragment holds the buffer until
// Reset.
type Layer struct {
	layer.Base

	m *metrics.FragmentMetrics

	pending []frame.Data
}

// New creates a fragmentation layer.
func New(m *metrics.FragmentMetrics) *Layer {
	if m == nil {
		m = metrics.NewFragmentMetrics()
	}
	return &Layer{m: m}
}

// ReceiveFromUpstream splits a payload into ceil(N/30) fragments and sends
// them downstream in order. An empty payload produces no fragments.
func (l *Layer) ReceiveFromUpstream(data []byte) {
	for offset := 0; offset < len(data); offset += frame.PayloadSize {
		end := offset + frame.PayloadSize
		if end > len(data) {
			end = len(data)
		}
		pkt := frame.Data{
			Final:   end == len(data),
			Payload: data[offset:end],
		}
		l.m.FragmentsSent.Inc()
		l.SendDownstream(pkt.Encode())
	}
}

// ReceiveFromDownstream buffers a received fragment and, on the final one,
// delivers the concatenated payload upstream. Panics if the input is not
// exactly 32 bytes: shorter or longer buffers mean a broken layer below.
func (l *Layer) ReceiveFromDownstream(data []byte) {
	if len(data) != frame.Size {
		panic(fmt.Sprintf("fragment: received %d bytes, frames must be %d", len(data), frame.Size))
	}

	pkt, err := frame.Decode(data)
	if err != nil {
		log.Errorf("discarding fragment: %v", err)
		return
	}
	dataPkt, ok := pkt.(frame.Data)
	if !ok {
		log.Errorf("discarding unexpected %s frame", pkt.Type())
		return
	}

	l.pending = append(l.pending, dataPkt)
	l.m.FragmentsReceived.Inc()
	if !dataPkt.Final {
		return
	}

	var total int
	for _, p := range l.pending {
		total += len(p.Payload)
	}
	payload := make([]byte, 0, total)
	for _, p := range l.pending {
		payload = append(payload, p.Payload...)
	}
	l.pending = nil

	l.m.PayloadsReassembled.Inc()
	l.SendUpstream(payload)
}

// Reset drops any partially reassembled payload.
func (l *Layer) Reset() {
	l.pending = nil
}
