// Package layer defines the vertical pipeline contract shared by every
// stage between the TUN device and the radio.
package layer

import (
	"github.com/skycoin/skycoin/src/util/logging"
)

var log = logging.MustGetLogger("layer")

// Layer is one stage of the packet pipeline. Data travels downstream toward
// the radio and upstream toward the TUN device; each direction hands the
// neighbor a byte slice it may retain.
type Layer interface {
	// ReceiveFromUpstream accepts data moving toward the radio.
	ReceiveFromUpstream(data []byte)

	// ReceiveFromDownstream accepts data moving toward the TUN device.
	ReceiveFromDownstream(data []byte)

	// SetUpstream wires the layer above.
	SetUpstream(l Layer)

	// SetDownstream wires the layer below.
	SetDownstream(l Layer)

	// Reset drops buffered state. Wiring is preserved.
	Reset()
}

// Runner is implemented by layers that need a tick from the supervisory
// loop.
type Runner interface {
	Run()
}

// Base provides neighbor wiring and send helpers for embedding in concrete
// layers.
type Base struct {
	up   Layer
	down Layer
}

// SetUpstream implements Layer.
func (b *Base) SetUpstream(l Layer) { b.up = l }

// SetDownstream implements Layer.
func (b *Base) SetDownstream(l Layer) { b.down = l }

// SendDownstream hands data to the layer below, logging if none is wired.
func (b *Base) SendDownstream(data []byte) {
	if b.down == nil {
		log.Error("no downstream layer set")
		return
	}
	b.down.ReceiveFromUpstream(data)
}

// SendUpstream hands data to the layer above, logging if none is wired.
func (b *Base) SendUpstream(data []byte) {
	if b.up == nil {
		log.Error("no upstream layer set")
		return
	}
	b.up.ReceiveFromDownstream(data)
}

// Chain wires layers top to bottom: the first argument is the layer closest
// to the TUN device, the last is the radio. The pipeline is a path, so the
// top has no upstream and the bottom no downstream.
func Chain(layers ...Layer) {
	for i, l := range layers {
		if i > 0 {
			l.SetUpstream(layers[i-1])
		}
		if i < len(layers)-1 {
			l.SetDownstream(layers[i+1])
		}
	}
}
