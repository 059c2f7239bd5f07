// Package radiotest provides an in-memory simulation of the shared RF
// medium so the whole pipeline can be exercised headless. Radios bound to
// one Air instance see each other's transmissions subject to configurable
// loss and corruption.
package radiotest

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/nrfnet/nrfnet/pkg/radio"
)

// rxQueueDepth bounds buffered receive frames per radio. The hardware FIFO
// holds three; the simulation is more forgiving so tests can enqueue bursts
// before draining.
const rxQueueDepth = 64

// Air is a shared half-duplex medium. The zero value is not usable; create
// instances with NewAir.
type Air struct {
	mu       sync.Mutex
	radios   []*Radio
	lossRate float64
	corrupt  func([]byte)
	rng      *rand.Rand
	txCount  uint64
}

// NewAir creates a medium with deterministic loss decisions derived from
// seed.
func NewAir(seed int64) *Air {
	return &Air{rng: rand.New(rand.NewSource(seed))}
}

// SetLoss makes the medium drop the given fraction of frames uniformly.
func (a *Air) SetLoss(rate float64) {
	a.mu.Lock()
	a.lossRate = rate
	a.mu.Unlock()
}

// SetCorrupt installs a mangler invoked on a copy of every delivered frame.
func (a *Air) SetCorrupt(fn func([]byte)) {
	a.mu.Lock()
	a.corrupt = fn
	a.mu.Unlock()
}

// TxCount returns the number of frames transmitted over the medium,
// including dropped ones.
func (a *Air) TxCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.txCount
}

// Radio creates a transceiver bound to this medium.
func (a *Air) Radio() *Radio {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := &Radio{air: a}
	a.radios = append(a.radios, r)
	return r
}

// deliver fans a frame out to every listening radio with a reading pipe
// open at dest. The sender never hears its own transmission.
func (a *Air) deliver(from *Radio, dest uint32, buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.txCount++
	if a.lossRate > 0 && a.rng.Float64() < a.lossRate {
		return
	}

	for _, r := range a.radios {
		if r == from {
			continue
		}
		r.receive(dest, buf, a.corrupt)
	}
}

type rxFrame struct {
	pipe uint8
	data []byte
}

// Radio is a simulated transceiver. It implements radio.Radio.
type Radio struct {
	air *Air

	mu           sync.Mutex
	begun        bool
	listening    bool
	channel      uint8
	readingPipes [6]uint32
	pipeOpen     [6]bool
	writingPipe  uint32
	tx           [][]byte
	rx           []rxFrame
}

var _ radio.Radio = (*Radio)(nil)

// Begin implements radio.Radio.
func (r *Radio) Begin() error {
	r.mu.Lock()
	r.begun = true
	r.mu.Unlock()
	return nil
}

// IsConnected implements radio.Radio.
func (r *Radio) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begun
}

// SetChannel implements radio.Radio.
func (r *Radio) SetChannel(ch uint8) error {
	if ch > 127 {
		return errors.New("radiotest: channel out of range")
	}
	r.mu.Lock()
	r.channel = ch
	r.mu.Unlock()
	return nil
}

// SetPower implements radio.Radio.
func (r *Radio) SetPower(radio.Power, bool) {}

// SetDataRate implements radio.Radio.
func (r *Radio) SetDataRate(radio.DataRate) {}

// SetAddressWidth implements radio.Radio.
func (r *Radio) SetAddressWidth(uint8) {}

// EnableDynamicPayloads implements radio.Radio.
func (r *Radio) EnableDynamicPayloads() {}

// DisableAutoAck implements radio.Radio.
func (r *Radio) DisableAutoAck() {}

// SetRetries implements radio.Radio.
func (r *Radio) SetRetries(uint8, uint8) {}

// SetCRC8 implements radio.Radio.
func (r *Radio) SetCRC8() {}

// OpenReadingPipe implements radio.Radio.
func (r *Radio) OpenReadingPipe(i uint8, addr uint32) {
	if i > 5 {
		return
	}
	r.mu.Lock()
	r.readingPipes[i] = addr
	r.pipeOpen[i] = true
	r.mu.Unlock()
}

// OpenWritingPipe implements radio.Radio.
func (r *Radio) OpenWritingPipe(addr uint32) {
	r.mu.Lock()
	r.writingPipe = addr
	r.mu.Unlock()
}

// StartListening implements radio.Radio.
func (r *Radio) StartListening() {
	r.mu.Lock()
	r.listening = true
	r.mu.Unlock()
}

// StopListening implements radio.Radio.
func (r *Radio) StopListening() {
	r.mu.Lock()
	r.listening = false
	r.mu.Unlock()
}

// WriteFast implements radio.Radio.
func (r *Radio) WriteFast(buf []byte) error {
	if len(buf) != radio.PayloadSize {
		return errors.New("radiotest: frame must be 32 bytes")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tx) >= radio.TxFIFODepth {
		return errors.New("radiotest: tx fifo full")
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	r.tx = append(r.tx, frame)
	return nil
}

// TxStandby implements radio.Radio. Delivery is instantaneous in the
// simulation, so the timeout is never exceeded.
func (r *Radio) TxStandby(time.Duration) bool {
	r.mu.Lock()
	pending := r.tx
	r.tx = nil
	dest := r.writingPipe
	r.mu.Unlock()

	for _, frame := range pending {
		r.air.deliver(r, dest, frame)
	}
	return true
}

// Available implements radio.Radio.
func (r *Radio) Available() (uint8, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rx) == 0 {
		return 0, false
	}
	return r.rx[0].pipe, true
}

// Read implements radio.Radio.
func (r *Radio) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rx) == 0 {
		return 0, errors.New("radiotest: rx fifo empty")
	}
	frame := r.rx[0]
	r.rx = r.rx[1:]
	n := copy(buf, frame.data)
	return n, nil
}

// FlushRX implements radio.Radio.
func (r *Radio) FlushRX() {
	r.mu.Lock()
	r.rx = nil
	r.mu.Unlock()
}

// FlushTX implements radio.Radio.
func (r *Radio) FlushTX() {
	r.mu.Lock()
	r.tx = nil
	r.mu.Unlock()
}

// InjectRX places a frame directly into the receive queue on the given
// pipe, bypassing the medium.
func (r *Radio) InjectRX(pipe uint8, buf []byte) {
	frame := make([]byte, len(buf))
	copy(frame, buf)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rx) >= rxQueueDepth {
		return
	}
	r.rx = append(r.rx, rxFrame{pipe: pipe, data: frame})
}

func (r *Radio) receive(dest uint32, buf []byte, corrupt func([]byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening || len(r.rx) >= rxQueueDepth {
		return
	}
	for i, addr := range r.readingPipes {
		if !r.pipeOpen[i] || addr != dest {
			continue
		}
		frame := make([]byte, len(buf))
		copy(frame, buf)
		if corrupt != nil {
			corrupt(frame)
		}
		r.rx = append(r.rx, rxFrame{pipe: uint8(i), data: frame})
		return
	}
}
