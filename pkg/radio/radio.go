// Package radio defines the capability set the mesh layer requires from an
// NRF24L01-family transceiver. The hardware driver and the in-memory test
// channel both satisfy it.
package radio

import "time"

// PayloadSize is the fixed frame size moved through the radio FIFOs.
const PayloadSize = 32

// TxFIFODepth is the number of frames the transceiver TX FIFO holds.
// Same-destination bursts are batched up to this depth.
const TxFIFODepth = 3

// Power selects the PA output level.
type Power uint8

// PA output levels, lowest to highest.
const (
	PowerMin Power = iota
	PowerLow
	PowerHigh
	PowerMax
)

// DataRate selects the on-air data rate.
type DataRate uint8

// On-air data rates.
const (
	DataRate1Mbps DataRate = iota
	DataRate2Mbps
	DataRate250Kbps
)

// Radio is the transceiver capability set consumed by the mesh layer.
// Failures from Begin and IsConnected are fatal at setup; transient TX
// failures are reported through WriteFast and TxStandby and must not crash
// the pipeline.
type Radio interface {
	// Begin powers up and initializes the transceiver.
	Begin() error

	// IsConnected reports whether the chip responds over the bus.
	IsConnected() bool

	// SetChannel selects the RF channel (0..127).
	SetChannel(ch uint8) error

	// SetPower sets the PA level and toggles the low noise amplifier.
	SetPower(p Power, lna bool)

	// SetDataRate sets the on-air data rate.
	SetDataRate(r DataRate)

	// SetAddressWidth sets the pipe address width in bytes (3..5).
	SetAddressWidth(w uint8)

	// EnableDynamicPayloads enables per-frame payload lengths.
	EnableDynamicPayloads()

	// DisableAutoAck turns off hardware acknowledgements; reliability is
	// handled in software above the radio.
	DisableAutoAck()

	// SetRetries configures hardware retransmission (disabled with 0, 0).
	SetRetries(delay, count uint8)

	// SetCRC8 selects the 8-bit hardware CRC.
	SetCRC8()

	// OpenReadingPipe binds reading pipe i (0..5) to an address.
	OpenReadingPipe(i uint8, addr uint32)

	// OpenWritingPipe selects the destination address for transmission.
	OpenWritingPipe(addr uint32)

	// StartListening enters RX mode.
	StartListening()

	// StopListening leaves RX mode so frames can be transmitted.
	StopListening()

	// WriteFast enqueues a frame into the TX FIFO without blocking for
	// delivery.
	WriteFast(buf []byte) error

	// TxStandby blocks until the TX FIFO drains or the timeout elapses,
	// reporting whether the FIFO drained.
	TxStandby(timeout time.Duration) bool

	// Available reports the reading pipe holding a pending frame, if any.
	Available() (pipe uint8, ok bool)

	// Read copies the next received frame into buf.
	Read(buf []byte) (int, error)

	// FlushRX discards all frames pending in the RX FIFO.
	FlushRX()

	// FlushTX discards all frames pending in the TX FIFO.
	FlushTX()
}
