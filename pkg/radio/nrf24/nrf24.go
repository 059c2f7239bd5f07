//go:build linux

// Package nrf24 drives an NRF24L01+ transceiver attached to a Linux spidev
// bus, with the chip-enable line driven through the sysfs GPIO interface.
// It implements the radio.Radio capability set consumed by the mesh layer.
package nrf24

import (
	"fmt"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/nrfnet/nrfnet/pkg/radio"
)

var log = logging.MustGetLogger("nrf24")

// Register addresses.
const (
	regConfig     = 0x00
	regEnAA       = 0x01
	regEnRxAddr   = 0x02
	regSetupAW    = 0x03
	regSetupRetr  = 0x04
	regRFCh       = 0x05
	regRFSetup    = 0x06
	regStatus     = 0x07
	regRxAddrP0   = 0x0A
	regTxAddr     = 0x10
	regRxPwP0     = 0x11
	regFIFOStatus = 0x17
	regDynPD      = 0x1C
	regFeature    = 0x1D
)

// SPI commands.
const (
	cmdRRegister  = 0x00
	cmdWRegister  = 0x20
	cmdRRxPayload = 0x61
	cmdWTxPayload = 0xA0
	cmdFlushTx    = 0xE1
	cmdFlushRx    = 0xE2
	cmdRRxPlWid   = 0x60
	cmdNop        = 0xFF
)

// CONFIG bits.
const (
	bitPrimRx = 1 << 0
	bitPwrUp  = 1 << 1
	bitCRCO   = 1 << 2
	bitEnCRC  = 1 << 3
)

// STATUS bits.
const (
	bitTxFull = 1 << 0
	bitMaxRT  = 1 << 4
	bitTxDS   = 1 << 5
	bitRxDR   = 1 << 6
)

// RF_SETUP bits.
const (
	bitLNAGain  = 1 << 0
	bitRFDRHigh = 1 << 3
	bitRFDRLow  = 1 << 5
)

// FIFO_STATUS bits.
const (
	bitRxEmpty    = 1 << 0
	bitTxEmpty    = 1 << 4
	bitTxFIFOFull = 1 << 5
)

// Config selects the bus and chip-enable line.
type Config struct {
	// SPIDevice is the spidev node, e.g. /dev/spidev0.0.
	SPIDevice string

	// SPISpeedHz is the bus clock. Defaults to 8 MHz when zero.
	SPISpeedHz uint32

	// CEPin is the GPIO number of the chip-enable line.
	CEPin uint16
}

// Driver is an NRF24L01+ bound to one spidev node. It is not safe for
// concurrent use; the mesh layer is its sole owner.
type Driver struct {
	spi    *spiDev
	ce     *gpioPin
	cfg    Config
	config uint8 // CONFIG shadow
}

var _ radio.Radio = (*Driver)(nil)

// New prepares a driver. The transceiver is untouched until Begin.
func New(cfg Config) *Driver {
	if cfg.SPISpeedHz == 0 {
		cfg.SPISpeedHz = 8000000
	}
	return &Driver{cfg: cfg}
}

// Begin implements radio.Radio. It opens the bus, claims the CE line and
// brings the chip into powered-up standby with CRC enabled. The interrupt
// mask bits are left clear.
func (d *Driver) Begin() error {
	spi, err := openSPI(d.cfg.SPIDevice, d.cfg.SPISpeedHz)
	if err != nil {
		return fmt.Errorf("nrf24: open spi: %w", err)
	}
	d.spi = spi

	ce, err := exportGPIO(d.cfg.CEPin)
	if err != nil {
		d.spi.close()
		return fmt.Errorf("nrf24: claim ce pin %d: %w", d.cfg.CEPin, err)
	}
	d.ce = ce
	d.ce.set(false)

	// Power-on reset settling time per the datasheet.
	time.Sleep(100 * time.Millisecond)

	d.config = bitEnCRC | bitPwrUp
	if err := d.writeRegister(regConfig, d.config); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)

	d.FlushRX()
	d.FlushTX()
	d.clearStatus()
	return nil
}

// IsConnected implements radio.Radio. The SETUP_AW register always reads a
// value in 1..3 on a live chip.
func (d *Driver) IsConnected() bool {
	v, err := d.readRegister(regSetupAW)
	if err != nil {
		return false
	}
	return v >= 1 && v <= 3
}

// SetChannel implements radio.Radio.
func (d *Driver) SetChannel(ch uint8) error {
	if ch > 127 {
		return fmt.Errorf("nrf24: channel %d out of range", ch)
	}
	return d.writeRegister(regRFCh, ch)
}

// SetPower implements radio.Radio.
func (d *Driver) SetPower(p radio.Power, lna bool) {
	v, err := d.readRegister(regRFSetup)
	if err != nil {
		log.Errorf("read RF_SETUP: %v", err)
		return
	}
	v &^= 0x06 | bitLNAGain
	v |= uint8(p&0x03) << 1
	if lna {
		v |= bitLNAGain
	}
	d.mustWriteRegister(regRFSetup, v)
}

// SetDataRate implements radio.Radio.
func (d *Driver) SetDataRate(r radio.DataRate) {
	v, err := d.readRegister(regRFSetup)
	if err != nil {
		log.Errorf("read RF_SETUP: %v", err)
		return
	}
	v &^= bitRFDRHigh | bitRFDRLow
	switch r {
	case radio.DataRate2Mbps:
		v |= bitRFDRHigh
	case radio.DataRate250Kbps:
		v |= bitRFDRLow
	}
	d.mustWriteRegister(regRFSetup, v)
}

// SetAddressWidth implements radio.Radio.
func (d *Driver) SetAddressWidth(w uint8) {
	if w < 3 || w > 5 {
		log.Errorf("address width %d out of range", w)
		return
	}
	d.mustWriteRegister(regSetupAW, w-2)
}

// EnableDynamicPayloads implements radio.Radio.
func (d *Driver) EnableDynamicPayloads() {
	v, err := d.readRegister(regFeature)
	if err != nil {
		log.Errorf("read FEATURE: %v", err)
		return
	}
	d.mustWriteRegister(regFeature, v|0x04)
	d.mustWriteRegister(regDynPD, 0x3F)
}

// DisableAutoAck implements radio.Radio.
func (d *Driver) DisableAutoAck() {
	d.mustWriteRegister(regEnAA, 0x00)
}

// SetRetries implements radio.Radio.
func (d *Driver) SetRetries(delay, count uint8) {
	d.mustWriteRegister(regSetupRetr, (delay&0x0F)<<4|count&0x0F)
}

// SetCRC8 implements radio.Radio.
func (d *Driver) SetCRC8() {
	d.config = d.config&^bitCRCO | bitEnCRC
	d.mustWriteRegister(regConfig, d.config)
}

// OpenReadingPipe implements radio.Radio. Pipes 0 and 1 take the full
// address; pipes 2..5 share pipe 1's upper bytes and differ in the low
// byte, matching the chip's addressing scheme.
func (d *Driver) OpenReadingPipe(i uint8, addr uint32) {
	if i > 5 {
		log.Errorf("reading pipe %d out of range", i)
		return
	}
	if i < 2 {
		d.mustWriteAddress(regRxAddrP0+i, addr)
	} else {
		d.mustWriteRegister(regRxAddrP0+i, uint8(addr))
	}
	d.mustWriteRegister(regRxPwP0+i, radio.PayloadSize)

	v, err := d.readRegister(regEnRxAddr)
	if err != nil {
		log.Errorf("read EN_RXADDR: %v", err)
		return
	}
	d.mustWriteRegister(regEnRxAddr, v|1<<i)
}

// OpenWritingPipe implements radio.Radio.
func (d *Driver) OpenWritingPipe(addr uint32) {
	d.mustWriteAddress(regTxAddr, addr)
	// With auto-ack disabled RX_ADDR_P0 need not mirror TX_ADDR, but
	// keeping them aligned matches the reference driver behavior.
	d.mustWriteAddress(regRxAddrP0, addr)
}

// StartListening implements radio.Radio.
func (d *Driver) StartListening() {
	d.config |= bitPrimRx
	d.mustWriteRegister(regConfig, d.config)
	d.clearStatus()
	d.ce.set(true)
	// RX settling per the datasheet.
	time.Sleep(130 * time.Microsecond)
}

// StopListening implements radio.Radio.
func (d *Driver) StopListening() {
	d.ce.set(false)
	time.Sleep(130 * time.Microsecond)
	d.config &^= bitPrimRx
	d.mustWriteRegister(regConfig, d.config)
}

// WriteFast implements radio.Radio. The frame is clocked into the TX FIFO;
// CE stays high so queued frames stream back to back.
func (d *Driver) WriteFast(buf []byte) error {
	if len(buf) != radio.PayloadSize {
		return fmt.Errorf("nrf24: frame must be %d bytes, got %d", radio.PayloadSize, len(buf))
	}
	status, err := d.status()
	if err != nil {
		return err
	}
	if status&bitTxFull != 0 {
		return fmt.Errorf("nrf24: tx fifo full")
	}

	tx := make([]byte, 1+radio.PayloadSize)
	tx[0] = cmdWTxPayload
	copy(tx[1:], buf)
	if _, err := d.spi.transfer(tx); err != nil {
		return fmt.Errorf("nrf24: write payload: %w", err)
	}
	d.ce.set(true)
	return nil
}

// TxStandby implements radio.Radio. It polls until the TX FIFO drains or
// the timeout elapses, then drops CE back to standby.
func (d *Driver) TxStandby(timeout time.Duration) bool {
	defer d.ce.set(false)

	deadline := time.Now().Add(timeout)
	for {
		fifo, err := d.readRegister(regFIFOStatus)
		if err != nil {
			log.Errorf("read FIFO_STATUS: %v", err)
			return false
		}
		if fifo&bitTxEmpty != 0 {
			return true
		}

		status, err := d.status()
		if err != nil {
			return false
		}
		if status&bitMaxRT != 0 {
			// Retransmission ceiling only fires with auto-ack enabled;
			// clear it anyway so the FIFO is not wedged.
			d.mustWriteRegister(regStatus, bitMaxRT)
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// Available implements radio.Radio.
func (d *Driver) Available() (uint8, bool) {
	status, err := d.status()
	if err != nil {
		return 0, false
	}
	pipe := (status >> 1) & 0x07
	if pipe > 5 {
		return 0, false
	}
	return pipe, true
}

// Read implements radio.Radio.
func (d *Driver) Read(buf []byte) (int, error) {
	tx := make([]byte, 1+radio.PayloadSize)
	tx[0] = cmdRRxPayload
	rx, err := d.spi.transfer(tx)
	if err != nil {
		return 0, fmt.Errorf("nrf24: read payload: %w", err)
	}
	n := copy(buf, rx[1:])
	d.mustWriteRegister(regStatus, bitRxDR)
	return n, nil
}

// FlushRX implements radio.Radio.
func (d *Driver) FlushRX() {
	if _, err := d.spi.transfer([]byte{cmdFlushRx}); err != nil {
		log.Errorf("flush rx: %v", err)
	}
}

// FlushTX implements radio.Radio.
func (d *Driver) FlushTX() {
	if _, err := d.spi.transfer([]byte{cmdFlushTx}); err != nil {
		log.Errorf("flush tx: %v", err)
	}
}

// Close powers the chip down and releases the bus and CE line.
func (d *Driver) Close() error {
	if d.ce != nil {
		d.ce.set(false)
		d.ce.close()
	}
	if d.spi != nil {
		d.config &^= bitPwrUp
		if err := d.writeRegister(regConfig, d.config); err != nil {
			log.Errorf("power down: %v", err)
		}
		return d.spi.close()
	}
	return nil
}

func (d *Driver) status() (uint8, error) {
	rx, err := d.spi.transfer([]byte{cmdNop})
	if err != nil {
		return 0, fmt.Errorf("nrf24: read status: %w", err)
	}
	return rx[0], nil
}

func (d *Driver) clearStatus() {
	d.mustWriteRegister(regStatus, bitRxDR|bitTxDS|bitMaxRT)
}

func (d *Driver) readRegister(reg uint8) (uint8, error) {
	rx, err := d.spi.transfer([]byte{cmdRRegister | reg, cmdNop})
	if err != nil {
		return 0, err
	}
	return rx[1], nil
}

func (d *Driver) writeRegister(reg, val uint8) error {
	_, err := d.spi.transfer([]byte{cmdWRegister | reg, val})
	return err
}

// mustWriteRegister logs instead of failing: register write errors after a
// successful Begin are transient bus conditions.
func (d *Driver) mustWriteRegister(reg, val uint8) {
	if err := d.writeRegister(reg, val); err != nil {
		log.Errorf("write register 0x%02X: %v", reg, err)
	}
}

// mustWriteAddress writes a 3-byte little-endian pipe address.
func (d *Driver) mustWriteAddress(reg uint8, addr uint32) {
	tx := []byte{
		cmdWRegister | reg,
		uint8(addr),
		uint8(addr >> 8),
		uint8(addr >> 16),
	}
	if _, err := d.spi.transfer(tx); err != nil {
		log.Errorf("write address 0x%02X: %v", reg, err)
	}
}
