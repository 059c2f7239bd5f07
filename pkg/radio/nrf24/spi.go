//go:build linux

package nrf24

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl requests.
const (
	spiIOCWrMode        = 0x40016B01
	spiIOCWrBitsPerWord = 0x40016B03
	spiIOCWrMaxSpeedHz  = 0x40046B04
	spiIOCMessage1      = 0x40206B00
)

// spiIOCTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h.
type spiIOCTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// spiDev is a full-duplex spidev handle.
type spiDev struct {
	f     *os.File
	speed uint32
}

func openSPI(device string, speedHz uint32) (*spiDev, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	d := &spiDev{f: f, speed: speedHz}

	mode := uint8(0) // SPI mode 0, as required by the transceiver
	if err := d.ioctl(spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set mode: %w", err)
	}
	bits := uint8(8)
	if err := d.ioctl(spiIOCWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set bits per word: %w", err)
	}
	if err := d.ioctl(spiIOCWrMaxSpeedHz, unsafe.Pointer(&d.speed)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set speed: %w", err)
	}
	return d, nil
}

// transfer clocks tx out and returns the bytes clocked in, which always
// begin with the chip's STATUS register.
func (d *spiDev) transfer(tx []byte) ([]byte, error) {
	rx := make([]byte, len(tx))
	tr := spiIOCTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     d.speed,
		bitsPerWord: 8,
	}
	if err := d.ioctl(spiIOCMessage1, unsafe.Pointer(&tr)); err != nil {
		return nil, err
	}
	return rx, nil
}

func (d *spiDev) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *spiDev) close() error {
	return d.f.Close()
}
