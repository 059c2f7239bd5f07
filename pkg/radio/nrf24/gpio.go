//go:build linux

package nrf24

import (
	"fmt"
	"os"
	"time"
)

// gpioPin is a sysfs GPIO output line.
type gpioPin struct {
	number uint16
	value  *os.File
}

func exportGPIO(number uint16) (*gpioPin, error) {
	base := fmt.Sprintf("/sys/class/gpio/gpio%d", number)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		if err := os.WriteFile("/sys/class/gpio/export", []byte(fmt.Sprintf("%d", number)), 0200); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		// The kernel needs a moment to create the attribute files.
		time.Sleep(50 * time.Millisecond)
	}

	if err := os.WriteFile(base+"/direction", []byte("out"), 0644); err != nil {
		return nil, fmt.Errorf("set direction: %w", err)
	}

	value, err := os.OpenFile(base+"/value", os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open value: %w", err)
	}
	return &gpioPin{number: number, value: value}, nil
}

func (p *gpioPin) set(high bool) {
	b := []byte("0")
	if high {
		b = []byte("1")
	}
	if _, err := p.value.WriteAt(b, 0); err != nil {
		log.Errorf("gpio %d write: %v", p.number, err)
	}
}

func (p *gpioPin) close() {
	if err := p.value.Close(); err != nil {
		log.Errorf("gpio %d close: %v", p.number, err)
	}
}
