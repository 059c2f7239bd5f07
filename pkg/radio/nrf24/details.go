//go:build linux

package nrf24

import (
	"fmt"
	"strings"
)

// Details returns a human-readable register dump for bring-up debugging,
// in the spirit of the reference driver's printDetails.
func (d *Driver) Details() string {
	var b strings.Builder

	status, err := d.status()
	if err != nil {
		return fmt.Sprintf("status unavailable: %v", err)
	}
	fmt.Fprintf(&b, "STATUS\t\t= 0x%02x RX_DR=%x TX_DS=%x MAX_RT=%x RX_P_NO=%x TX_FULL=%x\n",
		status,
		status>>6&0x01,
		status>>5&0x01,
		status>>4&0x01,
		status>>1&0x07,
		status&0x01)

	for _, reg := range []struct {
		name string
		addr uint8
	}{
		{"CONFIG", regConfig},
		{"EN_AA", regEnAA},
		{"EN_RXADDR", regEnRxAddr},
		{"SETUP_AW", regSetupAW},
		{"SETUP_RETR", regSetupRetr},
		{"RF_CH", regRFCh},
		{"RF_SETUP", regRFSetup},
		{"FIFO_STATUS", regFIFOStatus},
		{"DYNPD", regDynPD},
		{"FEATURE", regFeature},
	} {
		v, err := d.readRegister(reg.addr)
		if err != nil {
			fmt.Fprintf(&b, "%s\t= read failed: %v\n", reg.name, err)
			continue
		}
		fmt.Fprintf(&b, "%s\t= 0x%02x\n", reg.name, v)
	}

	for pipe := uint8(0); pipe < 2; pipe++ {
		addr, err := d.readAddress(regRxAddrP0 + pipe)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "RX_ADDR_P%d\t= 0x%06x\n", pipe, addr)
	}
	if addr, err := d.readAddress(regTxAddr); err == nil {
		fmt.Fprintf(&b, "TX_ADDR\t\t= 0x%06x\n", addr)
	}

	return b.String()
}

// readAddress reads a 3-byte little-endian pipe address.
func (d *Driver) readAddress(reg uint8) (uint32, error) {
	rx, err := d.spi.transfer([]byte{cmdRRegister | reg, cmdNop, cmdNop, cmdNop})
	if err != nil {
		return 0, err
	}
	return uint32(rx[1]) | uint32(rx[2])<<8 | uint32(rx[3])<<16, nil
}
