//go:build linux

package tunnel

import (
	"fmt"
	"net"

	"github.com/songgao/water"
	"golang.org/x/sys/unix"
)

// DeviceConfig describes the TUN interface to create.
type DeviceConfig struct {
	// Name is the interface name, e.g. nrf0.
	Name string

	// Addr is the IPv4 address to assign, e.g. 192.168.10.1.
	Addr string

	// Netmask is the dotted IPv4 mask, e.g. 255.255.255.0.
	Netmask string
}

type tunDevice struct {
	*water.Interface
}

func (d *tunDevice) Name() string { return d.Interface.Name() }

// OpenDevice creates the TUN interface (no packet info), brings the link up
// and assigns the address and netmask.
func OpenDevice(cfg DeviceConfig) (Device, error) {
	ifce, err := water.New(water.Config{
		DeviceType: water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name: cfg.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tunnel: create %s: %w", cfg.Name, err)
	}

	if err := configureInterface(ifce.Name(), cfg.Addr, cfg.Netmask); err != nil {
		ifce.Close()
		return nil, err
	}
	return &tunDevice{Interface: ifce}, nil
}

func configureInterface(name, addr, netmask string) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("tunnel: open control socket: %w", err)
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return fmt.Errorf("tunnel: interface name %q: %w", name, err)
	}

	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return fmt.Errorf("tunnel: invalid IPv4 address %q", addr)
	}
	if err := ifr.SetInet4Addr(ip); err != nil {
		return fmt.Errorf("tunnel: set address: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFADDR, ifr); err != nil {
		return fmt.Errorf("tunnel: assign address %s: %w", addr, err)
	}

	mask := net.ParseIP(netmask).To4()
	if mask == nil {
		return fmt.Errorf("tunnel: invalid netmask %q", netmask)
	}
	if err := ifr.SetInet4Addr(mask); err != nil {
		return fmt.Errorf("tunnel: set netmask: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFNETMASK, ifr); err != nil {
		return fmt.Errorf("tunnel: assign netmask %s: %w", netmask, err)
	}

	ifr.SetUint16(unix.IFF_UP | unix.IFF_RUNNING)
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return fmt.Errorf("tunnel: bring %s up: %w", name, err)
	}
	return nil
}
