// Package nrfnet assembles the packet pipeline into a runnable node and
// exposes its configuration and status surfaces.
package nrfnet

import (
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/nrfnet/nrfnet/pkg/ack"
	"github.com/nrfnet/nrfnet/pkg/radio"
)

// Mode selects the radio protocol variant.
type Mode string

// Radio protocol variants. Only mesh operation is implemented; the
// primary/secondary pairing of early revisions is accepted in config for
// compatibility but rejected at validation.
const (
	ModePrimary   Mode = "primary"
	ModeSecondary Mode = "secondary"
	ModeAutomatic Mode = "automatic"
	ModeMesh      Mode = "mesh"
)

// Config defines configuration parameters for a Node.
type Config struct {
	InterfaceName    string `json:"interface_name"`
	Mode             Mode   `json:"mode"`
	Channel          uint8  `json:"channel"`
	TunnelIPAddress  string `json:"tunnel_ip_address"`
	TunnelNetmask    string `json:"tunnel_netmask"`
	PollIntervalUs   uint64 `json:"poll_interval_us"`
	EnableTunnelLogs bool   `json:"enable_tunnel_logs"`

	CEPin             uint16 `json:"ce_pin"`
	SPIDevice         string `json:"spi_device"`
	DiscoveryAddress  uint32 `json:"discovery_address"`
	PowerLevel        uint8  `json:"power_level"`
	LowNoiseAmplifier bool   `json:"low_noise_amplifier"`
	DataRate          uint8  `json:"data_rate"`
	AddressWidth      uint8  `json:"address_width"`
	Slotted           bool   `json:"slotted"`

	AckEnabled  bool `json:"ack_enabled"`
	MaxInFlight int  `json:"max_in_flight"`

	// InitialNodeID overrides the random provisional node ID when at or
	// above 101. Debug aid; zero keeps the random pick.
	InitialNodeID uint8 `json:"initial_node_id"`

	APIAddr  string `json:"api_addr"`
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the configuration a missing key falls back to.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeMesh,
		Channel:      1,
		SPIDevice:    "/dev/spidev0.0",
		PowerLevel:   uint8(radio.PowerMax),
		DataRate:     uint8(radio.DataRate2Mbps),
		AddressWidth: 3,
		AckEnabled:   true,
		MaxInFlight:  1,
		LogLevel:     "info",
	}
}

// ReadConfig decodes a JSON config, applying defaults for absent keys, and
// validates it.
func ReadConfig(r io.Reader) (Config, error) {
	conf := DefaultConfig()
	if err := json.NewDecoder(r).Decode(&conf); err != nil {
		return Config{}, fmt.Errorf("nrfnet: decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate rejects configurations the node cannot run with.
func (c Config) Validate() error {
	if c.InterfaceName == "" {
		return fmt.Errorf("nrfnet: interface_name is required")
	}
	switch c.Mode {
	case ModeMesh:
	case ModePrimary, ModeSecondary, ModeAutomatic:
		return fmt.Errorf("nrfnet: mode %q is not supported, only mesh operation is implemented", c.Mode)
	default:
		return fmt.Errorf("nrfnet: unknown mode %q", c.Mode)
	}
	if c.Channel > 127 {
		return fmt.Errorf("nrfnet: channel %d must be between 0 and 127", c.Channel)
	}
	if net.ParseIP(c.TunnelIPAddress).To4() == nil {
		return fmt.Errorf("nrfnet: invalid tunnel_ip_address %q", c.TunnelIPAddress)
	}
	if net.ParseIP(c.TunnelNetmask).To4() == nil {
		return fmt.Errorf("nrfnet: invalid tunnel_netmask %q", c.TunnelNetmask)
	}
	if c.AddressWidth < 3 || c.AddressWidth > 5 {
		return fmt.Errorf("nrfnet: address_width %d must be between 3 and 5", c.AddressWidth)
	}
	if c.MaxInFlight < 1 || c.MaxInFlight > ack.MaxWindow {
		return fmt.Errorf("nrfnet: max_in_flight %d must be between 1 and %d", c.MaxInFlight, ack.MaxWindow)
	}
	if c.DataRate > uint8(radio.DataRate250Kbps) {
		return fmt.Errorf("nrfnet: invalid data_rate %d", c.DataRate)
	}
	if c.PowerLevel > uint8(radio.PowerMax) {
		return fmt.Errorf("nrfnet: invalid power_level %d", c.PowerLevel)
	}
	return nil
}
