package nrfnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	conf := DefaultConfig()
	conf.InterfaceName = "nrf0"
	conf.TunnelIPAddress = "192.168.10.1"
	conf.TunnelNetmask = "255.255.255.0"
	return conf
}

func TestReadConfigAppliesDefaults(t *testing.T) {
	conf, err := ReadConfig(strings.NewReader(`{
		"interface_name": "nrf0",
		"tunnel_ip_address": "192.168.10.1",
		"tunnel_netmask": "255.255.255.0"
	}`))
	require.NoError(t, err)

	assert.Equal(t, ModeMesh, conf.Mode)
	assert.Equal(t, uint8(1), conf.Channel)
	assert.Equal(t, "/dev/spidev0.0", conf.SPIDevice)
	assert.True(t, conf.AckEnabled)
	assert.Equal(t, 1, conf.MaxInFlight)
	assert.Equal(t, uint8(3), conf.AddressWidth)
}

func TestReadConfigRejectsMalformedJSON(t *testing.T) {
	_, err := ReadConfig(strings.NewReader(`{"interface_name"`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"slotted valid", func(c *Config) { c.Slotted = true }, true},
		{"missing interface", func(c *Config) { c.InterfaceName = "" }, false},
		{"primary mode", func(c *Config) { c.Mode = ModePrimary }, false},
		{"secondary mode", func(c *Config) { c.Mode = ModeSecondary }, false},
		{"automatic mode", func(c *Config) { c.Mode = ModeAutomatic }, false},
		{"unknown mode", func(c *Config) { c.Mode = "bridge" }, false},
		{"channel too high", func(c *Config) { c.Channel = 128 }, false},
		{"bad tunnel ip", func(c *Config) { c.TunnelIPAddress = "not-an-ip" }, false},
		{"bad netmask", func(c *Config) { c.TunnelNetmask = "255.255" }, false},
		{"window zero", func(c *Config) { c.MaxInFlight = 0 }, false},
		{"window too large", func(c *Config) { c.MaxInFlight = 5 }, false},
		{"address width too small", func(c *Config) { c.AddressWidth = 2 }, false},
		{"address width too large", func(c *Config) { c.AddressWidth = 6 }, false},
		{"bad data rate", func(c *Config) { c.DataRate = 9 }, false},
		{"bad power level", func(c *Config) { c.PowerLevel = 9 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := validConfig()
			tc.mutate(&conf)
			err := conf.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
