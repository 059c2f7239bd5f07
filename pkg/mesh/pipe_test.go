package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryAddress(t *testing.T) {
	assert.Equal(t, uint32(0xFFAB00BA), DiscoveryAddress())
}

func TestNodeAddress(t *testing.T) {
	assert.Equal(t, uint32(0xFFAB0001), NodeAddress(0, 1))
	assert.Equal(t, uint32(0xFFAB0105), NodeAddress(1, 5))
	assert.Equal(t, uint32(0xFFAB6401), NodeAddress(100, 1))
}

func TestNodeAddressesUnique(t *testing.T) {
	seen := map[uint32]bool{}
	for id := 0; id < int(MinDiscoveryID); id++ {
		for pipe := uint8(1); pipe <= 5; pipe++ {
			addr := NodeAddress(uint8(id), pipe)
			assert.False(t, seen[addr], "duplicate address %#x", addr)
			seen[addr] = true
		}
	}
	assert.False(t, seen[DiscoveryAddress()])
}
