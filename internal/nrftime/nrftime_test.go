package nrftime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockMonotonic(t *testing.T) {
	c := Real()
	a := c.NowUs()
	time.Sleep(2 * time.Millisecond)
	b := c.NowUs()
	assert.Greater(t, b, a)
}

func TestManualAdvance(t *testing.T) {
	c := NewManual(100)
	assert.Equal(t, uint64(100), c.NowUs())

	c.Advance(50)
	assert.Equal(t, uint64(150), c.NowUs())
}

func TestManualSleepAdvancesInsteadOfBlocking(t *testing.T) {
	c := NewManual(0)
	start := time.Now()
	c.SleepUs(10000000)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, uint64(10000000), c.NowUs())
}
