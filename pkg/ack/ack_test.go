package ack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrfnet/nrfnet/internal/nrftime"
	"github.com/nrfnet/nrfnet/pkg/frame"
	"github.com/nrfnet/nrfnet/pkg/layer"
)

type captureLayer struct {
	layer.Base
	fromUp   [][]byte
	fromDown [][]byte
}

func (l *captureLayer) ReceiveFromUpstream(data []byte)   { l.fromUp = append(l.fromUp, data) }
func (l *captureLayer) ReceiveFromDownstream(data []byte) { l.fromDown = append(l.fromDown, data) }
func (l *captureLayer) Reset()                            {}

func newHarness(cfg Config, clock nrftime.Clock) (*Layer, *captureLayer, *captureLayer) {
	l := New(cfg, clock, nil)
	top := &captureLayer{}
	bottom := &captureLayer{}
	layer.Chain(top, l, bottom)
	return l, top, bottom
}

func dataFrame(payload string) []byte {
	return frame.Data{Final: true, Payload: []byte(payload)}.Encode()
}

func ackFor(t *testing.T, sent []byte) []byte {
	t.Helper()
	buf := make([]byte, len(sent))
	copy(buf, sent)
	frame.SetType(buf, frame.TypeDataAck)
	return buf
}

func TestSingleInFlightWindow(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{}, clock)

	l.ReceiveFromUpstream(dataFrame("one"))
	l.ReceiveFromUpstream(dataFrame("two"))

	l.Run()
	require.Len(t, bottom.fromUp, 1)
	assert.Equal(t, 1, l.InFlight())

	// Window is full: the second fragment stays queued.
	l.Run()
	assert.Len(t, bottom.fromUp, 1)

	l.ReceiveFromDownstream(ackFor(t, bottom.fromUp[0]))
	assert.Equal(t, 0, l.InFlight())

	l.Run()
	assert.Len(t, bottom.fromUp, 2)
}

func TestRetransmitAfterTimeout(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{}, clock)

	l.ReceiveFromUpstream(dataFrame("payload"))
	l.Run()
	require.Len(t, bottom.fromUp, 1)

	clock.Advance(DefaultRetryUs / 2)
	l.Run()
	assert.Len(t, bottom.fromUp, 1)

	clock.Advance(DefaultRetryUs)
	l.Run()
	assert.Len(t, bottom.fromUp, 2)
	assert.Equal(t, bottom.fromUp[0], bottom.fromUp[1])
}

func TestDropAfterRetryExhaustion(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{MaxTries: 3}, clock)

	l.ReceiveFromUpstream(dataFrame("doomed"))
	l.Run()

	for i := 0; i < 10; i++ {
		clock.Advance(DefaultRetryUs + 1)
		l.Run()
	}

	assert.Equal(t, 0, l.InFlight())
	// First transmission plus three retries.
	assert.Len(t, bottom.fromUp, 4)
}

func TestIncomingDataForwardedAndAcked(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, top, bottom := newHarness(Config{}, clock)

	incoming := dataFrame("from peer")
	l.ReceiveFromDownstream(incoming)

	require.Len(t, top.fromDown, 1)
	assert.Equal(t, incoming, top.fromDown[0])

	require.Len(t, bottom.fromUp, 1)
	assert.Equal(t, frame.TypeDataAck, frame.TypeOf(bottom.fromUp[0]))
	assert.Equal(t, frame.DataSeq(incoming), frame.DataSeq(bottom.fromUp[0]))
	assert.True(t, frame.Valid(bottom.fromUp[0]))
}

func TestAckMatchesBySequenceNotPayload(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{}, clock)

	// Two identical payloads: matching must rely on the sequence field.
	l.ReceiveFromUpstream(dataFrame("same"))
	l.ReceiveFromUpstream(dataFrame("same"))

	l.Run()
	require.Len(t, bottom.fromUp, 1)
	first := bottom.fromUp[0]

	l.ReceiveFromDownstream(ackFor(t, first))
	l.Run()
	require.Len(t, bottom.fromUp, 2)
	second := bottom.fromUp[1]

	assert.NotEqual(t, frame.DataSeq(first), frame.DataSeq(second))

	l.ReceiveFromDownstream(ackFor(t, second))
	assert.Equal(t, 0, l.InFlight())
}

func TestStaleAckIgnored(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{}, clock)

	l.ReceiveFromUpstream(dataFrame("payload"))
	l.Run()
	require.Len(t, bottom.fromUp, 1)

	stale := ackFor(t, bottom.fromUp[0])
	frame.SetDataSeq(stale, frame.DataSeq(stale)+1)
	frame.SetType(stale, frame.TypeDataAck)

	l.ReceiveFromDownstream(stale)
	assert.Equal(t, 1, l.InFlight())
}

func TestDisabledPassthrough(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, top, bottom := newHarness(Config{Disabled: true}, clock)

	down := dataFrame("down")
	l.ReceiveFromUpstream(down)
	require.Len(t, bottom.fromUp, 1)
	assert.Equal(t, down, bottom.fromUp[0])
	assert.Equal(t, 0, l.InFlight())

	up := dataFrame("up")
	l.ReceiveFromDownstream(up)
	require.Len(t, top.fromDown, 1)
	assert.Equal(t, up, top.fromDown[0])
	// No ack generated.
	assert.Len(t, bottom.fromUp, 1)
}

func TestUpstreamOrderPreserved(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, top, _ := newHarness(Config{}, clock)

	for i := 0; i < 5; i++ {
		l.ReceiveFromDownstream(frame.Data{Seq: uint8(i), Final: true, Payload: []byte{byte(i)}}.Encode())
	}

	require.Len(t, top.fromDown, 5)
	for i, buf := range top.fromDown {
		pkt, err := frame.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, pkt.(frame.Data).Payload)
	}
}

func TestRetransmittedDataAckedButDeliveredOnce(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, top, bottom := newHarness(Config{}, clock)

	incoming := frame.Data{Seq: 2, Final: true, Payload: []byte("dup")}.Encode()
	l.ReceiveFromDownstream(incoming)
	l.ReceiveFromDownstream(incoming)

	// Delivered once, acked twice.
	assert.Len(t, top.fromDown, 1)
	assert.Len(t, bottom.fromUp, 2)

	next := frame.Data{Seq: 3, Final: true, Payload: []byte("dup")}.Encode()
	l.ReceiveFromDownstream(next)
	assert.Len(t, top.fromDown, 2)
}

func TestWindowClampedToMax(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{Window: 10}, clock)

	for i := 0; i < 8; i++ {
		l.ReceiveFromUpstream(frame.Data{Final: true, Payload: []byte{byte(i)}}.Encode())
	}
	for i := 0; i < 8; i++ {
		l.Run()
	}

	assert.Equal(t, MaxWindow, l.InFlight())
	assert.Len(t, bottom.fromUp, MaxWindow)
}

func TestResetClearsState(t *testing.T) {
	clock := nrftime.NewManual(0)
	l, _, bottom := newHarness(Config{}, clock)

	l.ReceiveFromUpstream(dataFrame("a"))
	l.ReceiveFromUpstream(dataFrame("b"))
	l.Run()

	l.Reset()
	assert.Equal(t, 0, l.InFlight())

	l.Run()
	assert.Len(t, bottom.fromUp, 1)
}
