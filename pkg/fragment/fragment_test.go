package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func newHarness() (*Layer, *captureLayer, *captureLayer) {
	l := New(nil)
	top := &captureLayer{}
	bottom := &captureLayer{}
	layer.Chain(top, l, bottom)
	return l, top, bottom
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 256)
	}
	return p
}

func TestFragmentCountAndFlags(t *testing.T) {
	cases := []struct {
		name       string
		payloadLen int
		fragments  int
		validBytes []int
	}{
		{"empty", 0, 0, nil},
		{"one byte", 1, 1, []int{1}},
		{"exact fragment", 30, 1, []int{30}},
		{"one over", 31, 2, []int{30, 1}},
		{"two full", 60, 2, []int{30, 30}},
		{"mtu sized", 1500, 50, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, bottom := newHarness()
			l.ReceiveFromUpstream(pattern(tc.payloadLen))

			require.Len(t, bottom.fromUp, tc.fragments)
			for i, buf := range bottom.fromUp {
				require.Len(t, buf, frame.Size)
				pkt, err := frame.Decode(buf)
				require.NoError(t, err)
				dataPkt := pkt.(frame.Data)

				assert.Equal(t, i == tc.fragments-1, dataPkt.Final, "fragment %d", i)
				if tc.validBytes != nil {
					assert.Equal(t, tc.validBytes[i], dataPkt.ValidBytes(), "fragment %d", i)
				}
			}
		})
	}
}

func TestExactlyOneFinalFragment(t *testing.T) {
	l, _, bottom := newHarness()
	l.ReceiveFromUpstream(pattern(95))

	finals := 0
	for _, buf := range bottom.fromUp {
		if frame.DataFinal(buf) {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

func TestReassembleRoundTrip(t *testing.T) {
	for _, n := range []int{1, 29, 30, 31, 59, 60, 61, 1500} {
		sender, _, senderBottom := newHarness()
		receiver, receiverTop, _ := newHarness()

		payload := pattern(n)
		sender.ReceiveFromUpstream(payload)
		for _, buf := range senderBottom.fromUp {
			receiver.ReceiveFromDownstream(buf)
		}

		require.Len(t, receiverTop.fromDown, 1, "payload length %d", n)
		assert.Equal(t, payload, receiverTop.fromDown[0], "payload length %d", n)
	}
}

func TestNoDeliveryBeforeFinalFragment(t *testing.T) {
	l, top, _ := newHarness()

	l.ReceiveFromDownstream(frame.Data{Payload: pattern(30)}.Encode())
	l.ReceiveFromDownstream(frame.Data{Payload: pattern(30)}.Encode())

	assert.Empty(t, top.fromDown)
}

func TestResetDropsPartialReassembly(t *testing.T) {
	l, top, _ := newHarness()

	l.ReceiveFromDownstream(frame.Data{Payload: pattern(30)}.Encode())
	l.Reset()
	l.ReceiveFromDownstream(frame.Data{Final: true, Payload: pattern(5)}.Encode())

	require.Len(t, top.fromDown, 1)
	assert.Equal(t, pattern(5), top.fromDown[0])
}

func TestPanicsOnWrongFrameSize(t *testing.T) {
	l, _, _ := newHarness()

	assert.Panics(t, func() {
		l.ReceiveFromDownstream(make([]byte, 31))
	})
}

func TestDiscardsCorruptFragment(t *testing.T) {
	l, top, _ := newHarness()

	buf := frame.Data{Final: true, Payload: pattern(10)}.Encode()
	buf[9] ^= 0x40
	l.ReceiveFromDownstream(buf)

	assert.Empty(t, top.fromDown)
}
