package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDiscovery(t *testing.T) {
	buf := Discovery{Source: 0x96}.Encode()
	require.Len(t, buf, Size)

	assert.Equal(t, TypeDiscovery, TypeOf(buf))
	assert.Equal(t, uint8(0x96), buf[1])
	assert.True(t, Valid(buf))
}

func TestDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		pkt  Packet
	}{
		{"discovery", Discovery{Source: 150}},
		{"discover response", DiscoverResponse{Source: 3, Neighbors: []uint8{0, 1, 7}}},
		{"discover response empty", DiscoverResponse{Source: 0, Neighbors: []uint8{}}},
		{"node id announcement", NodeIDAnnounce{Source: 1}},
		{"time synch", TimeSynch{Source: 2, TimeLeftUs: 4321}},
		{"time synch ack", TimeSynch{Ack: true, Source: 2, TimeLeftUs: 1 << 40}},
		{"data", Data{Seq: 2, Final: true, Payload: []byte("hello")}},
		{"data ack", Data{Ack: true, Seq: 3, Payload: make([]byte, PayloadSize)}},
		{"status", Status{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := tc.pkt.Encode()
			require.Len(t, buf, Size)
			require.True(t, Valid(buf))

			decoded, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.pkt, decoded)
		})
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	_, err := Decode(make([]byte, 31))
	assert.Equal(t, ErrBadLength, err)

	_, err = Decode(make([]byte, 33))
	assert.Equal(t, ErrBadLength, err)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	buf := Data{Seq: 1, Payload: []byte{1, 2, 3}}.Encode()
	buf[5] ^= 0x10

	_, err := Decode(buf)
	assert.Equal(t, ErrBadChecksum, err)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	buf := make([]byte, Size)
	buf[0] = 0x0F << 4
	Stamp(buf)

	_, err := Decode(buf)
	assert.Equal(t, ErrUnknownType, err)
}

func TestTypeCodes(t *testing.T) {
	// Wire codes are fixed for interoperability.
	assert.Equal(t, Type(1), TypeDiscovery)
	assert.Equal(t, Type(2), TypeDiscoverResponse)
	assert.Equal(t, Type(3), TypeNodeIDAnnounce)
	assert.Equal(t, Type(4), TypeTimeSynch)
	assert.Equal(t, Type(5), TypeTimeSynchAck)
	assert.Equal(t, Type(6), TypeData)
	assert.Equal(t, Type(7), TypeDataAck)
	assert.Equal(t, Type(8), TypeStatus)
}

func TestDataFieldHelpers(t *testing.T) {
	buf := Data{Seq: 1, Final: true, Payload: []byte("abc")}.Encode()

	assert.Equal(t, uint8(1), DataSeq(buf))
	assert.True(t, DataFinal(buf))

	SetDataSeq(buf, 3)
	assert.Equal(t, uint8(3), DataSeq(buf))
	assert.True(t, Valid(buf))

	SetType(buf, TypeDataAck)
	assert.Equal(t, TypeDataAck, TypeOf(buf))
	assert.True(t, Valid(buf))

	decoded, err := Decode(buf)
	require.NoError(t, err)
	ack := decoded.(Data)
	assert.True(t, ack.Ack)
	assert.Equal(t, uint8(3), ack.Seq)
	assert.Equal(t, []byte("abc"), ack.Payload)
}

func TestEncodeTruncatesNeighborOverflow(t *testing.T) {
	neighbors := make([]uint8, 40)
	for i := range neighbors {
		neighbors[i] = uint8(i)
	}

	buf := DiscoverResponse{Source: 9, Neighbors: neighbors}.Encode()
	decoded, err := Decode(buf)
	require.NoError(t, err)

	resp := decoded.(DiscoverResponse)
	assert.Len(t, resp.Neighbors, MaxNeighbors)
	assert.Equal(t, neighbors[:MaxNeighbors], resp.Neighbors)
}
