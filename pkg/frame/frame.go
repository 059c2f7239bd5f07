// Package frame implements the fixed 32-byte radio frame exchanged on-air:
// typed variants at the API level and a fixed-layout encoder/decoder at the
// wire boundary.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Size is the exact on-air frame length in bytes.
	Size = 32

	// HeaderSize is the number of leading bytes in a Data frame that are
	// not payload.
	HeaderSize = 2

	// PayloadSize is the number of payload bytes a Data frame carries.
	PayloadSize = Size - HeaderSize

	// MaxNeighbors is the number of neighbor IDs a DiscoverResponse can
	// report in one frame.
	MaxNeighbors = 29
)

// Type is the 4-bit frame type discriminator.
type Type uint8

// Frame type codes. These values are on the wire and must not change.
const (
	TypeNone             Type = 0
	TypeDiscovery        Type = 1
	TypeDiscoverResponse Type = 2
	TypeNodeIDAnnounce   Type = 3
	TypeTimeSynch        Type = 4
	TypeTimeSynchAck     Type = 5
	TypeData             Type = 6
	TypeDataAck          Type = 7
	TypeStatus           Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeDiscovery:
		return "Discovery"
	case TypeDiscoverResponse:
		return "DiscoverResponse"
	case TypeNodeIDAnnounce:
		return "NodeIdAnnouncement"
	case TypeTimeSynch:
		return "TimeSynch"
	case TypeTimeSynchAck:
		return "TimeSynchAck"
	case TypeData:
		return "Data"
	case TypeDataAck:
		return "DataAck"
	case TypeStatus:
		return "Status"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ErrBadLength is returned when a buffer is not exactly Size bytes.
var ErrBadLength = errors.New("frame: buffer must be exactly 32 bytes")

// ErrBadChecksum is returned when a frame fails checksum validation.
var ErrBadChecksum = errors.New("frame: invalid checksum")

// ErrUnknownType is returned when the type nibble holds an unassigned code.
var ErrUnknownType = errors.New("frame: unknown frame type")

// TypeOf reads the type nibble without validating the rest of the frame.
func TypeOf(buf []byte) Type {
	if len(buf) == 0 {
		return TypeNone
	}
	return Type(buf[0] >> 4)
}

// Packet is a decoded frame variant.
type Packet interface {
	// Type returns the wire type code of the variant.
	Type() Type

	// Encode produces the 32-byte wire form with the checksum stamped.
	Encode() []byte
}

// Discovery announces an unassigned node looking for neighbors.
type Discovery struct {
	Source uint8
}

// Type implements Packet.
func (Discovery) Type() Type { return TypeDiscovery }

// Encode implements Packet.
func (p Discovery) Encode() []byte {
	buf := newBuf(TypeDiscovery)
	buf[1] = p.Source
	Stamp(buf)
	return buf
}

// DiscoverResponse reports a responder's node ID and its known neighbors.
type DiscoverResponse struct {
	Source    uint8
	Neighbors []uint8
}

// Type implements Packet.
func (DiscoverResponse) Type() Type { return TypeDiscoverResponse }

// Encode implements Packet. Neighbor lists longer than MaxNeighbors are
// truncated; the valid count reflects what was encoded.
func (p DiscoverResponse) Encode() []byte {
	buf := newBuf(TypeDiscoverResponse)
	buf[1] = p.Source
	n := len(p.Neighbors)
	if n > MaxNeighbors {
		n = MaxNeighbors
	}
	buf[2] = uint8(n)
	copy(buf[3:], p.Neighbors[:n])
	Stamp(buf)
	return buf
}

// NodeIDAnnounce broadcasts a freshly assigned node ID.
type NodeIDAnnounce struct {
	Source uint8
}

// Type implements Packet.
func (NodeIDAnnounce) Type() Type { return TypeNodeIDAnnounce }

// Encode implements Packet.
func (p NodeIDAnnounce) Encode() []byte {
	buf := newBuf(TypeNodeIDAnnounce)
	buf[1] = p.Source
	Stamp(buf)
	return buf
}

// TimeSynch carries the microseconds remaining in the sender's current slot.
// Ack selects between the TimeSynch and TimeSynchAck wire types; the layout
// is identical.
type TimeSynch struct {
	Ack        bool
	Source     uint8
	TimeLeftUs uint64
}

// Type implements Packet.
func (p TimeSynch) Type() Type {
	if p.Ack {
		return TypeTimeSynchAck
	}
	return TypeTimeSynch
}

// Encode implements Packet.
func (p TimeSynch) Encode() []byte {
	buf := newBuf(p.Type())
	buf[1] = p.Source
	binary.LittleEndian.PutUint64(buf[2:10], p.TimeLeftUs)
	Stamp(buf)
	return buf
}

// Data is an application payload fragment. Ack selects between the Data and
// DataAck wire types. Seq is a 2-bit wire sequence: only the low two bits
// are encoded.
type Data struct {
	Ack     bool
	Seq     uint8
	Final   bool
	Payload []byte
}

// Type implements Packet.
func (p Data) Type() Type {
	if p.Ack {
		return TypeDataAck
	}
	return TypeData
}

// Encode implements Packet. Panics if the payload exceeds PayloadSize: a
// larger payload is a programming error in the fragmentation layer.
func (p Data) Encode() []byte {
	if len(p.Payload) > PayloadSize {
		panic(fmt.Sprintf("frame: data payload of %d bytes exceeds %d", len(p.Payload), PayloadSize))
	}
	buf := newBuf(p.Type())
	buf[1] = uint8(len(p.Payload)) & 0x1F
	if p.Final {
		buf[1] |= 1 << 5
	}
	buf[1] |= (p.Seq & 0x03) << 6
	copy(buf[HeaderSize:], p.Payload)
	Stamp(buf)
	return buf
}

// ValidBytes returns the number of payload bytes carried.
func (p Data) ValidBytes() int { return len(p.Payload) }

// Status is reserved for link health reporting. The body is currently
// unused.
type Status struct{}

// Type implements Packet.
func (Status) Type() Type { return TypeStatus }

// Encode implements Packet.
func (Status) Encode() []byte {
	buf := newBuf(TypeStatus)
	Stamp(buf)
	return buf
}

// Decode validates length and checksum and returns the typed variant.
func Decode(buf []byte) (Packet, error) {
	if len(buf) != Size {
		return nil, ErrBadLength
	}
	if !Valid(buf) {
		return nil, ErrBadChecksum
	}
	switch TypeOf(buf) {
	case TypeDiscovery:
		return Discovery{Source: buf[1]}, nil
	case TypeDiscoverResponse:
		n := int(buf[2])
		if n > MaxNeighbors {
			n = MaxNeighbors
		}
		neighbors := make([]uint8, n)
		copy(neighbors, buf[3:3+n])
		return DiscoverResponse{Source: buf[1], Neighbors: neighbors}, nil
	case TypeNodeIDAnnounce:
		return NodeIDAnnounce{Source: buf[1]}, nil
	case TypeTimeSynch, TypeTimeSynchAck:
		return TimeSynch{
			Ack:        TypeOf(buf) == TypeTimeSynchAck,
			Source:     buf[1],
			TimeLeftUs: binary.LittleEndian.Uint64(buf[2:10]),
		}, nil
	case TypeData, TypeDataAck:
		valid := int(buf[1] & 0x1F)
		if valid > PayloadSize {
			valid = PayloadSize
		}
		payload := make([]byte, valid)
		copy(payload, buf[HeaderSize:HeaderSize+valid])
		return Data{
			Ack:     TypeOf(buf) == TypeDataAck,
			Seq:     (buf[1] >> 6) & 0x03,
			Final:   buf[1]&(1<<5) != 0,
			Payload: payload,
		}, nil
	case TypeStatus:
		return Status{}, nil
	default:
		return nil, ErrUnknownType
	}
}

// DataSeq reads the 2-bit sequence field from an encoded Data or DataAck
// frame without decoding the payload.
func DataSeq(buf []byte) uint8 {
	return (buf[1] >> 6) & 0x03
}

// DataFinal reads the final-fragment flag from an encoded Data frame.
func DataFinal(buf []byte) bool {
	return buf[1]&(1<<5) != 0
}

// SetDataSeq writes the 2-bit sequence field into an encoded Data frame and
// restamps the checksum.
func SetDataSeq(buf []byte, seq uint8) {
	buf[1] = buf[1]&^(0x03<<6) | (seq&0x03)<<6
	Stamp(buf)
}

// SetType rewrites the type nibble of an encoded frame and restamps the
// checksum. Used to turn a Data frame into its DataAck without re-encoding.
func SetType(buf []byte, t Type) {
	buf[0] = buf[0]&0x0F | uint8(t)<<4
	Stamp(buf)
}

func newBuf(t Type) []byte {
	buf := make([]byte, Size)
	buf[0] = uint8(t) << 4
	return buf
}
