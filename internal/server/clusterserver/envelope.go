// Package clusterserver provides the cluster datagram envelope codec.
package clusterserver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// EnvelopeHeaderLen is the fixed length of the envelope header.
//
// Layout:
//
//	0     tag (0x3F forwarded incoming, 0x3E forwarded outgoing)
//	1     source address length (4 or 16)
//	2..3  source port, little endian
//	4..   source address, zero padded to EnvelopeHeaderLen
const EnvelopeHeaderLen = 20

var (
	// ErrShortEnvelope is returned for datagrams shorter than the envelope header.
	ErrShortEnvelope = errors.New("clusterserver: envelope too short")

	// ErrUnknownTag is returned when the leading byte is not an envelope tag.
	ErrUnknownTag = errors.New("clusterserver: unknown envelope tag")

	// ErrBadAddressLength is returned for address lengths other than 4 and 16.
	ErrBadAddressLength = errors.New("clusterserver: bad envelope address length")

	// ErrInvalidSource is returned when encoding an envelope without source
	// or with a zoned IPv6 source.
	ErrInvalidSource = errors.New("clusterserver: invalid envelope source")
)

// Tag is the leading byte of every datagram on the cluster socket.
type Tag byte

// Cluster datagram tags.
const (
	TagForwardIncoming Tag = 0x3F
	TagForwardOutgoing Tag = 0x3E
	TagPing            Tag = 0x3D
	TagPong            Tag = 0x3C
)

// Direction is the direction of a forwarded datagram.
type Direction uint8

const (
	// Incoming envelopes carry a datagram a router node received from a peer.
	Incoming Direction = iota + 1

	// Outgoing envelopes carry a record the owning node sends back to a peer
	// through the router node.
	Outgoing
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func (d Direction) tag() (Tag, bool) {
	switch d {
	case Incoming:
		return TagForwardIncoming, true
	case Outgoing:
		return TagForwardOutgoing, true
	default:
		return 0, false
	}
}

func directionOf(t Tag) (Direction, bool) {
	switch t {
	case TagForwardIncoming:
		return Incoming, true
	case TagForwardOutgoing:
		return Outgoing, true
	default:
		return 0, false
	}
}

// Envelope is a forwarded datagram together with its original peer address.
type Envelope struct {
	Direction Direction

	// Source is the original peer: the sender of an incoming datagram, or
	// the destination of an outgoing record.
	Source netip.AddrPort

	Payload []byte
}

// EncodeEnvelope writes the envelope header into the first EnvelopeHeaderLen
// bytes of frame. The payload must already be in place at
// frame[EnvelopeHeaderLen:], so forwarding never copies it.
func EncodeEnvelope(frame []byte, dir Direction, source netip.AddrPort) error {
	if len(frame) < EnvelopeHeaderLen {
		return ErrShortEnvelope
	}
	tag, ok := dir.tag()
	if !ok {
		return fmt.Errorf("clusterserver: unknown direction %d", uint8(dir))
	}
	// The header has no room for an IPv6 zone.
	if !source.IsValid() || source.Addr().Zone() != "" {
		return ErrInvalidSource
	}

	var n int
	addr := source.Addr()
	if addr.Is4() {
		a := addr.As4()
		n = copy(frame[4:], a[:])
	} else {
		a := addr.As16()
		n = copy(frame[4:], a[:])
	}

	frame[0] = byte(tag)
	frame[1] = byte(n)
	binary.LittleEndian.PutUint16(frame[2:4], source.Port())
	clear(frame[4+n : EnvelopeHeaderLen])
	return nil
}

// AppendEnvelope appends an envelope carrying a copy of payload to dst.
func AppendEnvelope(dst []byte, dir Direction, source netip.AddrPort, payload []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, EnvelopeHeaderLen)...)
	dst = append(dst, payload...)
	if err := EncodeEnvelope(dst[start:], dir, source); err != nil {
		return dst[:start], err
	}
	return dst, nil
}

// DecodeEnvelope decodes frame. The returned payload aliases frame.
//
// Any malformed header is rejected as a whole.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	if len(frame) < EnvelopeHeaderLen {
		return Envelope{}, ErrShortEnvelope
	}
	dir, ok := directionOf(Tag(frame[0]))
	if !ok {
		return Envelope{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, frame[0])
	}

	var addr netip.Addr
	switch n := frame[1]; n {
	case 4:
		addr = netip.AddrFrom4([4]byte(frame[4:8]))
	case 16:
		addr = netip.AddrFrom16([16]byte(frame[4:20]))
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrBadAddressLength, n)
	}

	return Envelope{
		Direction: dir,
		Source:    netip.AddrPortFrom(addr, binary.LittleEndian.Uint16(frame[2:4])),
		Payload:   frame[EnvelopeHeaderLen:],
	}, nil
}
