// Package clusterserver provides the membership message codec.
package clusterserver

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// MessageLen is the length of a ping or pong message:
// tag(1) followed by the sender node id, little endian.
const MessageLen = 5

// ErrBadMessage is returned for malformed ping/pong messages.
var ErrBadMessage = errors.New("clusterserver: malformed membership message")

// MessageKind is the kind of a membership message.
type MessageKind uint8

const (
	// Ping asks the receiver to record the sender and to answer with a Pong.
	Ping MessageKind = iota + 1

	// Pong answers a Ping.
	Pong
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is a membership protocol message.
type Message struct {
	Kind   MessageKind
	NodeID cid.NodeID
}

// EncodeMessage writes m into b and returns the number of bytes written.
func EncodeMessage(b []byte, m Message) (int, error) {
	if len(b) < MessageLen {
		return 0, fmt.Errorf("%w: buffer too short", ErrBadMessage)
	}
	switch m.Kind {
	case Ping:
		b[0] = byte(TagPing)
	case Pong:
		b[0] = byte(TagPong)
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrBadMessage, uint8(m.Kind))
	}
	binary.LittleEndian.PutUint32(b[1:MessageLen], uint32(m.NodeID))
	return MessageLen, nil
}

// DecodeMessage decodes a ping or pong message.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) != MessageLen {
		return Message{}, fmt.Errorf("%w: length %d", ErrBadMessage, len(b))
	}

	var kind MessageKind
	switch Tag(b[0]) {
	case TagPing:
		kind = Ping
	case TagPong:
		kind = Pong
	default:
		return Message{}, fmt.Errorf("%w: tag 0x%02x", ErrBadMessage, b[0])
	}

	return Message{
		Kind:   kind,
		NodeID: cid.NodeID(binary.LittleEndian.Uint32(b[1:MessageLen])),
	}, nil
}
