// Package cid provides connection identifier utilities for clustered DTLS endpoints.
package cid

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// MaxNodeID is the largest node id a node-prefixed CID can carry.
const MaxNodeID = 0xFF

// DefaultLength is the default CID length in bytes.
const DefaultLength = 6

var (
	// ErrNodeIDOutOfRange is returned when a node id does not fit into a CID.
	ErrNodeIDOutOfRange = errors.New("cid: node id out of range")

	// ErrInvalidLength is returned for CID lengths the generator cannot produce.
	ErrInvalidLength = errors.New("cid: invalid length")

	// ErrEmpty is returned when a node id is requested from an empty CID.
	ErrEmpty = errors.New("cid: empty connection id")
)

// NodeID identifies a cluster node.
type NodeID uint32

// CID is a connection identifier.
type CID []byte

// String returns the hex form of the CID.
func (c CID) String() string {
	return hex.EncodeToString(c)
}

// NodeGenerator creates CIDs that encode the owning node.
type NodeGenerator interface {
	// NodeID returns the id of the local node.
	NodeID() NodeID

	// Len returns the length of generated CIDs.
	Len() int

	// NodeIDOf returns the id of the node that owns c.
	NodeIDOf(c CID) (NodeID, error)

	// Generate creates a new CID owned by the local node.
	Generate() (CID, error)
}

// MultiNodeGenerator places the node id in the first CID byte.
type MultiNodeGenerator struct {
	nodeID NodeID
	length int
}

// NewMultiNodeGenerator creates a generator for the given node.
//
// length includes the node id byte and must be at least 1.
func NewMultiNodeGenerator(nodeID NodeID, length int) (*MultiNodeGenerator, error) {
	if nodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: %d > %d", ErrNodeIDOutOfRange, nodeID, MaxNodeID)
	}
	if length < 1 || length > 255 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return &MultiNodeGenerator{nodeID: nodeID, length: length}, nil
}

// NodeID returns the id of the local node.
func (g *MultiNodeGenerator) NodeID() NodeID {
	return g.nodeID
}

// Len returns the length of generated CIDs.
func (g *MultiNodeGenerator) Len() int {
	return g.length
}

// NodeIDOf returns the node id stored in the first byte of c.
func (g *MultiNodeGenerator) NodeIDOf(c CID) (NodeID, error) {
	if len(c) == 0 {
		return 0, ErrEmpty
	}
	return NodeID(c[0]), nil
}

// Generate creates a new CID owned by the local node.
func (g *MultiNodeGenerator) Generate() (CID, error) {
	c := make(CID, g.length)
	if _, err := rand.Read(c[1:]); err != nil {
		return nil, fmt.Errorf("cid: read random bytes: %w", err)
	}
	c[0] = byte(g.nodeID)
	return c, nil
}
