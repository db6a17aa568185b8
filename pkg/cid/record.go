// Package cid provides connection identifier utilities for clustered DTLS endpoints.
package cid

import (
	"errors"
	"fmt"
)

const (
	// ContentTypeTLS12CID is the DTLS 1.2 content type of records carrying a CID.
	ContentTypeTLS12CID byte = 25

	// RecordHeaderLen is the length of a DTLS record header without CID.
	RecordHeaderLen = 13

	// cidOffset is the offset of the CID: type(1) version(2) epoch(2) sequence(6).
	cidOffset = 11
)

// ErrShortRecord is returned when a record is too short to contain its CID.
var ErrShortRecord = errors.New("cid: record too short")

// HasCID reports whether record starts with the tls12_cid content type and is
// long enough to carry a CID at all.
func HasCID(record []byte) bool {
	return len(record) > RecordHeaderLen && record[0] == ContentTypeTLS12CID
}

// ReadRecordCID reads the CID of length n from the header of record.
//
// The returned CID aliases record.
func ReadRecordCID(record []byte, n int) (CID, error) {
	if len(record) == 0 || record[0] != ContentTypeTLS12CID {
		return nil, fmt.Errorf("cid: content type is not tls12_cid")
	}
	// CID followed by the 2 byte length field
	if n <= 0 || len(record) < cidOffset+n+2 {
		return nil, fmt.Errorf("%w: %d bytes, cid length %d", ErrShortRecord, len(record), n)
	}
	return CID(record[cidOffset : cidOffset+n]), nil
}

// NodeIDOfRecord returns the node that owns the connection record belongs to.
func NodeIDOfRecord(record []byte, g NodeGenerator) (NodeID, error) {
	c, err := ReadRecordCID(record, g.Len())
	if err != nil {
		return 0, err
	}
	return g.NodeIDOf(c)
}

// AppendRecord appends a minimal tls12_cid record carrying c and payload to b.
//
// Epoch and sequence number are zero. It is intended for tools and tests that
// need routable records without a DTLS session.
func AppendRecord(b []byte, c CID, payload []byte) []byte {
	b = append(b, ContentTypeTLS12CID, 0xFE, 0xFD)
	b = append(b, make([]byte, 8)...)
	b = append(b, c...)
	b = append(b, byte(len(payload)>>8), byte(len(payload)))
	return append(b, payload...)
}
