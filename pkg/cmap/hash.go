// Package cmap provides a sharded concurrent map.
package cmap

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Uint32Hasher hashes uint32 based keys with MurmurHash3.
func Uint32Hasher[K ~uint32](key K) uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(key))
	return murmur3.Sum64(b[:])
}

// BytesHasher hashes b with MurmurHash3.
func BytesHasher(b []byte) uint64 {
	return murmur3.Sum64(b)
}
