// Package cmap provides a sharded concurrent map.
//
// Keys are spread over a power-of-two number of shards by a caller supplied
// hash function, so readers of one shard never wait for writers of another:
//
//   - Sharding: DefaultShardCount shards
//   - Fine-grained locking: per-shard RWMutex
//   - Hashing: MurmurHash3 helpers for common key types
//
// Usage:
//
//	m := cmap.New[uint32, *Node](cmap.Uint32Hasher[uint32])
//	m.Set(7, node)
//	n, ok := m.Get(7)
//
// All operations are safe for concurrent use. Read operations (Get, Has,
// Range) take the shard read lock, write operations take the shard lock.
package cmap
