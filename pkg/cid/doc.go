// Package cid provides connection identifier utilities for clustered DTLS endpoints.
//
// A connection identifier (CID) is carried in every DTLS 1.2 record of content
// type tls12_cid. In a cluster the CID also names the node that owns the
// connection:
//
//   - Byte 0: owning node id (0-255)
//   - Bytes 1..n: random bytes from crypto/rand
//
// The package reads CIDs from record headers without touching the encrypted
// record body, so routing decisions can be made before any session lookup.
package cid
