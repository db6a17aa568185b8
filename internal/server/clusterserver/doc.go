// Package clusterserver shards one logical DTLS endpoint across cluster nodes.
//
// Every connection ID (CID) carries the id of the node owning the connection.
// The Connector reads the CID of each inbound record and either hands the
// datagram to the local engine or tunnels it, with the original peer address,
// to the owning node over the cluster socket. Replies take the same router
// node back to the peer.
//
// The Discoverer keeps the NodeTable current with a pairwise ping/pong
// protocol on the cluster socket. Candidate addresses come from a
// DiscoverySource: a static seed list, a memberlist gossip cluster or the
// Kubernetes API.
//
// Wire formats on the cluster socket:
//
//   - forwarding envelope: 20 byte header (tag, address length, port, address)
//     followed by the datagram
//   - ping/pong: tag followed by the sender node id, 5 bytes
package clusterserver
