// Package transport defines the boundary between the cluster connector and the
// secure-transport engine.
//
// The engine is a black box that processes datagrams locally and emits
// records. The connector decorates both directions:
//
//   - Inbound: the connector calls Engine.ProcessDatagram for every datagram
//     that belongs to the local node, including datagrams forwarded by other
//     nodes.
//   - Outbound: the engine emits records through the RecordSender it is handed,
//     which lets the connector tunnel replies back through a router node.
package transport
