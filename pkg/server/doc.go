// Package server is the UDP side of the simulator: it receives datagrams,
// maps them to circuits, enforces message trust and routes outbound
// messages either over the circuit or through the HTTP event queue.
//
// # Receive path
//
// One goroutine reads the socket. Each datagram is decoded, matched to a
// circuit by its source endpoint and checked against the message's trust
// rule before the circuit's reliability state sees it:
//
//  1. Malformed datagrams are dropped without an ack.
//  2. Datagrams from unknown endpoints are only accepted when they carry
//     UseCircuitCode (admitted through an Authorizer) or come from a
//     trusted peer.
//  3. Messages that the circuit is not allowed to send are dropped
//     silently; nothing is sent back and the circuit stays up.
//  4. Reliable duplicates are acked again but not delivered.
//
// Accepted messages are queued on the circuit's worker, so handlers for one
// circuit run one at a time in receive order while circuits proceed in
// parallel.
//
// # Housekeeping
//
// A ticker flushes pending acks as PacketAck messages, resends overdue
// reliable packets and tears down circuits that ran out of resends. A
// second, slower ticker closes circuits that have been idle too long.
//
// # Outbound routing
//
// Send encodes a message for one circuit. Messages that have an event
// queue encoding and are marked deprecated over UDP go to the circuit's
// event queue instead when one is attached.
package server
