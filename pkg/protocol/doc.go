// Package protocol implements the byte-level codec of the viewer protocol.
//
// Viewers and peer simulators exchange datagrams over UDP. Every datagram
// carries one message, framed by a short header and optionally followed by
// a list of acknowledged sequence numbers.
//
// # Wire Format
//
//	┌─────────┬─────────────────┬──────────────┬──────────────┬────────────┬──────────────┬───────────┐
//	│ Flags   │ Sequence        │ Extra length │ Extra header │ Message ID │ Body         │ Acks      │
//	│ (1)     │ (4, big-endian) │ (1)          │ (0..255)     │ (1, 2 or 4)│ (variable)   │ optional  │
//	└─────────┴─────────────────┴──────────────┴──────────────┴────────────┴──────────────┴───────────┘
//
// Header fields (sequence, message id, appended acks) are in network byte
// order. Message bodies use little-endian for every multi-byte field.
//
// # Flags
//
//   - FlagZeroCoded (0x80): body is zero-coded (runs of 0x00 collapsed)
//   - FlagReliable (0x40): receiver must acknowledge the sequence number
//   - FlagResent (0x20): this is a retransmission
//   - FlagAppendedAcks (0x10): acknowledgments are appended to the datagram
//
// # Message IDs
//
// Message ids are variable width, chosen by frequency:
//
//   - High:   1 byte,  0x01..0xFE
//   - Medium: 2 bytes, 0xFF 0x01..0xFE
//   - Low:    4 bytes, 0xFF 0xFF 0x0001..0xFFFA
//   - Fixed:  4 bytes, 0xFF 0xFF 0xFFFB..0xFFFF
//
// # Appended Acks
//
// When FlagAppendedAcks is set, the datagram ends with N big-endian uint32
// sequence numbers followed by a single count byte N.
//
// # Body Encoding
//
// Bodies are fixed-shape records built from the primitives in this package:
// fixed-width integers, floats, fixed byte blobs, Variable1/Variable2 blobs
// (1- and 2-byte length prefix), UUIDs, vectors, quaternions and colors.
// Repeated groups are prefixed with a 1-byte count, so a group never holds
// more than 255 blocks.
//
// # File Structure
//
//   - encoder.go: bounded body encoder
//   - decoder.go: body decoder
//   - types.go: vector, quaternion and color value types
//   - packet.go: packet header, message ids, appended acks
//   - zerocode.go: zero-coding
//   - errors.go: error taxonomy
package protocol
