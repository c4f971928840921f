package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors. Decode failures all wrap ErrMalformedPacket so callers
// can drop a datagram with a single errors.Is check.
var (
	// ErrMalformedPacket is returned when header or length fields are
	// inconsistent with the buffer.
	ErrMalformedPacket = errors.New("protocol: malformed packet")

	// ErrShortBuffer is returned when a read runs past the end of the body.
	ErrShortBuffer = fmt.Errorf("%w: read past end of body", ErrMalformedPacket)

	// ErrDecodeFieldOverflow is returned when a declared repeat count cannot
	// fit in the remaining body.
	ErrDecodeFieldOverflow = fmt.Errorf("%w: declared count exceeds body", ErrMalformedPacket)

	// ErrZeroCodeOverflow is returned when a zero-coded body expands past
	// the allowed size.
	ErrZeroCodeOverflow = fmt.Errorf("%w: zero-coded body too large", ErrMalformedPacket)

	// ErrInvalidMessageID is returned for message ids outside every frequency range.
	ErrInvalidMessageID = errors.New("protocol: invalid message id")

	// ErrBufferOverflow is returned when a write exceeds the encoder capacity.
	ErrBufferOverflow = errors.New("protocol: write past buffer capacity")

	// ErrFieldTooLong is returned when a variable field exceeds its length prefix.
	ErrFieldTooLong = errors.New("protocol: field exceeds length prefix")

	// ErrMessageTooLarge is returned when a repeated group holds more blocks
	// than its count byte can express, or a packet exceeds MaxPacketSize.
	ErrMessageTooLarge = errors.New("protocol: message too large")
)
