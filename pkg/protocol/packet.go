package protocol

import (
	"encoding/binary"
	"fmt"
)

// Flags are the per-packet header bits.
type Flags uint8

const (
	FlagAppendedAcks Flags = 0x10 // Acks appended after the body
	FlagResent       Flags = 0x20 // Retransmission of an earlier send
	FlagReliable     Flags = 0x40 // Receiver must acknowledge
	FlagZeroCoded    Flags = 0x80 // Body is zero-coded
)

// Has returns true if the flags contain flag.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Frequency is the id range a message belongs to; it fixes the id width.
type Frequency uint8

const (
	FrequencyHigh   Frequency = iota // 1-byte ids
	FrequencyMedium                  // 2-byte ids
	FrequencyLow                     // 4-byte ids
	FrequencyFixed                   // 4-byte reserved ids
)

// String returns the frequency name.
func (f Frequency) String() string {
	switch f {
	case FrequencyHigh:
		return "High"
	case FrequencyMedium:
		return "Medium"
	case FrequencyLow:
		return "Low"
	case FrequencyFixed:
		return "Fixed"
	default:
		return "Unknown"
	}
}

// MessageID identifies a message type. Its numeric value is the big-endian
// reading of its wire bytes, so High ids are 0x01..0xFE, Medium ids
// 0xFF01..0xFFFE, Low ids 0xFFFF0001..0xFFFFFFFA and Fixed ids
// 0xFFFFFFFB..0xFFFFFFFF.
type MessageID uint32

// HighID returns the 1-byte id n.
func HighID(n uint8) MessageID { return MessageID(n) }

// MediumID returns the 2-byte id 0xFF n.
func MediumID(n uint8) MessageID { return MessageID(0xFF00 | uint32(n)) }

// LowID returns the 4-byte id 0xFF 0xFF n.
func LowID(n uint16) MessageID { return MessageID(0xFFFF0000 | uint32(n)) }

// FixedID returns the reserved 4-byte id 0xFFFFFF n.
func FixedID(n uint8) MessageID { return MessageID(0xFFFFFF00 | uint32(n)) }

// Frequency returns the id's frequency class.
func (id MessageID) Frequency() Frequency {
	switch {
	case id < 0xFF:
		return FrequencyHigh
	case id>>8 == 0xFF:
		return FrequencyMedium
	case id >= 0xFFFFFFFB:
		return FrequencyFixed
	default:
		return FrequencyLow
	}
}

// Valid reports whether id is encodable.
func (id MessageID) Valid() bool {
	switch {
	case id == 0:
		return false
	case id < 0xFF:
		return true
	case id>>8 == 0xFF:
		return id&0xFF != 0 && id&0xFF != 0xFF
	case id>>16 == 0xFFFF:
		return id&0xFFFF != 0
	default:
		return false
	}
}

// Size returns the number of bytes the id takes on the wire.
func (id MessageID) Size() int {
	switch id.Frequency() {
	case FrequencyHigh:
		return 1
	case FrequencyMedium:
		return 2
	default:
		return 4
	}
}

// String returns the frequency and number, e.g. "Low 148".
func (id MessageID) String() string {
	switch id.Frequency() {
	case FrequencyHigh:
		return fmt.Sprintf("High %d", uint32(id))
	case FrequencyMedium:
		return fmt.Sprintf("Medium %d", uint32(id)&0xFF)
	case FrequencyFixed:
		return fmt.Sprintf("Fixed 0x%08X", uint32(id))
	default:
		return fmt.Sprintf("Low %d", uint32(id)&0xFFFF)
	}
}

// Packet is one datagram. Body is always the plain (not zero-coded) body.
type Packet struct {
	Flags    Flags
	Sequence uint32
	Extra    []byte
	ID       MessageID
	Body     []byte
	Acks     []uint32
}

// Reliable returns true if the packet must be acknowledged.
func (p *Packet) Reliable() bool {
	return p.Flags.Has(FlagReliable)
}

// Resent returns true if the packet is a retransmission.
func (p *Packet) Resent() bool {
	return p.Flags.Has(FlagResent)
}

// EncodePacket serializes p. The body is zero-coded when FlagZeroCoded is
// set, and FlagAppendedAcks is derived from len(p.Acks).
func EncodePacket(p *Packet) ([]byte, error) {
	if !p.ID.Valid() {
		return nil, ErrInvalidMessageID
	}
	if len(p.Extra) > MaxExtraHeader {
		return nil, ErrFieldTooLong
	}
	if len(p.Acks) > MaxAppendedAcks {
		return nil, ErrMessageTooLarge
	}

	body := p.Body
	if p.Flags.Has(FlagZeroCoded) {
		body = ZeroEncode(body)
	}
	flags := p.Flags &^ FlagAppendedAcks
	if len(p.Acks) > 0 {
		flags |= FlagAppendedAcks
	}

	size := HeaderSize + len(p.Extra) + p.ID.Size() + len(body)
	if len(p.Acks) > 0 {
		size += 4*len(p.Acks) + 1
	}
	if size > MaxPacketSize {
		return nil, ErrMessageTooLarge
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(flags))
	buf = binary.BigEndian.AppendUint32(buf, p.Sequence)
	buf = append(buf, byte(len(p.Extra)))
	buf = append(buf, p.Extra...)
	buf = appendMessageID(buf, p.ID)
	buf = append(buf, body...)
	if len(p.Acks) > 0 {
		for _, ack := range p.Acks {
			buf = binary.BigEndian.AppendUint32(buf, ack)
		}
		buf = append(buf, byte(len(p.Acks)))
	}
	return buf, nil
}

// DecodePacket parses a datagram. Any inconsistency between the header and
// the buffer size fails with an error wrapping ErrMalformedPacket.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < HeaderSize+1 || len(data) > MaxPacketSize {
		return nil, ErrMalformedPacket
	}

	p := &Packet{
		Flags:    Flags(data[0]),
		Sequence: binary.BigEndian.Uint32(data[1:5]),
	}

	end := len(data)
	if p.Flags.Has(FlagAppendedAcks) {
		count := int(data[end-1])
		end--
		if count == 0 || end-4*count < HeaderSize+1 {
			return nil, fmt.Errorf("%w: %d appended acks do not fit", ErrMalformedPacket, count)
		}
		p.Acks = make([]uint32, count)
		for i := 0; i < count; i++ {
			p.Acks[i] = binary.BigEndian.Uint32(data[end-4*(count-i):])
		}
		end -= 4 * count
	}

	pos := HeaderSize
	extra := int(data[5])
	if pos+extra >= end {
		return nil, fmt.Errorf("%w: extra header overruns packet", ErrMalformedPacket)
	}
	if extra > 0 {
		p.Extra = append([]byte(nil), data[pos:pos+extra]...)
	}
	pos += extra

	id, n, err := readMessageID(data[pos:end])
	if err != nil {
		return nil, err
	}
	p.ID = id
	pos += n

	body := data[pos:end]
	if p.Flags.Has(FlagZeroCoded) {
		body, err = ZeroDecode(body, MaxBodySize)
		if err != nil {
			return nil, err
		}
	} else {
		body = append([]byte(nil), body...)
	}
	p.Body = body
	return p, nil
}

// appendMessageID appends the variable-width wire form of id.
func appendMessageID(buf []byte, id MessageID) []byte {
	switch id.Frequency() {
	case FrequencyHigh:
		return append(buf, byte(id))
	case FrequencyMedium:
		return append(buf, 0xFF, byte(id))
	default:
		return binary.BigEndian.AppendUint32(buf, uint32(id))
	}
}

// readMessageID parses a variable-width id and returns it with its size.
func readMessageID(b []byte) (MessageID, int, error) {
	if len(b) < 1 {
		return 0, 0, fmt.Errorf("%w: missing message id", ErrMalformedPacket)
	}
	if b[0] != 0xFF {
		if b[0] == 0 {
			return 0, 0, fmt.Errorf("%w: zero message id", ErrMalformedPacket)
		}
		return MessageID(b[0]), 1, nil
	}
	if len(b) < 2 {
		return 0, 0, fmt.Errorf("%w: truncated message id", ErrMalformedPacket)
	}
	if b[1] != 0xFF {
		id := MediumID(b[1])
		if !id.Valid() {
			return 0, 0, fmt.Errorf("%w: invalid message id", ErrMalformedPacket)
		}
		return id, 2, nil
	}
	if len(b) < 4 {
		return 0, 0, fmt.Errorf("%w: truncated message id", ErrMalformedPacket)
	}
	id := MessageID(binary.BigEndian.Uint32(b))
	if !id.Valid() {
		return 0, 0, fmt.Errorf("%w: invalid message id", ErrMalformedPacket)
	}
	return id, 4, nil
}

// AppendAcks appends acks to an encoded datagram that carries none yet and
// sets FlagAppendedAcks in its first byte.
func AppendAcks(datagram []byte, acks []uint32) ([]byte, error) {
	if len(acks) == 0 {
		return datagram, nil
	}
	if len(datagram) < HeaderSize+1 || Flags(datagram[0]).Has(FlagAppendedAcks) {
		return nil, ErrMalformedPacket
	}
	if len(acks) > MaxAppendedAcks || len(datagram)+4*len(acks)+1 > MaxPacketSize {
		return nil, ErrMessageTooLarge
	}

	datagram[0] |= byte(FlagAppendedAcks)
	for _, ack := range acks {
		datagram = binary.BigEndian.AppendUint32(datagram, ack)
	}
	return append(datagram, byte(len(acks))), nil
}
