package bitpack

import (
	"errors"
	"math"
)

// MaxWidth is the widest value that can be packed in one call.
const MaxWidth = 32

var (
	// ErrInvalidArgument is returned for widths above MaxWidth.
	ErrInvalidArgument = errors.New("bitpack: invalid bit width")

	// ErrExhausted is returned when an unpack runs past the end of the stream.
	ErrExhausted = errors.New("bitpack: stream exhausted")
)

// Packer appends bit fields to a growing byte stream.
type Packer struct {
	buf    []byte
	bitPos uint // bits used in the last byte of buf, 0 means byte aligned
}

// NewPacker creates a packer with room for sizeHint bytes.
func NewPacker(sizeHint int) *Packer {
	return &Packer{buf: make([]byte, 0, sizeHint)}
}

// PackBits appends the low width bits of value. A width of 0 is a no-op.
func (p *Packer) PackBits(value uint32, width int) error {
	if width < 0 || width > MaxWidth {
		return ErrInvalidArgument
	}
	for width > 0 {
		count := min(width, 8)
		chunk := byte(value)
		for i := count - 1; i >= 0; i-- {
			p.putBit(chunk>>uint(i)&1 != 0)
		}
		value >>= 8
		width -= count
	}
	return nil
}

// PackFloat appends the 32-bit pattern of f.
func (p *Packer) PackFloat(f float32) {
	_ = p.PackBits(math.Float32bits(f), 32)
}

// putBit appends a single bit.
func (p *Packer) putBit(set bool) {
	if p.bitPos == 0 {
		p.buf = append(p.buf, 0)
	}
	if set {
		p.buf[len(p.buf)-1] |= 0x80 >> p.bitPos
	}
	p.bitPos = (p.bitPos + 1) % 8
}

// BitLen returns the number of bits packed so far.
func (p *Packer) BitLen() int {
	if p.bitPos == 0 {
		return len(p.buf) * 8
	}
	return (len(p.buf)-1)*8 + int(p.bitPos)
}

// Bytes returns the stream, zero-padded to a whole byte.
func (p *Packer) Bytes() []byte {
	return p.buf
}

// Unpacker reads bit fields written by a Packer.
type Unpacker struct {
	buf    []byte
	bitPos int // absolute bit offset
}

// NewUnpacker creates an unpacker over data.
func NewUnpacker(data []byte) *Unpacker {
	return &Unpacker{buf: data}
}

// Remaining returns the number of unread bits, padding included.
func (u *Unpacker) Remaining() int {
	return len(u.buf)*8 - u.bitPos
}

// UnpackBits reads a width-bit value. A width of 0 returns 0.
func (u *Unpacker) UnpackBits(width int) (uint32, error) {
	if width < 0 || width > MaxWidth {
		return 0, ErrInvalidArgument
	}
	if width > u.Remaining() {
		return 0, ErrExhausted
	}
	var value uint32
	for shift := 0; width > 0; shift += 8 {
		count := min(width, 8)
		var chunk uint32
		for i := 0; i < count; i++ {
			chunk <<= 1
			if u.buf[u.bitPos/8]&(0x80>>uint(u.bitPos%8)) != 0 {
				chunk |= 1
			}
			u.bitPos++
		}
		value |= chunk << uint(shift)
		width -= count
	}
	return value, nil
}

// UnpackFloat reads a 32-bit IEEE 754 float.
func (u *Unpacker) UnpackFloat() (float32, error) {
	bits, err := u.UnpackBits(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}
