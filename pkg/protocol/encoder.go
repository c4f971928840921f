package protocol

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Encoder is a little-endian body encoder over a fixed-capacity buffer.
//
// Write methods do not return errors. The first failure (capacity exceeded,
// oversized variable field, oversized group) is recorded and every later
// write becomes a no-op; check Err once the body is complete.
type Encoder struct {
	buf []byte
	max int
	err error
}

// NewEncoder creates an encoder that refuses to grow past capacity bytes.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, capacity),
		max: capacity,
	}
}

// Reset empties the encoder and clears any recorded error, reusing the buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.err = nil
}

// Bytes returns the encoded bytes. The slice is valid until the next Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Cap returns the encoder capacity.
func (e *Encoder) Cap() int {
	return e.max
}

// Err returns the first error recorded by a write, if any.
func (e *Encoder) Err() error {
	return e.err
}

// fail records err unless an earlier error is already recorded.
func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// grow extends the buffer by n bytes and returns the new tail,
// or nil if the write is refused.
func (e *Encoder) grow(n int) []byte {
	if e.err != nil {
		return nil
	}
	if len(e.buf)+n > e.max {
		e.fail(ErrBufferOverflow)
		return nil
	}
	start := len(e.buf)
	e.buf = e.buf[:start+n]
	return e.buf[start:]
}

// WriteUint8 appends a single byte.
func (e *Encoder) WriteUint8(v uint8) {
	if b := e.grow(1); b != nil {
		b[0] = v
	}
}

// WriteUint16 appends a uint16.
func (e *Encoder) WriteUint16(v uint16) {
	if b := e.grow(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// WriteUint32 appends a uint32.
func (e *Encoder) WriteUint32(v uint32) {
	if b := e.grow(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// WriteUint64 appends a uint64.
func (e *Encoder) WriteUint64(v uint64) {
	if b := e.grow(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

// WriteInt8 appends an int8.
func (e *Encoder) WriteInt8(v int8) {
	e.WriteUint8(uint8(v))
}

// WriteInt16 appends an int16.
func (e *Encoder) WriteInt16(v int16) {
	e.WriteUint16(uint16(v))
}

// WriteInt32 appends an int32.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteInt64 appends an int64.
func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

// WriteFloat32 appends an IEEE 754 float32.
func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends an IEEE 754 float64.
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteBool appends a boolean as 0x00 or 0x01.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteUint8(1)
	} else {
		e.WriteUint8(0)
	}
}

// WriteFixed appends raw bytes with no length prefix.
func (e *Encoder) WriteFixed(p []byte) {
	if b := e.grow(len(p)); b != nil {
		copy(b, p)
	}
}

// WriteVariable1 appends a blob with a 1-byte length prefix.
// Blobs longer than 255 bytes fail with ErrFieldTooLong.
func (e *Encoder) WriteVariable1(p []byte) {
	if len(p) > math.MaxUint8 {
		e.fail(ErrFieldTooLong)
		return
	}
	e.WriteUint8(uint8(len(p)))
	e.WriteFixed(p)
}

// WriteVariable2 appends a blob with a 2-byte length prefix.
// Blobs longer than 65535 bytes fail with ErrFieldTooLong.
func (e *Encoder) WriteVariable2(p []byte) {
	if len(p) > math.MaxUint16 {
		e.fail(ErrFieldTooLong)
		return
	}
	e.WriteUint16(uint16(len(p)))
	e.WriteFixed(p)
}

// WriteString1 appends a string with a 1-byte length prefix.
func (e *Encoder) WriteString1(s string) {
	e.WriteVariable1([]byte(s))
}

// WriteString2 appends a string with a 2-byte length prefix.
func (e *Encoder) WriteString2(s string) {
	e.WriteVariable2([]byte(s))
}

// WriteCount appends the 1-byte block count of a repeated group.
// Counts above 255 fail with ErrMessageTooLarge rather than truncating.
func (e *Encoder) WriteCount(n int) {
	if n < 0 || n > MaxGroupCount {
		e.fail(ErrMessageTooLarge)
		return
	}
	e.WriteUint8(uint8(n))
}

// WriteUUID appends a 128-bit identifier.
func (e *Encoder) WriteUUID(id uuid.UUID) {
	e.WriteFixed(id[:])
}

// WriteVector3 appends three float32 components.
func (e *Encoder) WriteVector3(v Vector3) {
	e.WriteFloat32(v.X)
	e.WriteFloat32(v.Y)
	e.WriteFloat32(v.Z)
}

// WriteVector3d appends three float64 components.
func (e *Encoder) WriteVector3d(v Vector3d) {
	e.WriteFloat64(v.X)
	e.WriteFloat64(v.Y)
	e.WriteFloat64(v.Z)
}

// WriteQuaternion appends four float32 components.
func (e *Encoder) WriteQuaternion(q Quaternion) {
	e.WriteFloat32(q.X)
	e.WriteFloat32(q.Y)
	e.WriteFloat32(q.Z)
	e.WriteFloat32(q.W)
}

// WriteColor4 appends four 8-bit channels.
func (e *Encoder) WriteColor4(c Color4) {
	if b := e.grow(4); b != nil {
		b[0], b[1], b[2], b[3] = c.R, c.G, c.B, c.A
	}
}
