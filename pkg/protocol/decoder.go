package protocol

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Decoder reads a little-endian message body.
// Every read past the end of the body fails with ErrShortBuffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// next returns the next n bytes and advances past them.
func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, ErrShortBuffer
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Skip advances the position by n bytes.
func (d *Decoder) Skip(n int) error {
	_, err := d.next(n)
	return err
}

// ReadUint8 reads a single byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt8 reads an int8.
func (d *Decoder) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

// ReadInt16 reads an int16.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadInt32 reads an int32.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads an int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 float32.
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads an IEEE 754 float64.
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBool reads a boolean. Any non-zero byte is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadUint8()
	return b != 0, err
}

// ReadFixed reads exactly n bytes and returns a copy.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	b, err := d.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadVariable1 reads a blob with a 1-byte length prefix.
func (d *Decoder) ReadVariable1() ([]byte, error) {
	n, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	return d.ReadFixed(int(n))
}

// ReadVariable2 reads a blob with a 2-byte length prefix.
func (d *Decoder) ReadVariable2() ([]byte, error) {
	n, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	return d.ReadFixed(int(n))
}

// ReadString1 reads a string with a 1-byte length prefix.
func (d *Decoder) ReadString1() (string, error) {
	n, err := d.ReadUint8()
	if err != nil {
		return "", err
	}
	b, err := d.next(int(n))
	return string(b), err
}

// ReadString2 reads a string with a 2-byte length prefix.
func (d *Decoder) ReadString2() (string, error) {
	n, err := d.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := d.next(int(n))
	return string(b), err
}

// ReadCount reads the 1-byte block count of a repeated group.
// minBlockSize is the smallest encoded size of one block; a count whose
// blocks cannot fit in the remaining body fails with ErrDecodeFieldOverflow
// before the caller allocates anything.
func (d *Decoder) ReadCount(minBlockSize int) (int, error) {
	n, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}
	if minBlockSize < 1 {
		minBlockSize = 1
	}
	if int(n)*minBlockSize > d.Remaining() {
		return 0, ErrDecodeFieldOverflow
	}
	return int(n), nil
}

// ReadUUID reads a 128-bit identifier.
func (d *Decoder) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	b, err := d.next(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// ReadVector3 reads three float32 components.
func (d *Decoder) ReadVector3() (Vector3, error) {
	b, err := d.next(12)
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// ReadVector3d reads three float64 components.
func (d *Decoder) ReadVector3d() (Vector3d, error) {
	b, err := d.next(24)
	if err != nil {
		return Vector3d{}, err
	}
	return Vector3d{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(b[16:])),
	}, nil
}

// ReadQuaternion reads four float32 components.
func (d *Decoder) ReadQuaternion() (Quaternion, error) {
	b, err := d.next(16)
	if err != nil {
		return Quaternion{}, err
	}
	return Quaternion{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		W: math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
	}, nil
}

// ReadColor4 reads four 8-bit channels.
func (d *Decoder) ReadColor4() (Color4, error) {
	b, err := d.next(4)
	if err != nil {
		return Color4{}, err
	}
	return Color4{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
}
