package protocol

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEncoderDecoder(t *testing.T) {
	id := uuid.MustParse("6f2c1a2e-8d51-4a0c-9b3e-0c7f1d2a4b5c")
	vec := Vector3{X: 128.5, Y: -3.25, Z: 4096}
	vecd := Vector3d{X: 256000.125, Y: -1e-9, Z: math.MaxFloat64}
	quat := Quaternion{X: 0.5, Y: -0.5, Z: 0.5, W: -0.5}
	col := Color4{R: 0x11, G: 0x22, B: 0x33, A: 0xFF}

	e := NewEncoder(1024)
	e.WriteUint8(0x42)
	e.WriteUint16(0x1234)
	e.WriteUint32(0x12345678)
	e.WriteUint64(0x123456789ABCDEF0)
	e.WriteInt8(-8)
	e.WriteInt16(-1234)
	e.WriteInt32(-12345678)
	e.WriteInt64(-123456789012345)
	e.WriteFloat32(3.14159)
	e.WriteFloat64(2.718281828459045)
	e.WriteBool(true)
	e.WriteBool(false)
	e.WriteFixed([]byte{0xDE, 0xAD})
	e.WriteVariable1([]byte("hello"))
	e.WriteVariable2([]byte("world"))
	e.WriteUUID(id)
	e.WriteVector3(vec)
	e.WriteVector3d(vecd)
	e.WriteQuaternion(quat)
	e.WriteColor4(col)
	if err := e.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}

	d := NewDecoder(e.Bytes())

	if v, err := d.ReadUint8(); err != nil || v != 0x42 {
		t.Errorf("ReadUint8() = %x, %v; want 0x42, nil", v, err)
	}
	if v, err := d.ReadUint16(); err != nil || v != 0x1234 {
		t.Errorf("ReadUint16() = %x, %v; want 0x1234, nil", v, err)
	}
	if v, err := d.ReadUint32(); err != nil || v != 0x12345678 {
		t.Errorf("ReadUint32() = %x, %v; want 0x12345678, nil", v, err)
	}
	if v, err := d.ReadUint64(); err != nil || v != 0x123456789ABCDEF0 {
		t.Errorf("ReadUint64() = %x, %v; want 0x123456789ABCDEF0, nil", v, err)
	}
	if v, err := d.ReadInt8(); err != nil || v != -8 {
		t.Errorf("ReadInt8() = %d, %v; want -8, nil", v, err)
	}
	if v, err := d.ReadInt16(); err != nil || v != -1234 {
		t.Errorf("ReadInt16() = %d, %v; want -1234, nil", v, err)
	}
	if v, err := d.ReadInt32(); err != nil || v != -12345678 {
		t.Errorf("ReadInt32() = %d, %v; want -12345678, nil", v, err)
	}
	if v, err := d.ReadInt64(); err != nil || v != -123456789012345 {
		t.Errorf("ReadInt64() = %d, %v; want -123456789012345, nil", v, err)
	}
	if v, err := d.ReadFloat32(); err != nil || v != 3.14159 {
		t.Errorf("ReadFloat32() = %v, %v; want 3.14159, nil", v, err)
	}
	if v, err := d.ReadFloat64(); err != nil || v != 2.718281828459045 {
		t.Errorf("ReadFloat64() = %v, %v; want 2.718281828459045, nil", v, err)
	}
	if v, err := d.ReadBool(); err != nil || !v {
		t.Errorf("ReadBool() = %v, %v; want true, nil", v, err)
	}
	if v, err := d.ReadBool(); err != nil || v {
		t.Errorf("ReadBool() = %v, %v; want false, nil", v, err)
	}
	if v, err := d.ReadFixed(2); err != nil || !bytes.Equal(v, []byte{0xDE, 0xAD}) {
		t.Errorf("ReadFixed(2) = %x, %v; want dead, nil", v, err)
	}
	if v, err := d.ReadVariable1(); err != nil || string(v) != "hello" {
		t.Errorf("ReadVariable1() = %q, %v; want \"hello\", nil", v, err)
	}
	if v, err := d.ReadString2(); err != nil || v != "world" {
		t.Errorf("ReadString2() = %q, %v; want \"world\", nil", v, err)
	}
	if v, err := d.ReadUUID(); err != nil || v != id {
		t.Errorf("ReadUUID() = %v, %v; want %v, nil", v, err, id)
	}
	if v, err := d.ReadVector3(); err != nil || v != vec {
		t.Errorf("ReadVector3() = %v, %v; want %v, nil", v, err, vec)
	}
	if v, err := d.ReadVector3d(); err != nil || v != vecd {
		t.Errorf("ReadVector3d() = %v, %v; want %v, nil", v, err, vecd)
	}
	if v, err := d.ReadQuaternion(); err != nil || v != quat {
		t.Errorf("ReadQuaternion() = %v, %v; want %v, nil", v, err, quat)
	}
	if v, err := d.ReadColor4(); err != nil || v != col {
		t.Errorf("ReadColor4() = %v, %v; want %v, nil", v, err, col)
	}
	if !d.EOF() {
		t.Errorf("EOF() = false with %d bytes remaining", d.Remaining())
	}
}

func TestIntegerBoundaries(t *testing.T) {
	u64 := []uint64{0, 1, math.MaxUint8, math.MaxUint16, math.MaxUint32, math.MaxUint64}
	i64 := []int64{math.MinInt64, math.MinInt32, math.MinInt16, math.MinInt8, -1, 0, math.MaxInt8, math.MaxInt16, math.MaxInt32, math.MaxInt64}

	for _, v := range u64 {
		e := NewEncoder(64)
		e.WriteUint8(uint8(v))
		e.WriteUint16(uint16(v))
		e.WriteUint32(uint32(v))
		e.WriteUint64(v)
		d := NewDecoder(e.Bytes())
		a, _ := d.ReadUint8()
		b, _ := d.ReadUint16()
		c, _ := d.ReadUint32()
		x, err := d.ReadUint64()
		if err != nil || a != uint8(v) || b != uint16(v) || c != uint32(v) || x != v {
			t.Errorf("unsigned round trip of %d = %d %d %d %d, %v", v, a, b, c, x, err)
		}
	}

	for _, v := range i64 {
		e := NewEncoder(64)
		e.WriteInt8(int8(v))
		e.WriteInt16(int16(v))
		e.WriteInt32(int32(v))
		e.WriteInt64(v)
		d := NewDecoder(e.Bytes())
		a, _ := d.ReadInt8()
		b, _ := d.ReadInt16()
		c, _ := d.ReadInt32()
		x, err := d.ReadInt64()
		if err != nil || a != int8(v) || b != int16(v) || c != int32(v) || x != v {
			t.Errorf("signed round trip of %d = %d %d %d %d, %v", v, a, b, c, x, err)
		}
	}
}

func TestLittleEndian(t *testing.T) {
	e := NewEncoder(8)
	e.WriteUint32(0x01020304)
	if got := e.Bytes(); !bytes.Equal(got, []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Errorf("WriteUint32(0x01020304) = %x, want 04030201", got)
	}
}

func TestVariableLengthBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		write   func(*Encoder, []byte)
		read    func(*Decoder) ([]byte, error)
		wantErr error
	}{
		{"var1 empty", 0, (*Encoder).WriteVariable1, (*Decoder).ReadVariable1, nil},
		{"var1 max", 255, (*Encoder).WriteVariable1, (*Decoder).ReadVariable1, nil},
		{"var1 over", 256, (*Encoder).WriteVariable1, (*Decoder).ReadVariable1, ErrFieldTooLong},
		{"var2 empty", 0, (*Encoder).WriteVariable2, (*Decoder).ReadVariable2, nil},
		{"var2 max", 65535, (*Encoder).WriteVariable2, (*Decoder).ReadVariable2, nil},
		{"var2 over", 65536, (*Encoder).WriteVariable2, (*Decoder).ReadVariable2, ErrFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(strings.Repeat("x", tt.length))
			e := NewEncoder(70000)
			tt.write(e, data)
			if !errors.Is(e.Err(), tt.wantErr) {
				t.Fatalf("Err() = %v, want %v", e.Err(), tt.wantErr)
			}
			if tt.wantErr != nil {
				if e.Len() != 0 {
					t.Errorf("Len() = %d after refused write, want 0", e.Len())
				}
				return
			}
			got, err := tt.read(NewDecoder(e.Bytes()))
			if err != nil || !bytes.Equal(got, data) {
				t.Errorf("read back %d bytes, %v; want %d bytes", len(got), err, len(data))
			}
		})
	}
}

func TestEncoderCapacity(t *testing.T) {
	e := NewEncoder(6)
	e.WriteUint32(1)
	e.WriteUint16(2)
	if err := e.Err(); err != nil {
		t.Fatalf("Err() = %v after filling buffer exactly", err)
	}

	e.WriteUint8(3)
	if !errors.Is(e.Err(), ErrBufferOverflow) {
		t.Fatalf("Err() = %v, want ErrBufferOverflow", e.Err())
	}
	if e.Len() != 6 {
		t.Errorf("Len() = %d, want 6 (no partial write)", e.Len())
	}

	e.WriteUint8(4)
	if e.Len() != 6 {
		t.Errorf("Len() = %d, writes after an error must be no-ops", e.Len())
	}

	e.Reset()
	if e.Err() != nil || e.Len() != 0 {
		t.Errorf("Reset() left Err() = %v, Len() = %d", e.Err(), e.Len())
	}
}

func TestWriteCount(t *testing.T) {
	e := NewEncoder(4)
	e.WriteCount(255)
	if e.Err() != nil {
		t.Fatalf("WriteCount(255) Err() = %v, want nil", e.Err())
	}
	e.WriteCount(256)
	if !errors.Is(e.Err(), ErrMessageTooLarge) {
		t.Errorf("WriteCount(256) Err() = %v, want ErrMessageTooLarge", e.Err())
	}
}

func TestDecoderShortBuffer(t *testing.T) {
	reads := map[string]func(*Decoder) error{
		"uint16":     func(d *Decoder) error { _, err := d.ReadUint16(); return err },
		"uint32":     func(d *Decoder) error { _, err := d.ReadUint32(); return err },
		"uint64":     func(d *Decoder) error { _, err := d.ReadUint64(); return err },
		"uuid":       func(d *Decoder) error { _, err := d.ReadUUID(); return err },
		"vector3":    func(d *Decoder) error { _, err := d.ReadVector3(); return err },
		"quaternion": func(d *Decoder) error { _, err := d.ReadQuaternion(); return err },
		"color":      func(d *Decoder) error { _, err := d.ReadColor4(); return err },
		"variable1":  func(d *Decoder) error { _, err := d.ReadVariable1(); return err },
		"variable2":  func(d *Decoder) error { _, err := d.ReadVariable2(); return err },
	}

	for name, read := range reads {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder([]byte{0x05})
			err := read(d)
			if !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("read on 1-byte buffer error = %v, want ErrMalformedPacket", err)
			}
		})
	}
}

func TestReadCountOverflow(t *testing.T) {
	// 200 blocks of at least 16 bytes declared, 3 bytes present.
	d := NewDecoder([]byte{200, 1, 2, 3})
	_, err := d.ReadCount(16)
	if !errors.Is(err, ErrDecodeFieldOverflow) {
		t.Fatalf("ReadCount() error = %v, want ErrDecodeFieldOverflow", err)
	}
	if !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("ErrDecodeFieldOverflow must also match ErrMalformedPacket")
	}

	d = NewDecoder([]byte{2, 1, 2, 3, 4})
	n, err := d.ReadCount(2)
	if err != nil || n != 2 {
		t.Errorf("ReadCount(2) = %d, %v; want 2, nil", n, err)
	}
}
