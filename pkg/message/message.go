package message

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// Message is one typed protocol message.
type Message interface {
	// ID returns the message type id.
	ID() protocol.MessageID

	// EncodeTo writes the body. Failures are recorded on the encoder.
	EncodeTo(e *protocol.Encoder)

	// DecodeFrom reads the body.
	DecodeFrom(d *protocol.Decoder) error
}

// Encode serializes the body of m.
func Encode(m Message) ([]byte, error) {
	e := protocol.NewEncoder(protocol.MaxBodySize)
	m.EncodeTo(e)
	if err := e.Err(); err != nil {
		return nil, fmt.Errorf("message: encode %v: %w", m.ID(), err)
	}
	return e.Bytes(), nil
}

// Decode fills m from body. Bytes after the last known field are ignored
// so newer peers can append blocks.
func Decode(m Message, body []byte) error {
	return m.DecodeFrom(protocol.NewDecoder(body))
}

// reader reads fields in sequence and keeps the first error, so variant
// decoders check once at the end.
type reader struct {
	d   *protocol.Decoder
	err error
}

func newReader(d *protocol.Decoder) *reader {
	return &reader{d: d}
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint8()
	r.err = err
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint16()
	r.err = err
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint32()
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint64()
	r.err = err
	return v
}

func (r *reader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadInt32()
	r.err = err
	return v
}

func (r *reader) f32() float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadFloat32()
	r.err = err
	return v
}

func (r *reader) boolean() bool {
	if r.err != nil {
		return false
	}
	v, err := r.d.ReadBool()
	r.err = err
	return v
}

func (r *reader) id() uuid.UUID {
	if r.err != nil {
		return uuid.Nil
	}
	v, err := r.d.ReadUUID()
	r.err = err
	return v
}

func (r *reader) vec3() protocol.Vector3 {
	if r.err != nil {
		return protocol.Vector3{}
	}
	v, err := r.d.ReadVector3()
	r.err = err
	return v
}

func (r *reader) vec3d() protocol.Vector3d {
	if r.err != nil {
		return protocol.Vector3d{}
	}
	v, err := r.d.ReadVector3d()
	r.err = err
	return v
}

func (r *reader) quat() protocol.Quaternion {
	if r.err != nil {
		return protocol.Quaternion{}
	}
	v, err := r.d.ReadQuaternion()
	r.err = err
	return v
}

func (r *reader) color() protocol.Color4 {
	if r.err != nil {
		return protocol.Color4{}
	}
	v, err := r.d.ReadColor4()
	r.err = err
	return v
}

func (r *reader) str1() string {
	if r.err != nil {
		return ""
	}
	v, err := r.d.ReadString1()
	r.err = err
	return v
}

func (r *reader) str2() string {
	if r.err != nil {
		return ""
	}
	v, err := r.d.ReadString2()
	r.err = err
	return v
}

func (r *reader) var1() []byte {
	if r.err != nil {
		return nil
	}
	v, err := r.d.ReadVariable1()
	r.err = err
	if len(v) == 0 {
		return nil
	}
	return v
}

func (r *reader) var2() []byte {
	if r.err != nil {
		return nil
	}
	v, err := r.d.ReadVariable2()
	r.err = err
	if len(v) == 0 {
		return nil
	}
	return v
}

// count reads a group count whose blocks are at least minBlock bytes.
func (r *reader) count(minBlock int) int {
	if r.err != nil {
		return 0
	}
	n, err := r.d.ReadCount(minBlock)
	r.err = err
	return n
}

// readGroup reads a counted group. An empty group decodes as nil.
func readGroup[T any](r *reader, minBlock int, read func(*reader) T) []T {
	n := r.count(minBlock)
	if n == 0 || r.err != nil {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = read(r)
	}
	if r.err != nil {
		return nil
	}
	return out
}

// writeGroup writes a counted group; more than 255 blocks fails the encoder.
func writeGroup[T any](e *protocol.Encoder, items []T, write func(*protocol.Encoder, T)) {
	e.WriteCount(len(items))
	if e.Err() != nil {
		return
	}
	for _, item := range items {
		write(e, item)
	}
}
