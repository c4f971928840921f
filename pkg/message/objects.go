package message

import (
	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// ImprovedTerseObjectUpdate carries compact position updates for objects.
// Data is an opaque packed block owned by the scene.
type ImprovedTerseObjectUpdate struct {
	RegionHandle uint64
	TimeDilation uint16
	Objects      []TerseObject
}

// TerseObject is one block of ImprovedTerseObjectUpdate.
type TerseObject struct {
	Data         []byte
	TextureEntry []byte
}

func (m *ImprovedTerseObjectUpdate) ID() protocol.MessageID { return IDImprovedTerseObjectUpdate }

func (m *ImprovedTerseObjectUpdate) EncodeTo(e *protocol.Encoder) {
	e.WriteUint64(m.RegionHandle)
	e.WriteUint16(m.TimeDilation)
	writeGroup(e, m.Objects, func(e *protocol.Encoder, o TerseObject) {
		e.WriteVariable1(o.Data)
		e.WriteVariable2(o.TextureEntry)
	})
}

func (m *ImprovedTerseObjectUpdate) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.RegionHandle = r.u64()
	m.TimeDilation = r.u16()
	m.Objects = readGroup(r, 3, func(r *reader) TerseObject {
		return TerseObject{Data: r.var1(), TextureEntry: r.var2()}
	})
	return r.err
}

// UUIDNameRequest asks for the display names of agents.
type UUIDNameRequest struct {
	IDs []uuid.UUID
}

func (m *UUIDNameRequest) ID() protocol.MessageID { return IDUUIDNameRequest }

func (m *UUIDNameRequest) EncodeTo(e *protocol.Encoder) {
	writeGroup(e, m.IDs, (*protocol.Encoder).WriteUUID)
}

func (m *UUIDNameRequest) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.IDs = readGroup(r, 16, (*reader).id)
	return r.err
}

// UUIDNameReply answers a UUIDNameRequest.
type UUIDNameReply struct {
	Names []AgentName
}

// AgentName is one block of UUIDNameReply.
type AgentName struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
}

func (m *UUIDNameReply) ID() protocol.MessageID { return IDUUIDNameReply }

func (m *UUIDNameReply) EncodeTo(e *protocol.Encoder) {
	writeGroup(e, m.Names, func(e *protocol.Encoder, n AgentName) {
		e.WriteUUID(n.ID)
		e.WriteString1(n.FirstName)
		e.WriteString1(n.LastName)
	})
}

func (m *UUIDNameReply) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Names = readGroup(r, 18, func(r *reader) AgentName {
		return AgentName{ID: r.id(), FirstName: r.str1(), LastName: r.str1()}
	})
	return r.err
}
