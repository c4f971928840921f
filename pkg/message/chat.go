package message

import (
	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// Chat types shared by ChatFromViewer and ChatFromSimulator.
const (
	ChatWhisper uint8 = 0
	ChatNormal  uint8 = 1
	ChatShout   uint8 = 2
)

// ChatFromViewer is local chat typed by an agent.
type ChatFromViewer struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Message   string
	Type      uint8
	Channel   int32
}

func (m *ChatFromViewer) ID() protocol.MessageID { return IDChatFromViewer }

func (m *ChatFromViewer) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteString2(m.Message)
	e.WriteUint8(m.Type)
	e.WriteInt32(m.Channel)
}

func (m *ChatFromViewer) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.Message = r.str2()
	m.Type = r.u8()
	m.Channel = r.i32()
	return r.err
}

// ChatFromSimulator relays chat to viewers in range.
type ChatFromSimulator struct {
	FromName   string
	SourceID   uuid.UUID
	OwnerID    uuid.UUID
	SourceType uint8
	ChatType   uint8
	Audible    uint8
	Position   protocol.Vector3
	Message    string
}

func (m *ChatFromSimulator) ID() protocol.MessageID { return IDChatFromSimulator }

func (m *ChatFromSimulator) EncodeTo(e *protocol.Encoder) {
	e.WriteString1(m.FromName)
	e.WriteUUID(m.SourceID)
	e.WriteUUID(m.OwnerID)
	e.WriteUint8(m.SourceType)
	e.WriteUint8(m.ChatType)
	e.WriteUint8(m.Audible)
	e.WriteVector3(m.Position)
	e.WriteString2(m.Message)
}

func (m *ChatFromSimulator) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.FromName = r.str1()
	m.SourceID = r.id()
	m.OwnerID = r.id()
	m.SourceType = r.u8()
	m.ChatType = r.u8()
	m.Audible = r.u8()
	m.Position = r.vec3()
	m.Message = r.str2()
	return r.err
}

// ImprovedInstantMessage carries an instant message between agents.
type ImprovedInstantMessage struct {
	AgentID        uuid.UUID
	SessionID      uuid.UUID
	FromGroup      bool
	ToAgentID      uuid.UUID
	ParentEstateID uint32
	RegionID       uuid.UUID
	Position       protocol.Vector3
	Offline        uint8
	Dialog         uint8
	SessionKey     uuid.UUID
	Timestamp      uint32
	FromAgentName  string
	Message        string
	BinaryBucket   []byte
}

func (m *ImprovedInstantMessage) ID() protocol.MessageID { return IDImprovedInstantMessage }

func (m *ImprovedInstantMessage) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteBool(m.FromGroup)
	e.WriteUUID(m.ToAgentID)
	e.WriteUint32(m.ParentEstateID)
	e.WriteUUID(m.RegionID)
	e.WriteVector3(m.Position)
	e.WriteUint8(m.Offline)
	e.WriteUint8(m.Dialog)
	e.WriteUUID(m.SessionKey)
	e.WriteUint32(m.Timestamp)
	e.WriteString1(m.FromAgentName)
	e.WriteString2(m.Message)
	e.WriteVariable2(m.BinaryBucket)
}

func (m *ImprovedInstantMessage) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.FromGroup = r.boolean()
	m.ToAgentID = r.id()
	m.ParentEstateID = r.u32()
	m.RegionID = r.id()
	m.Position = r.vec3()
	m.Offline = r.u8()
	m.Dialog = r.u8()
	m.SessionKey = r.id()
	m.Timestamp = r.u32()
	m.FromAgentName = r.str1()
	m.Message = r.str2()
	m.BinaryBucket = r.var2()
	return r.err
}

// ViewerEffect carries transient visual effects such as look-at beams.
type ViewerEffect struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Effects   []Effect
}

// Effect is one block of ViewerEffect.
type Effect struct {
	ID       uuid.UUID
	AgentID  uuid.UUID
	Type     uint8
	Duration float32
	Color    protocol.Color4
	TypeData []byte
}

// effectMinSize is the encoded size of an Effect with empty TypeData.
const effectMinSize = 16 + 16 + 1 + 4 + 4 + 1

func (m *ViewerEffect) ID() protocol.MessageID { return IDViewerEffect }

func (m *ViewerEffect) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	writeGroup(e, m.Effects, func(e *protocol.Encoder, fx Effect) {
		e.WriteUUID(fx.ID)
		e.WriteUUID(fx.AgentID)
		e.WriteUint8(fx.Type)
		e.WriteFloat32(fx.Duration)
		e.WriteColor4(fx.Color)
		e.WriteVariable1(fx.TypeData)
	})
}

func (m *ViewerEffect) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.Effects = readGroup(r, effectMinSize, func(r *reader) Effect {
		return Effect{
			ID:       r.id(),
			AgentID:  r.id(),
			Type:     r.u8(),
			Duration: r.f32(),
			Color:    r.color(),
			TypeData: r.var1(),
		}
	})
	return r.err
}
