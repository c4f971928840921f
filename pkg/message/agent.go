package message

import (
	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// AgentUpdate is the viewer's per-frame camera and control state.
type AgentUpdate struct {
	AgentID        uuid.UUID
	SessionID      uuid.UUID
	BodyRotation   protocol.Quaternion
	HeadRotation   protocol.Quaternion
	State          uint8
	CameraCenter   protocol.Vector3
	CameraAtAxis   protocol.Vector3
	CameraLeftAxis protocol.Vector3
	CameraUpAxis   protocol.Vector3
	Far            float32
	ControlFlags   uint32
	Flags          uint8
}

func (m *AgentUpdate) ID() protocol.MessageID { return IDAgentUpdate }

func (m *AgentUpdate) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteQuaternion(m.BodyRotation)
	e.WriteQuaternion(m.HeadRotation)
	e.WriteUint8(m.State)
	e.WriteVector3(m.CameraCenter)
	e.WriteVector3(m.CameraAtAxis)
	e.WriteVector3(m.CameraLeftAxis)
	e.WriteVector3(m.CameraUpAxis)
	e.WriteFloat32(m.Far)
	e.WriteUint32(m.ControlFlags)
	e.WriteUint8(m.Flags)
}

func (m *AgentUpdate) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.BodyRotation = r.quat()
	m.HeadRotation = r.quat()
	m.State = r.u8()
	m.CameraCenter = r.vec3()
	m.CameraAtAxis = r.vec3()
	m.CameraLeftAxis = r.vec3()
	m.CameraUpAxis = r.vec3()
	m.Far = r.f32()
	m.ControlFlags = r.u32()
	m.Flags = r.u8()
	return r.err
}

// CompleteAgentMovement is sent by the viewer once it is ready to enter
// the region.
type CompleteAgentMovement struct {
	AgentID     uuid.UUID
	SessionID   uuid.UUID
	CircuitCode uint32
}

func (m *CompleteAgentMovement) ID() protocol.MessageID { return IDCompleteAgentMovement }

func (m *CompleteAgentMovement) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteUint32(m.CircuitCode)
}

func (m *CompleteAgentMovement) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.CircuitCode = r.u32()
	return r.err
}

// AgentMovementComplete places the agent in the region.
type AgentMovementComplete struct {
	AgentID        uuid.UUID
	SessionID      uuid.UUID
	Position       protocol.Vector3
	LookAt         protocol.Vector3
	RegionHandle   uint64
	Timestamp      uint32
	ChannelVersion string
}

func (m *AgentMovementComplete) ID() protocol.MessageID { return IDAgentMovementComplete }

func (m *AgentMovementComplete) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteVector3(m.Position)
	e.WriteVector3(m.LookAt)
	e.WriteUint64(m.RegionHandle)
	e.WriteUint32(m.Timestamp)
	e.WriteString2(m.ChannelVersion)
}

func (m *AgentMovementComplete) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.Position = r.vec3()
	m.LookAt = r.vec3()
	m.RegionHandle = r.u64()
	m.Timestamp = r.u32()
	m.ChannelVersion = r.str2()
	return r.err
}

// LogoutRequest asks the simulator to end the session.
type LogoutRequest struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
}

func (m *LogoutRequest) ID() protocol.MessageID { return IDLogoutRequest }

func (m *LogoutRequest) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
}

func (m *LogoutRequest) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	return r.err
}

// LogoutReply confirms a logout; the circuit closes after it is acked.
type LogoutReply struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	ItemIDs   []uuid.UUID
}

func (m *LogoutReply) ID() protocol.MessageID { return IDLogoutReply }

func (m *LogoutReply) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	writeGroup(e, m.ItemIDs, (*protocol.Encoder).WriteUUID)
}

func (m *LogoutReply) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.ItemIDs = readGroup(r, 16, (*reader).id)
	return r.err
}

// KickUser disconnects an agent. It only ever comes from trusted peers.
type KickUser struct {
	TargetIP   uint32
	TargetPort uint16
	AgentID    uuid.UUID
	SessionID  uuid.UUID
	Reason     string
}

func (m *KickUser) ID() protocol.MessageID { return IDKickUser }

func (m *KickUser) EncodeTo(e *protocol.Encoder) {
	e.WriteUint32(m.TargetIP)
	e.WriteUint16(m.TargetPort)
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteString2(m.Reason)
}

func (m *KickUser) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.TargetIP = r.u32()
	m.TargetPort = r.u16()
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.Reason = r.str2()
	return r.err
}
