package message

import (
	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// LayerData carries a compressed terrain patch stream.
type LayerData struct {
	Type uint8
	Data []byte
}

func (m *LayerData) ID() protocol.MessageID { return IDLayerData }

func (m *LayerData) EncodeTo(e *protocol.Encoder) {
	e.WriteUint8(m.Type)
	e.WriteVariable2(m.Data)
}

func (m *LayerData) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Type = r.u8()
	m.Data = r.var2()
	return r.err
}

// RegionHandshake describes the region to a newly connected viewer.
type RegionHandshake struct {
	RegionFlags     uint32
	SimAccess       uint8
	SimName         string
	SimOwner        uuid.UUID
	IsEstateManager bool
	WaterHeight     float32
	BillableFactor  float32
	CacheID         uuid.UUID
	RegionID        uuid.UUID
}

func (m *RegionHandshake) ID() protocol.MessageID { return IDRegionHandshake }

func (m *RegionHandshake) EncodeTo(e *protocol.Encoder) {
	e.WriteUint32(m.RegionFlags)
	e.WriteUint8(m.SimAccess)
	e.WriteString1(m.SimName)
	e.WriteUUID(m.SimOwner)
	e.WriteBool(m.IsEstateManager)
	e.WriteFloat32(m.WaterHeight)
	e.WriteFloat32(m.BillableFactor)
	e.WriteUUID(m.CacheID)
	e.WriteUUID(m.RegionID)
}

func (m *RegionHandshake) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.RegionFlags = r.u32()
	m.SimAccess = r.u8()
	m.SimName = r.str1()
	m.SimOwner = r.id()
	m.IsEstateManager = r.boolean()
	m.WaterHeight = r.f32()
	m.BillableFactor = r.f32()
	m.CacheID = r.id()
	m.RegionID = r.id()
	return r.err
}

// RegionHandshakeReply tells the simulator the viewer has the region
// description and is ready for terrain and objects.
type RegionHandshakeReply struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Flags     uint32
}

func (m *RegionHandshakeReply) ID() protocol.MessageID { return IDRegionHandshakeReply }

func (m *RegionHandshakeReply) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteUint32(m.Flags)
}

func (m *RegionHandshakeReply) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.Flags = r.u32()
	return r.err
}

// SimulatorViewerTimeMessage synchronizes the viewer's sun and clock.
type SimulatorViewerTimeMessage struct {
	UsecSinceStart uint64
	SecPerDay      uint32
	SecPerYear     uint32
	SunDirection   protocol.Vector3
	SunPhase       float32
	SunAngVelocity protocol.Vector3
}

func (m *SimulatorViewerTimeMessage) ID() protocol.MessageID { return IDSimulatorViewerTimeMessage }

func (m *SimulatorViewerTimeMessage) EncodeTo(e *protocol.Encoder) {
	e.WriteUint64(m.UsecSinceStart)
	e.WriteUint32(m.SecPerDay)
	e.WriteUint32(m.SecPerYear)
	e.WriteVector3(m.SunDirection)
	e.WriteFloat32(m.SunPhase)
	e.WriteVector3(m.SunAngVelocity)
}

func (m *SimulatorViewerTimeMessage) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.UsecSinceStart = r.u64()
	m.SecPerDay = r.u32()
	m.SecPerYear = r.u32()
	m.SunDirection = r.vec3()
	m.SunPhase = r.f32()
	m.SunAngVelocity = r.vec3()
	return r.err
}

// EnableSimulator tells the viewer to open a circuit to a neighbor region.
type EnableSimulator struct {
	Handle uint64
	IP     uint32
	Port   uint16
}

func (m *EnableSimulator) ID() protocol.MessageID { return IDEnableSimulator }

func (m *EnableSimulator) EncodeTo(e *protocol.Encoder) {
	e.WriteUint64(m.Handle)
	e.WriteUint32(m.IP)
	e.WriteUint16(m.Port)
}

func (m *EnableSimulator) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Handle = r.u64()
	m.IP = r.u32()
	m.Port = r.u16()
	return r.err
}

// DisableSimulator tells the viewer to drop its circuit to this region.
type DisableSimulator struct{}

func (m *DisableSimulator) ID() protocol.MessageID             { return IDDisableSimulator }
func (m *DisableSimulator) EncodeTo(*protocol.Encoder)         {}
func (m *DisableSimulator) DecodeFrom(*protocol.Decoder) error { return nil }

// CrossedRegion hands an agent over to a neighbor region.
type CrossedRegion struct {
	AgentID        uuid.UUID
	SessionID      uuid.UUID
	SimIP          uint32
	SimPort        uint16
	RegionHandle   uint64
	SeedCapability string
	Position       protocol.Vector3
	LookAt         protocol.Vector3
}

func (m *CrossedRegion) ID() protocol.MessageID { return IDCrossedRegion }

func (m *CrossedRegion) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUUID(m.SessionID)
	e.WriteUint32(m.SimIP)
	e.WriteUint16(m.SimPort)
	e.WriteUint64(m.RegionHandle)
	e.WriteString2(m.SeedCapability)
	e.WriteVector3(m.Position)
	e.WriteVector3(m.LookAt)
}

func (m *CrossedRegion) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.SessionID = r.id()
	m.SimIP = r.u32()
	m.SimPort = r.u16()
	m.RegionHandle = r.u64()
	m.SeedCapability = r.str2()
	m.Position = r.vec3()
	m.LookAt = r.vec3()
	return r.err
}

// TeleportFinish sends the viewer to the destination region.
type TeleportFinish struct {
	AgentID        uuid.UUID
	LocationID     uint32
	SimIP          uint32
	SimPort        uint16
	RegionHandle   uint64
	SeedCapability string
	SimAccess      uint8
	TeleportFlags  uint32
}

func (m *TeleportFinish) ID() protocol.MessageID { return IDTeleportFinish }

func (m *TeleportFinish) EncodeTo(e *protocol.Encoder) {
	e.WriteUUID(m.AgentID)
	e.WriteUint32(m.LocationID)
	e.WriteUint32(m.SimIP)
	e.WriteUint16(m.SimPort)
	e.WriteUint64(m.RegionHandle)
	e.WriteString2(m.SeedCapability)
	e.WriteUint8(m.SimAccess)
	e.WriteUint32(m.TeleportFlags)
}

func (m *TeleportFinish) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.AgentID = r.id()
	m.LocationID = r.u32()
	m.SimIP = r.u32()
	m.SimPort = r.u16()
	m.RegionHandle = r.u64()
	m.SeedCapability = r.str2()
	m.SimAccess = r.u8()
	m.TeleportFlags = r.u32()
	return r.err
}
