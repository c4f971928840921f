package message

import (
	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// PacketAck acknowledges reliable packets when no outbound packet is
// available to carry the acks.
type PacketAck struct {
	Packets []uint32
}

func (m *PacketAck) ID() protocol.MessageID { return IDPacketAck }

func (m *PacketAck) EncodeTo(e *protocol.Encoder) {
	writeGroup(e, m.Packets, (*protocol.Encoder).WriteUint32)
}

func (m *PacketAck) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Packets = readGroup(r, 4, (*reader).u32)
	return r.err
}

// OpenCircuit asks a peer simulator to open a circuit back to an endpoint.
type OpenCircuit struct {
	IP   uint32
	Port uint16
}

func (m *OpenCircuit) ID() protocol.MessageID { return IDOpenCircuit }

func (m *OpenCircuit) EncodeTo(e *protocol.Encoder) {
	e.WriteUint32(m.IP)
	e.WriteUint16(m.Port)
}

func (m *OpenCircuit) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.IP = r.u32()
	m.Port = r.u16()
	return r.err
}

// CloseCircuit ends the circuit it arrives on.
type CloseCircuit struct{}

func (m *CloseCircuit) ID() protocol.MessageID             { return IDCloseCircuit }
func (m *CloseCircuit) EncodeTo(*protocol.Encoder)         {}
func (m *CloseCircuit) DecodeFrom(*protocol.Decoder) error { return nil }

// StartPingCheck measures round-trip time. OldestUnacked is the sender's
// oldest unacknowledged sequence number.
type StartPingCheck struct {
	PingID        uint8
	OldestUnacked uint32
}

func (m *StartPingCheck) ID() protocol.MessageID { return IDStartPingCheck }

func (m *StartPingCheck) EncodeTo(e *protocol.Encoder) {
	e.WriteUint8(m.PingID)
	e.WriteUint32(m.OldestUnacked)
}

func (m *StartPingCheck) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.PingID = r.u8()
	m.OldestUnacked = r.u32()
	return r.err
}

// CompletePingCheck answers a StartPingCheck.
type CompletePingCheck struct {
	PingID uint8
}

func (m *CompletePingCheck) ID() protocol.MessageID { return IDCompletePingCheck }

func (m *CompletePingCheck) EncodeTo(e *protocol.Encoder) {
	e.WriteUint8(m.PingID)
}

func (m *CompletePingCheck) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.PingID = r.u8()
	return r.err
}

// UseCircuitCode is the first message on a new circuit. Code is the
// capability handed out at login.
type UseCircuitCode struct {
	Code      uint32
	SessionID uuid.UUID
	AgentID   uuid.UUID
}

func (m *UseCircuitCode) ID() protocol.MessageID { return IDUseCircuitCode }

func (m *UseCircuitCode) EncodeTo(e *protocol.Encoder) {
	e.WriteUint32(m.Code)
	e.WriteUUID(m.SessionID)
	e.WriteUUID(m.AgentID)
}

func (m *UseCircuitCode) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Code = r.u32()
	m.SessionID = r.id()
	m.AgentID = r.id()
	return r.err
}

// TestMessage exercises a fixed-count group: exactly four neighbor blocks
// follow with no count byte.
type TestMessage struct {
	Test1     uint32
	Neighbors [4]TestNeighbor
}

// TestNeighbor is one block of TestMessage.
type TestNeighbor struct {
	Test0, Test1, Test2 uint32
}

func (m *TestMessage) ID() protocol.MessageID { return IDTestMessage }

func (m *TestMessage) EncodeTo(e *protocol.Encoder) {
	e.WriteUint32(m.Test1)
	for _, n := range m.Neighbors {
		e.WriteUint32(n.Test0)
		e.WriteUint32(n.Test1)
		e.WriteUint32(n.Test2)
	}
}

func (m *TestMessage) DecodeFrom(d *protocol.Decoder) error {
	r := newReader(d)
	m.Test1 = r.u32()
	for i := range m.Neighbors {
		m.Neighbors[i] = TestNeighbor{Test0: r.u32(), Test1: r.u32(), Test2: r.u32()}
	}
	return r.err
}
