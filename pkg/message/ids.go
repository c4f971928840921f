package message

import "github.com/simwire/simwire/pkg/protocol"

// Message type ids. The value is the big-endian reading of the id bytes on
// the wire, see protocol.MessageID.
const (
	IDStartPingCheck            protocol.MessageID = 0x01
	IDCompletePingCheck         protocol.MessageID = 0x02
	IDAgentUpdate               protocol.MessageID = 0x04
	IDLayerData                 protocol.MessageID = 0x0B
	IDImprovedTerseObjectUpdate protocol.MessageID = 0x0F

	IDCrossedRegion protocol.MessageID = 0xFF07
	IDViewerEffect  protocol.MessageID = 0xFF11

	IDTestMessage                protocol.MessageID = 0xFFFF0001
	IDUseCircuitCode             protocol.MessageID = 0xFFFF0003
	IDTeleportFinish             protocol.MessageID = 0xFFFF0045
	IDChatFromViewer             protocol.MessageID = 0xFFFF0050
	IDChatFromSimulator          protocol.MessageID = 0xFFFF008B
	IDRegionHandshake            protocol.MessageID = 0xFFFF0094
	IDRegionHandshakeReply       protocol.MessageID = 0xFFFF0095
	IDSimulatorViewerTimeMessage protocol.MessageID = 0xFFFF0096
	IDEnableSimulator            protocol.MessageID = 0xFFFF0097
	IDDisableSimulator           protocol.MessageID = 0xFFFF0098
	IDKickUser                   protocol.MessageID = 0xFFFF00A3
	IDUUIDNameRequest            protocol.MessageID = 0xFFFF00EB
	IDUUIDNameReply              protocol.MessageID = 0xFFFF00EC
	IDCompleteAgentMovement      protocol.MessageID = 0xFFFF00F9
	IDAgentMovementComplete      protocol.MessageID = 0xFFFF00FA
	IDLogoutRequest              protocol.MessageID = 0xFFFF00FC
	IDLogoutReply                protocol.MessageID = 0xFFFF00FD
	IDImprovedInstantMessage     protocol.MessageID = 0xFFFF00FE

	IDPacketAck    protocol.MessageID = 0xFFFFFFFB
	IDOpenCircuit  protocol.MessageID = 0xFFFFFFFC
	IDCloseCircuit protocol.MessageID = 0xFFFFFFFD
)
