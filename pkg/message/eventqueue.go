package message

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// EventQueueEncoder converts a message to the structured document the HTTP
// event queue delivers. Blocks are lists of field maps keyed by block name.
type EventQueueEncoder func(Message) (map[string]any, error)

func ipString(ip uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b).String()
}

func unexpected(m Message, want string) error {
	return fmt.Errorf("message: event queue encoder for %s got %T", want, m)
}

func encodeEnableSimulatorEvent(m Message) (map[string]any, error) {
	msg, ok := m.(*EnableSimulator)
	if !ok {
		return nil, unexpected(m, "EnableSimulator")
	}
	return map[string]any{
		"SimulatorInfo": []map[string]any{{
			"Handle": msg.Handle,
			"IP":     ipString(msg.IP),
			"Port":   msg.Port,
		}},
	}, nil
}

func encodeCrossedRegionEvent(m Message) (map[string]any, error) {
	msg, ok := m.(*CrossedRegion)
	if !ok {
		return nil, unexpected(m, "CrossedRegion")
	}
	return map[string]any{
		"AgentData": []map[string]any{{
			"AgentID":   msg.AgentID.String(),
			"SessionID": msg.SessionID.String(),
		}},
		"RegionData": []map[string]any{{
			"SimIP":          ipString(msg.SimIP),
			"SimPort":        msg.SimPort,
			"RegionHandle":   msg.RegionHandle,
			"SeedCapability": msg.SeedCapability,
		}},
		"Info": []map[string]any{{
			"Position": []float32{msg.Position.X, msg.Position.Y, msg.Position.Z},
			"LookAt":   []float32{msg.LookAt.X, msg.LookAt.Y, msg.LookAt.Z},
		}},
	}, nil
}

func encodeTeleportFinishEvent(m Message) (map[string]any, error) {
	msg, ok := m.(*TeleportFinish)
	if !ok {
		return nil, unexpected(m, "TeleportFinish")
	}
	return map[string]any{
		"Info": []map[string]any{{
			"AgentID":        msg.AgentID.String(),
			"LocationID":     msg.LocationID,
			"SimIP":          ipString(msg.SimIP),
			"SimPort":        msg.SimPort,
			"RegionHandle":   msg.RegionHandle,
			"SeedCapability": msg.SeedCapability,
			"SimAccess":      msg.SimAccess,
			"TeleportFlags":  msg.TeleportFlags,
		}},
	}, nil
}
