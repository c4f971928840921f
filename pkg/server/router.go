package server

import (
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/message"
	"github.com/simwire/simwire/pkg/protocol"
)

// Send delivers m to c. Messages deprecated over UDP go to c's event queue
// when it has one; everything else is sequenced by the circuit and written
// to the socket.
func (s *Server) Send(c *circuit.Circuit, m message.Message) error {
	if c == nil {
		return ErrNoCircuit
	}
	desc, err := s.registry.Resolve(m.ID())
	if err != nil {
		return NewCircuitError(c.Addr, "send", err)
	}

	if s.useEventQueue(c, desc) {
		body, err := desc.EventQueue(m)
		if err != nil {
			return NewCircuitError(c.Addr, "encode "+desc.Name, err)
		}
		if err := s.events.Enqueue(c, desc.Name, body); err != nil {
			return NewCircuitError(c.Addr, "event queue "+desc.Name, err)
		}
		s.metrics.eventQueued.WithLabelValues(desc.Name).Inc()
		return nil
	}

	body, err := message.Encode(m)
	if err != nil {
		return NewCircuitError(c.Addr, "encode "+desc.Name, err)
	}
	p := &protocol.Packet{ID: desc.ID, Body: body}
	if desc.Reliable {
		p.Flags |= protocol.FlagReliable
	}
	if desc.ZeroCoded && protocol.ZeroCodingHelps(body) {
		p.Flags |= protocol.FlagZeroCoded
	}

	data, err := c.Outbound(p, time.Now())
	if err != nil {
		return NewCircuitError(c.Addr, "send "+desc.Name, err)
	}
	if err := s.write(c.Addr, data); err != nil {
		return NewCircuitError(c.Addr, "write "+desc.Name, err)
	}
	s.metrics.packetsOut.WithLabelValues(desc.Name).Inc()
	return nil
}

// SendToAgent delivers m to the agent's current circuit.
func (s *Server) SendToAgent(agentID uuid.UUID, m message.Message) error {
	c := s.table.ByAgent(agentID)
	if c == nil {
		return ErrNoCircuit
	}
	return s.Send(c, m)
}

func (s *Server) useEventQueue(c *circuit.Circuit, desc *message.Descriptor) bool {
	if desc.EventQueue == nil || s.events == nil {
		return false
	}
	if _, ok := s.deprecated[desc.Name]; !ok && !desc.UDPDeprecated {
		return false
	}
	return s.events.Attached(c)
}

func (s *Server) write(addr netip.AddrPort, data []byte) error {
	conn := s.conn.Load()
	if conn == nil {
		return net.ErrClosed
	}
	n, err := conn.WriteToUDPAddrPort(data, addr)
	s.metrics.bytesOut.Add(float64(n))
	return err
}
