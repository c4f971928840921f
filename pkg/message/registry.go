package message

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	simerrors "github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/protocol"
)

// ErrUnknownMessageType is returned by Resolve for ids with no descriptor.
var ErrUnknownMessageType = errors.New("message: unknown message type")

// Trust restricts which kind of circuit a message may arrive on.
type Trust uint8

const (
	// Either accepts the message from any circuit.
	Either Trust = iota

	// TrustedOnly accepts the message only from trusted peer simulators.
	TrustedOnly

	// UntrustedOnly accepts the message only from viewers.
	UntrustedOnly
)

// String returns the trust rule name.
func (t Trust) String() string {
	switch t {
	case Either:
		return "either"
	case TrustedOnly:
		return "trusted-only"
	case UntrustedOnly:
		return "untrusted-only"
	default:
		return fmt.Sprintf("trust(%d)", uint8(t))
	}
}

// Allows reports whether a message with this rule may arrive on a circuit
// of the given trust.
func (t Trust) Allows(trustedCircuit bool) bool {
	switch t {
	case TrustedOnly:
		return trustedCircuit
	case UntrustedOnly:
		return !trustedCircuit
	default:
		return true
	}
}

// Descriptor is the immutable metadata of one message type.
type Descriptor struct {
	ID   protocol.MessageID
	Name string

	// New returns an empty message of this type.
	New func() Message

	Trust     Trust
	Reliable  bool
	ZeroCoded bool

	// EventQueue is non-nil when the message can be delivered over the
	// HTTP event queue.
	EventQueue EventQueueEncoder

	// UDPDeprecated routes the message to the event queue whenever the
	// circuit has one registered.
	UDPDeprecated bool
}

// Registry maps message ids and names to descriptors. It is read-only once
// built and safe for concurrent use.
type Registry struct {
	byID   map[protocol.MessageID]*Descriptor
	byName map[string]*Descriptor
	all    []*Descriptor
}

// NewRegistry builds a registry from descs. Duplicate ids or names and ids
// outside every frequency range are rejected.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		byID:   make(map[protocol.MessageID]*Descriptor, len(descs)),
		byName: make(map[string]*Descriptor, len(descs)),
		all:    make([]*Descriptor, 0, len(descs)),
	}
	for i := range descs {
		d := &descs[i]
		if !d.ID.Valid() || d.New == nil {
			return nil, simerrors.New(simerrors.CodeInvalidMessageID).
				WithDetail(fmt.Sprintf("%s has id %#x", d.Name, uint32(d.ID)))
		}
		if prev, ok := r.byID[d.ID]; ok {
			return nil, simerrors.New(simerrors.CodeDuplicateMessageID).
				WithDetail(fmt.Sprintf("%s and %s share id %v", prev.Name, d.Name, d.ID))
		}
		if _, ok := r.byName[d.Name]; ok {
			return nil, simerrors.New(simerrors.CodeDuplicateName).
				WithDetail(fmt.Sprintf("name %q is registered twice", d.Name))
		}
		if got := d.New().ID(); got != d.ID {
			return nil, simerrors.New(simerrors.CodeInvalidMessageID).
				WithDetail(fmt.Sprintf("%s constructor builds id %v, descriptor says %v", d.Name, got, d.ID))
		}
		r.byID[d.ID] = d
		r.byName[d.Name] = d
		r.all = append(r.all, d)
	}
	slices.SortFunc(r.all, func(a, b *Descriptor) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return r, nil
}

// Resolve returns the descriptor for id.
func (r *Registry) Resolve(id protocol.MessageID) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessageType, id)
	}
	return d, nil
}

// ByName returns the descriptor registered under name.
func (r *Registry) ByName(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Descriptors returns every descriptor ordered by id.
func (r *Registry) Descriptors() []*Descriptor {
	return slices.Clone(r.all)
}

// Len returns the number of registered message types.
func (r *Registry) Len() int {
	return len(r.all)
}

// Decode resolves id and decodes body into a new message of that type.
func (r *Registry) Decode(id protocol.MessageID, body []byte) (Message, *Descriptor, error) {
	d, err := r.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	m := d.New()
	if err := Decode(m, body); err != nil {
		return nil, d, fmt.Errorf("message: decode %s: %w", d.Name, err)
	}
	return m, d, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(table())
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the compiled-in registry. A corrupt table is a build
// defect and panics on first use.
func Default() *Registry {
	return defaultRegistry()
}

func table() []Descriptor {
	return []Descriptor{
		{ID: IDPacketAck, Name: "PacketAck", New: func() Message { return new(PacketAck) }},
		{ID: IDOpenCircuit, Name: "OpenCircuit", New: func() Message { return new(OpenCircuit) }, Trust: TrustedOnly},
		{ID: IDCloseCircuit, Name: "CloseCircuit", New: func() Message { return new(CloseCircuit) }},
		{ID: IDStartPingCheck, Name: "StartPingCheck", New: func() Message { return new(StartPingCheck) }},
		{ID: IDCompletePingCheck, Name: "CompletePingCheck", New: func() Message { return new(CompletePingCheck) }},
		{ID: IDUseCircuitCode, Name: "UseCircuitCode", New: func() Message { return new(UseCircuitCode) }, Reliable: true},
		{ID: IDTestMessage, Name: "TestMessage", New: func() Message { return new(TestMessage) }, ZeroCoded: true},

		{ID: IDAgentUpdate, Name: "AgentUpdate", New: func() Message { return new(AgentUpdate) },
			Trust: UntrustedOnly, ZeroCoded: true},
		{ID: IDCompleteAgentMovement, Name: "CompleteAgentMovement", New: func() Message { return new(CompleteAgentMovement) },
			Trust: UntrustedOnly, Reliable: true},
		{ID: IDAgentMovementComplete, Name: "AgentMovementComplete", New: func() Message { return new(AgentMovementComplete) },
			Trust: TrustedOnly, Reliable: true},
		{ID: IDLogoutRequest, Name: "LogoutRequest", New: func() Message { return new(LogoutRequest) },
			Trust: UntrustedOnly, Reliable: true},
		{ID: IDLogoutReply, Name: "LogoutReply", New: func() Message { return new(LogoutReply) },
			Trust: TrustedOnly, Reliable: true, ZeroCoded: true},
		{ID: IDKickUser, Name: "KickUser", New: func() Message { return new(KickUser) },
			Trust: TrustedOnly, Reliable: true},

		{ID: IDLayerData, Name: "LayerData", New: func() Message { return new(LayerData) },
			Trust: TrustedOnly, Reliable: true},
		{ID: IDRegionHandshake, Name: "RegionHandshake", New: func() Message { return new(RegionHandshake) },
			Trust: TrustedOnly, Reliable: true, ZeroCoded: true},
		{ID: IDRegionHandshakeReply, Name: "RegionHandshakeReply", New: func() Message { return new(RegionHandshakeReply) },
			Trust: UntrustedOnly, Reliable: true, ZeroCoded: true},
		{ID: IDSimulatorViewerTimeMessage, Name: "SimulatorViewerTimeMessage", New: func() Message { return new(SimulatorViewerTimeMessage) },
			Trust: TrustedOnly},
		{ID: IDEnableSimulator, Name: "EnableSimulator", New: func() Message { return new(EnableSimulator) },
			Trust: TrustedOnly, Reliable: true, EventQueue: encodeEnableSimulatorEvent, UDPDeprecated: true},
		{ID: IDDisableSimulator, Name: "DisableSimulator", New: func() Message { return new(DisableSimulator) },
			Trust: TrustedOnly, Reliable: true},
		{ID: IDCrossedRegion, Name: "CrossedRegion", New: func() Message { return new(CrossedRegion) },
			Trust: TrustedOnly, Reliable: true, EventQueue: encodeCrossedRegionEvent, UDPDeprecated: true},
		{ID: IDTeleportFinish, Name: "TeleportFinish", New: func() Message { return new(TeleportFinish) },
			Trust: TrustedOnly, Reliable: true, EventQueue: encodeTeleportFinishEvent, UDPDeprecated: true},
		{ID: IDImprovedTerseObjectUpdate, Name: "ImprovedTerseObjectUpdate", New: func() Message { return new(ImprovedTerseObjectUpdate) },
			Trust: TrustedOnly},

		{ID: IDChatFromViewer, Name: "ChatFromViewer", New: func() Message { return new(ChatFromViewer) },
			Trust: UntrustedOnly, Reliable: true, ZeroCoded: true},
		{ID: IDChatFromSimulator, Name: "ChatFromSimulator", New: func() Message { return new(ChatFromSimulator) },
			Trust: TrustedOnly, Reliable: true},
		{ID: IDImprovedInstantMessage, Name: "ImprovedInstantMessage", New: func() Message { return new(ImprovedInstantMessage) },
			Reliable: true, ZeroCoded: true},
		{ID: IDViewerEffect, Name: "ViewerEffect", New: func() Message { return new(ViewerEffect) },
			ZeroCoded: true},
		{ID: IDUUIDNameRequest, Name: "UUIDNameRequest", New: func() Message { return new(UUIDNameRequest) }},
		{ID: IDUUIDNameReply, Name: "UUIDNameReply", New: func() Message { return new(UUIDNameReply) },
			Trust: TrustedOnly, Reliable: true},
	}
}
