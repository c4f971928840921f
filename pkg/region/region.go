// Package region is the simulator side of a single region: it admits
// agents expected by the login service, greets them with the region
// handshake, streams terrain, relays local chat and handles logout and
// kicks. It sits on top of pkg/server and owns no sockets itself.
package region

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/message"
	"github.com/simwire/simwire/pkg/protocol"
	"github.com/simwire/simwire/pkg/server"
	"github.com/simwire/simwire/pkg/terrain"
	"github.com/simwire/simwire/pkg/terrainstore"
)

var (
	// ErrUnknownCode is returned by Authorize for circuit codes that were
	// never handed out.
	ErrUnknownCode = errors.New("region: unknown circuit code")

	// ErrSessionMismatch is returned by Authorize when the agent or
	// session does not match the one the code was issued to.
	ErrSessionMismatch = errors.New("region: circuit code issued to another session")

	// ErrNotAttached is returned before Attach.
	ErrNotAttached = errors.New("region: not attached to a server")
)

// layerDataBudget bounds the compressed terrain carried by one LayerData
// so the datagram stays under the MTU with room for appended acks.
const layerDataBudget = protocol.MTU - 160

// Agent is an agent the login service has sent to this region.
type Agent struct {
	Code      uint32
	AgentID   uuid.UUID
	SessionID uuid.UUID
	FirstName string
	LastName  string
}

// Name returns the agent's display name.
func (a Agent) Name() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Neighbor is an adjacent region announced to arriving agents.
type Neighbor struct {
	Handle uint64
	Addr   netip.AddrPort
}

// Config describes the region.
type Config struct {
	// Name is shown to viewers.
	Name string

	// RegionID identifies the region. Default: random.
	RegionID uuid.UUID

	// Owner is the estate owner.
	Owner uuid.UUID

	// GridX and GridY are the region's grid coordinates in regions.
	GridX, GridY uint32

	// WaterHeight in meters.
	// Default: 20
	WaterHeight float32

	// DefaultHeight is used for patches missing from the store.
	// Default: 21
	DefaultHeight float64

	// PatchesPerSide is the width of the terrain in patches.
	// Default: 16 (a 256m region)
	PatchesPerSide int

	// OpenAdmission admits circuit codes that were never expected.
	// Intended for development grids.
	OpenAdmission bool

	// Neighbors are announced with EnableSimulator after an agent
	// completes movement into the region.
	Neighbors []Neighbor
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:           "Simwire",
		RegionID:       uuid.New(),
		GridX:          1000,
		GridY:          1000,
		WaterHeight:    20,
		DefaultHeight:  21,
		PatchesPerSide: 16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.RegionID == uuid.Nil {
		c.RegionID = d.RegionID
	}
	if c.WaterHeight == 0 {
		c.WaterHeight = d.WaterHeight
	}
	if c.DefaultHeight == 0 {
		c.DefaultHeight = d.DefaultHeight
	}
	if c.PatchesPerSide <= 0 || c.PatchesPerSide > terrain.MaxPatchCoord {
		c.PatchesPerSide = d.PatchesPerSide
	}
	return c
}

// Handle returns the 64-bit region handle: global x and y in meters.
func (c Config) Handle() uint64 {
	return uint64(c.GridX*256)<<32 | uint64(c.GridY*256)
}

// EventQueues is the part of the event queue manager the region uses.
type EventQueues interface {
	Register(c *circuit.Circuit) uuid.UUID
}

// Option configures a Region.
type Option func(*Region)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Region) {
		r.logger = logger
	}
}

// WithEventQueues gives every viewer circuit an event queue on open.
func WithEventQueues(q EventQueues) Option {
	return func(r *Region) {
		r.queues = q
	}
}

// Region serves one region's agents.
type Region struct {
	cfg    Config
	store  terrainstore.Store
	logger *slog.Logger
	queues EventQueues
	srv    *server.Server

	mu     sync.RWMutex
	agents map[uint32]Agent
	caps   map[uuid.UUID]uuid.UUID
	ready  map[*circuit.Circuit]struct{}
}

// New creates a region backed by store. Call Attach before the server
// starts.
func New(cfg Config, store terrainstore.Store, opts ...Option) *Region {
	r := &Region{
		cfg:    cfg.withDefaults(),
		store:  store,
		agents: make(map[uint32]Agent),
		caps:   make(map[uuid.UUID]uuid.UUID),
		ready:  make(map[*circuit.Circuit]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "region", "region", r.cfg.Name)
	return r
}

// Config returns the effective configuration.
func (r *Region) Config() Config {
	return r.cfg
}

// Attach registers the region's handlers and circuit hooks on srv.
func (r *Region) Attach(srv *server.Server) error {
	r.srv = srv

	handlers := []struct {
		id protocol.MessageID
		h  server.Handler
	}{
		{message.IDRegionHandshakeReply, r.handleHandshakeReply},
		{message.IDCompleteAgentMovement, r.handleCompleteMovement},
		{message.IDChatFromViewer, r.handleChat},
		{message.IDLogoutRequest, r.handleLogout},
		{message.IDKickUser, r.handleKick},
		{message.IDUUIDNameRequest, r.handleNameRequest},
	}
	for _, h := range handlers {
		if err := srv.RegisterInboundHandler(h.id, h.h); err != nil {
			return fmt.Errorf("region: register %v: %w", h.id, err)
		}
	}
	if err := srv.OnCircuitOpen(r.circuitOpened); err != nil {
		return err
	}
	return srv.OnCircuitClose(r.circuitClosed)
}

// ExpectAgent records a circuit code handed out at login. The agent may
// open circuits with it until it logs out or is kicked.
func (r *Region) ExpectAgent(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Code] = a
}

// Authorize implements server.Authorizer.
func (r *Region) Authorize(ctx context.Context, code uint32, agentID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[code]
	if !ok {
		if !r.cfg.OpenAdmission {
			return fmt.Errorf("%w: %d", ErrUnknownCode, code)
		}
		a = Agent{Code: code, AgentID: agentID, SessionID: sessionID, FirstName: "Resident", LastName: agentID.String()[:8]}
		r.agents[code] = a
	}
	if a.AgentID != agentID || a.SessionID != sessionID {
		return ErrSessionMismatch
	}
	return nil
}

// agent returns the expected agent holding code.
func (r *Region) agent(code uint32) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[code]
	return a, ok
}

// forget drops the agent's circuit code.
func (r *Region) forget(code uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, code)
}

// Capability returns the event queue capability of the agent's circuit.
func (r *Region) Capability(agentID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.caps[agentID]
	return id, ok
}

func (r *Region) circuitOpened(c *circuit.Circuit) {
	if c.Trusted {
		return
	}
	if r.queues != nil {
		capID := r.queues.Register(c)
		r.mu.Lock()
		r.caps[c.AgentID] = capID
		r.mu.Unlock()
		r.logger.Debug("event queue registered", "agent_id", c.AgentID, "capability", capID)
	}

	err := r.srv.Send(c, &message.RegionHandshake{
		SimAccess:   13,
		SimName:     r.cfg.Name,
		SimOwner:    r.cfg.Owner,
		WaterHeight: r.cfg.WaterHeight,
		CacheID:     uuid.New(),
		RegionID:    r.cfg.RegionID,
	})
	if err != nil {
		r.logger.Warn("region handshake failed", "agent_id", c.AgentID, "error", err)
	}
}

func (r *Region) circuitClosed(c *circuit.Circuit, reason error) {
	// A replacement circuit for the same agent keeps its capability.
	replaced := r.srv.Circuit(c.AgentID) != nil

	r.mu.Lock()
	delete(r.ready, c)
	if !replaced {
		delete(r.caps, c.AgentID)
	}
	r.mu.Unlock()

	if errors.Is(reason, server.ErrLoggedOut) || errors.Is(reason, server.ErrKicked) {
		r.forget(c.Code)
	}
}

// owns reports whether the ids in a viewer message belong to c.
func owns(c *circuit.Circuit, agentID, sessionID uuid.UUID) bool {
	return c.AgentID == agentID && c.SessionID == sessionID
}

func (r *Region) handleHandshakeReply(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.RegionHandshakeReply)
	if !owns(c, msg.AgentID, msg.SessionID) {
		return fmt.Errorf("region: handshake reply for agent %s", msg.AgentID)
	}

	r.mu.Lock()
	r.ready[c] = struct{}{}
	r.mu.Unlock()

	return r.SendTerrain(ctx, c)
}

// SendTerrain streams every land patch to c in MTU-sized LayerData
// messages.
func (r *Region) SendTerrain(ctx context.Context, c *circuit.Circuit) error {
	patches, err := r.Terrain(ctx)
	if err != nil {
		return err
	}
	streams, err := terrain.CompressBatches(terrain.LayerLand, patches, layerDataBudget)
	if err != nil {
		return err
	}
	for _, data := range streams {
		if err := r.srv.Send(c, &message.LayerData{Type: uint8(terrain.LayerLand), Data: data}); err != nil {
			return err
		}
	}
	r.logger.Debug("terrain sent",
		"agent_id", c.AgentID,
		"patches", len(patches),
		"messages", len(streams))
	return nil
}

// Terrain loads every patch of the region, filling gaps with flat patches
// at the default height.
func (r *Region) Terrain(ctx context.Context) ([]terrain.Patch, error) {
	n := r.cfg.PatchesPerSide
	patches := make([]terrain.Patch, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			p, err := r.store.GetPatch(ctx, x, y)
			if errors.Is(err, terrainstore.ErrNotFound) {
				p = terrain.NewPatch(x, y, r.cfg.DefaultHeight)
			} else if err != nil {
				return nil, fmt.Errorf("region: load patch (%d,%d): %w", x, y, err)
			}
			p.X, p.Y = x, y
			patches = append(patches, p)
		}
	}
	return patches, nil
}

// UpdatePatch stores p at (x, y) and sends it to every viewer that has
// already received the terrain.
func (r *Region) UpdatePatch(ctx context.Context, x, y int, p terrain.Patch) error {
	if x >= r.cfg.PatchesPerSide || y >= r.cfg.PatchesPerSide {
		return fmt.Errorf("%w: (%d, %d)", terrainstore.ErrOutOfRange, x, y)
	}
	if err := r.store.SetPatch(ctx, x, y, p); err != nil {
		return err
	}
	p.X, p.Y = x, y
	data, err := terrain.Compress(terrain.LayerLand, []terrain.Patch{p})
	if err != nil {
		return err
	}
	if r.srv == nil {
		return nil
	}

	r.mu.RLock()
	targets := make([]*circuit.Circuit, 0, len(r.ready))
	for c := range r.ready {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := r.srv.Send(c, &message.LayerData{Type: uint8(terrain.LayerLand), Data: data}); err != nil {
			r.logger.Debug("patch update not sent", "agent_id", c.AgentID, "error", err)
		}
	}
	return nil
}

func (r *Region) handleCompleteMovement(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.CompleteAgentMovement)
	if !owns(c, msg.AgentID, msg.SessionID) {
		return fmt.Errorf("region: movement for agent %s", msg.AgentID)
	}

	center := float32(r.cfg.PatchesPerSide * terrain.PatchSize / 2)
	err := r.srv.Send(c, &message.AgentMovementComplete{
		AgentID:        c.AgentID,
		SessionID:      c.SessionID,
		Position:       protocol.Vector3{X: center, Y: center, Z: float32(r.cfg.DefaultHeight) + 1},
		LookAt:         protocol.Vector3{X: 1},
		RegionHandle:   r.cfg.Handle(),
		Timestamp:      uint32(time.Now().Unix()),
		ChannelVersion: "simwire",
	})
	if err != nil {
		return err
	}

	for _, n := range r.cfg.Neighbors {
		if err := r.srv.Send(c, enableSimulator(n)); err != nil {
			r.logger.Debug("neighbor not announced", "agent_id", c.AgentID, "neighbor", n.Addr, "error", err)
		}
	}
	return nil
}

// enableSimulator builds the announcement of n. The address is carried in
// network byte order, read as a little-endian integer.
func enableSimulator(n Neighbor) *message.EnableSimulator {
	ip := n.Addr.Addr().Unmap().As4()
	return &message.EnableSimulator{
		Handle: n.Handle,
		IP:     binary.LittleEndian.Uint32(ip[:]),
		Port:   n.Addr.Port(),
	}
}

func (r *Region) handleChat(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.ChatFromViewer)
	if !owns(c, msg.AgentID, msg.SessionID) {
		return fmt.Errorf("region: chat from agent %s", msg.AgentID)
	}
	// Only public chat is relayed; other channels go to scripts.
	if msg.Channel != 0 {
		return nil
	}

	from := c.AgentID.String()
	if a, ok := r.agent(c.Code); ok {
		from = a.Name()
	}
	out := &message.ChatFromSimulator{
		FromName:   from,
		SourceID:   c.AgentID,
		OwnerID:    c.AgentID,
		SourceType: 1,
		ChatType:   msg.Type,
		Audible:    1,
		Message:    msg.Message,
	}
	for _, dst := range r.srv.Circuits() {
		if dst.Trusted {
			continue
		}
		if err := r.srv.Send(dst, out); err != nil {
			r.logger.Debug("chat not relayed", "agent_id", dst.AgentID, "error", err)
		}
	}
	return nil
}

func (r *Region) handleLogout(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.LogoutRequest)
	if !owns(c, msg.AgentID, msg.SessionID) {
		return fmt.Errorf("region: logout for agent %s", msg.AgentID)
	}
	err := r.srv.Send(c, &message.LogoutReply{AgentID: c.AgentID, SessionID: c.SessionID})
	r.srv.Teardown(c, server.ErrLoggedOut)
	r.logger.Info("agent logged out", "agent_id", c.AgentID)
	return err
}

func (r *Region) handleKick(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.KickUser)
	return r.Kick(msg.AgentID, msg.Reason)
}

// Kick tells the agent why it is being removed and tears its circuit down.
func (r *Region) Kick(agentID uuid.UUID, reason string) error {
	if r.srv == nil {
		return ErrNotAttached
	}
	c := r.srv.Circuit(agentID)
	if c == nil {
		return server.ErrNoCircuit
	}
	err := r.srv.Send(c, &message.KickUser{
		AgentID:   c.AgentID,
		SessionID: c.SessionID,
		Reason:    reason,
	})
	r.srv.Teardown(c, server.ErrKicked)
	r.logger.Info("agent kicked", "agent_id", agentID, "reason", reason)
	return err
}

func (r *Region) handleNameRequest(ctx context.Context, c *circuit.Circuit, m message.Message) error {
	msg := m.(*message.UUIDNameRequest)

	r.mu.RLock()
	byID := make(map[uuid.UUID]Agent, len(r.agents))
	for _, a := range r.agents {
		byID[a.AgentID] = a
	}
	r.mu.RUnlock()

	var reply message.UUIDNameReply
	for _, id := range msg.IDs {
		if a, ok := byID[id]; ok {
			reply.Names = append(reply.Names, message.AgentName{ID: id, FirstName: a.FirstName, LastName: a.LastName})
		}
	}
	if len(reply.Names) == 0 {
		return nil
	}
	return r.srv.Send(c, &reply)
}
