package config

import (
	stderrors "errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/eventqueue"
	"github.com/simwire/simwire/pkg/protocol"
	"github.com/simwire/simwire/pkg/region"
	"github.com/simwire/simwire/pkg/server"
	"github.com/simwire/simwire/pkg/terrain"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "simwire.yaml"

	// DefaultUDPAddress is the default circuit listen address.
	DefaultUDPAddress = "0.0.0.0:9000"

	// DefaultHTTPAddress is the default event queue and metrics address.
	DefaultHTTPAddress = "0.0.0.0:9080"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"
)

// Store kinds for the terrain section.
const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
	StoreS3     = "s3"
)

// Config represents the complete simwire.yaml configuration.
type Config struct {
	UDP          UDPConfig        `yaml:"udp"`
	HTTP         HTTPConfig       `yaml:"http"`
	Circuit      CircuitConfig    `yaml:"circuit"`
	EventQueue   EventQueueConfig `yaml:"event_queue"`
	TrustedPeers []string         `yaml:"trusted_peers"`
	Region       RegionConfig     `yaml:"region"`
	Terrain      TerrainConfig    `yaml:"terrain"`
	Log          LogConfig        `yaml:"log"`
	Metrics      MetricsConfig    `yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// UDPConfig configures the circuit socket.
type UDPConfig struct {
	// Address is the listen address.
	Address string `yaml:"address"`

	// MaxPacketSize is the largest datagram accepted.
	MaxPacketSize int `yaml:"max_packet_size"`
}

// HTTPConfig configures the event queue and metrics listener.
type HTTPConfig struct {
	// Address is the listen address. Empty disables HTTP.
	Address string `yaml:"address"`

	// PublicURL is the externally visible base of capability URLs.
	PublicURL string `yaml:"public_url"`
}

// CircuitConfig tunes reliability and circuit lifetime.
type CircuitConfig struct {
	ResendTimeout   time.Duration `yaml:"resend_timeout"`
	MaxResends      int           `yaml:"max_resends"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	InboundQueue    int           `yaml:"inbound_queue"`
	MaxAppendedAcks int           `yaml:"max_appended_acks"`
	SeenWindow      int           `yaml:"seen_window"`
}

// EventQueueConfig configures the HTTP event queue.
type EventQueueConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
	MaxEvents   int           `yaml:"max_events"`

	// UDPDeprecated lists extra messages delivered over the event queue.
	UDPDeprecated []string `yaml:"udp_deprecated"`
}

// RegionConfig describes the hosted region.
type RegionConfig struct {
	Name          string           `yaml:"name"`
	ID            string           `yaml:"id"`
	Owner         string           `yaml:"owner"`
	GridX         uint32           `yaml:"grid_x"`
	GridY         uint32           `yaml:"grid_y"`
	WaterHeight   float32          `yaml:"water_height"`
	OpenAdmission bool             `yaml:"open_admission"`
	Agents        []AgentConfig    `yaml:"agents"`
	Neighbors     []NeighborConfig `yaml:"neighbors"`
}

// AgentConfig pre-registers a circuit code, for grids without a login
// service.
type AgentConfig struct {
	Code      uint32 `yaml:"code"`
	AgentID   string `yaml:"agent_id"`
	SessionID string `yaml:"session_id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// NeighborConfig is an adjacent region.
type NeighborConfig struct {
	Handle  uint64 `yaml:"handle"`
	Address string `yaml:"address"`
}

// TerrainConfig selects and configures the terrain store.
type TerrainConfig struct {
	// Store is one of memory, sql or s3.
	Store          string  `yaml:"store"`
	DefaultHeight  float64 `yaml:"default_height"`
	PatchesPerSide int     `yaml:"patches_per_side"`

	SQL SQLConfig `yaml:"sql"`
	S3  S3Config  `yaml:"s3"`
}

// SQLConfig configures the SQL terrain store.
type SQLConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// S3Config configures the S3 terrain store. Credentials come from the
// standard AWS environment variables.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// New creates a new Config with default values.
func New() *Config {
	cc := circuit.DefaultConfig()
	sc := server.DefaultConfig()
	ec := eventqueue.DefaultConfig()
	return &Config{
		UDP: UDPConfig{
			Address:       DefaultUDPAddress,
			MaxPacketSize: protocol.MaxPacketSize,
		},
		HTTP: HTTPConfig{
			Address: DefaultHTTPAddress,
		},
		Circuit: CircuitConfig{
			ResendTimeout:   cc.ResendTimeout,
			MaxResends:      cc.MaxResends,
			IdleTimeout:     sc.IdleTimeout,
			TickInterval:    sc.TickInterval,
			InboundQueue:    cc.InboundQueue,
			MaxAppendedAcks: cc.MaxAppendedAcks,
			SeenWindow:      cc.SeenWindow,
		},
		EventQueue: EventQueueConfig{
			PollTimeout: ec.PollTimeout,
			MaxEvents:   ec.MaxEvents,
		},
		Region: RegionConfig{
			Name:        "Simwire",
			GridX:       1000,
			GridY:       1000,
			WaterHeight: 20,
		},
		Terrain: TerrainConfig{
			Store:          StoreMemory,
			DefaultHeight:  21,
			PatchesPerSide: 16,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for simwire.yaml in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Pass --config or run without one to use the defaults")
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var se *errors.SimwireError
		if stderrors.As(err, &se) && se.Code == errors.CodeConfigParse {
			if line := yamlErrorLine(se.Wrapped); line > 0 {
				se.WithLocation(path, line, 0)
			}
		}
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

var yamlLineRE = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the first line number a yaml error mentions.
func yamlErrorLine(err error) int {
	if err == nil {
		return 0
	}
	m := yamlLineRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse " + ConfigFileName).
			WithSuggestion("Check field names and that durations are written like 2s or 500ms").
			Wrap(err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()
	if c.UDP.Address == "" {
		c.UDP.Address = d.UDP.Address
	}
	if c.UDP.MaxPacketSize == 0 {
		c.UDP.MaxPacketSize = d.UDP.MaxPacketSize
	}
	if c.Terrain.Store == "" {
		c.Terrain.Store = StoreMemory
	}
	if c.Terrain.PatchesPerSide == 0 {
		c.Terrain.PatchesPerSide = d.Terrain.PatchesPerSide
	}
	if c.Terrain.SQL.Table == "" {
		c.Terrain.SQL.Table = "simwire_terrain"
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	c.Terrain.Store = strings.ToLower(c.Terrain.Store)
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// invalid builds a coded error for a bad value.
func invalid(field, detail string) error {
	return errors.New(errors.CodeConfigInvalid).
		WithDetail(field + ": " + detail)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := netip.ParseAddrPort(c.UDP.Address); err != nil {
		return invalid("udp.address", err.Error())
	}
	if c.UDP.MaxPacketSize < protocol.HeaderSize+1 || c.UDP.MaxPacketSize > protocol.MaxPacketSize {
		return invalid("udp.max_packet_size", fmt.Sprintf("must be between %d and %d", protocol.HeaderSize+1, protocol.MaxPacketSize))
	}
	if c.Circuit.MaxResends < 0 {
		return invalid("circuit.max_resends", "must not be negative")
	}
	if c.Circuit.MaxAppendedAcks > protocol.MaxAppendedAcks {
		return invalid("circuit.max_appended_acks", fmt.Sprintf("at most %d", protocol.MaxAppendedAcks))
	}
	if _, err := c.TrustedPeerAddrs(); err != nil {
		return err
	}
	if _, err := c.RegionConfig(); err != nil {
		return err
	}
	if _, err := c.Agents(); err != nil {
		return err
	}
	if n := c.Terrain.PatchesPerSide; n < 1 || n > terrain.MaxPatchCoord {
		return invalid("terrain.patches_per_side", fmt.Sprintf("must be between 1 and %d", terrain.MaxPatchCoord))
	}

	switch c.Terrain.Store {
	case StoreMemory:
	case StoreSQL:
		if c.Terrain.SQL.Driver == "" || c.Terrain.SQL.DSN == "" {
			return invalid("terrain.sql", "driver and dsn are required")
		}
	case StoreS3:
		if c.Terrain.S3.Bucket == "" {
			return invalid("terrain.s3.bucket", "required for the s3 store")
		}
	default:
		return errors.New(errors.CodeUnknownStore).
			WithDetail("terrain.store is " + c.Terrain.Store)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "must be text or json")
	}
	return nil
}

// TrustedPeerAddrs parses trusted_peers. A bare address trusts every port.
func (c *Config) TrustedPeerAddrs() ([]netip.AddrPort, error) {
	peers := make([]netip.AddrPort, 0, len(c.TrustedPeers))
	for _, s := range c.TrustedPeers {
		if ap, err := netip.ParseAddrPort(s); err == nil {
			peers = append(peers, ap)
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, invalid("trusted_peers", fmt.Sprintf("%q is not an address", s))
		}
		peers = append(peers, netip.AddrPortFrom(addr, 0))
	}
	return peers, nil
}

// ServerConfig returns the UDP server configuration.
func (c *Config) ServerConfig() server.Config {
	sc := server.DefaultConfig()
	sc.Addr = c.UDP.Address
	sc.MaxPacketSize = c.UDP.MaxPacketSize
	sc.Circuit.ResendTimeout = c.Circuit.ResendTimeout
	sc.Circuit.MaxResends = c.Circuit.MaxResends
	sc.Circuit.InboundQueue = c.Circuit.InboundQueue
	sc.Circuit.MaxAppendedAcks = c.Circuit.MaxAppendedAcks
	sc.Circuit.SeenWindow = c.Circuit.SeenWindow
	if c.Circuit.IdleTimeout > 0 {
		sc.IdleTimeout = c.Circuit.IdleTimeout
	}
	if c.Circuit.TickInterval > 0 {
		sc.TickInterval = c.Circuit.TickInterval
	}
	sc.TrustedPeers, _ = c.TrustedPeerAddrs()
	sc.UDPDeprecated = c.EventQueue.UDPDeprecated
	return sc
}

// EventQueueConfig returns the event queue manager configuration.
func (c *Config) EventQueueConfig() eventqueue.Config {
	ec := eventqueue.DefaultConfig()
	if c.EventQueue.PollTimeout > 0 {
		ec.PollTimeout = c.EventQueue.PollTimeout
	}
	if c.EventQueue.MaxEvents > 0 {
		ec.MaxEvents = c.EventQueue.MaxEvents
	}
	return ec
}

// RegionConfig returns the region configuration.
func (c *Config) RegionConfig() (region.Config, error) {
	rc := region.Config{
		Name:           c.Region.Name,
		GridX:          c.Region.GridX,
		GridY:          c.Region.GridY,
		WaterHeight:    c.Region.WaterHeight,
		DefaultHeight:  c.Terrain.DefaultHeight,
		PatchesPerSide: c.Terrain.PatchesPerSide,
		OpenAdmission:  c.Region.OpenAdmission,
	}
	var err error
	if c.Region.ID != "" {
		if rc.RegionID, err = uuid.Parse(c.Region.ID); err != nil {
			return rc, invalid("region.id", err.Error())
		}
	}
	if c.Region.Owner != "" {
		if rc.Owner, err = uuid.Parse(c.Region.Owner); err != nil {
			return rc, invalid("region.owner", err.Error())
		}
	}
	for _, n := range c.Region.Neighbors {
		addr, err := netip.ParseAddrPort(n.Address)
		if err != nil || !addr.Addr().Unmap().Is4() {
			return rc, invalid("region.neighbors", fmt.Sprintf("%q is not an IPv4 address and port", n.Address))
		}
		rc.Neighbors = append(rc.Neighbors, region.Neighbor{Handle: n.Handle, Addr: addr})
	}
	return rc, nil
}

// Agents returns the pre-registered agents.
func (c *Config) Agents() ([]region.Agent, error) {
	agents := make([]region.Agent, 0, len(c.Region.Agents))
	for i, a := range c.Region.Agents {
		agentID, err := uuid.Parse(a.AgentID)
		if err != nil {
			return nil, invalid(fmt.Sprintf("region.agents[%d].agent_id", i), err.Error())
		}
		sessionID, err := uuid.Parse(a.SessionID)
		if err != nil {
			return nil, invalid(fmt.Sprintf("region.agents[%d].session_id", i), err.Error())
		}
		agents = append(agents, region.Agent{
			Code:      a.Code,
			AgentID:   agentID,
			SessionID: sessionID,
			FirstName: a.FirstName,
			LastName:  a.LastName,
		})
	}
	return agents, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
