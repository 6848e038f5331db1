package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultAdminPassword = "open sesame"
	defaultIdleTimeout   = 60 * time.Second
	defaultReadyTimeout  = time.Second
)

// Config encapsulates all tunables for Orchestrator construction. It is
// read-only after New.
type Config struct {
	// ExecutablePath is the game-server binary launched per instance.
	ExecutablePath string
	// PortLow and PortHigh bound the inclusive range instances bind to.
	PortLow  int
	PortHigh int
	// PublicAddress is the externally visible host published in online
	// events, e.g. "play.example.org".
	PublicAddress string
	// DataDir is the parent directory for per-instance directories.
	DataDir string
	// AdminPassword gates the econ control channel.
	AdminPassword string
	// IdleTimeout is the delay before a fresh instance is told to shut
	// down once empty of players.
	IdleTimeout time.Duration
	// ReadyTimeout bounds the readiness handshake after spawn.
	ReadyTimeout time.Duration
	Logger       zerolog.Logger
}

// Orchestrator owns every live instance on this host.
//
// A single mutex guards the whole registry, and the creation path holds it
// across the entire spawn and readiness handshake: only one request mutates
// instance state at a time. Considering the small number of concurrent
// users this is fine and it keeps the code simple.
type Orchestrator struct {
	cfg Config
	log zerolog.Logger
	bus *Bus

	mu        sync.Mutex
	instances map[uuid.UUID]*Instance
}

// New constructs an Orchestrator, applying defaults for unset fields.
func New(cfg Config) *Orchestrator {
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = defaultAdminPassword
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Orchestrator{
		cfg:       cfg,
		log:       cfg.Logger,
		bus:       newBus(),
		instances: make(map[uuid.UUID]*Instance),
	}
}

// ActiveCount reports the number of registered instances.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.instances)
}

// Subscribe returns a live, filtered event feed for one server id. The
// first event is synthetic and reflects the instance's current presence, so
// a caller cannot miss a transition that raced its subscription. The cancel
// func must be called when the caller is done.
func (o *Orchestrator) Subscribe(id uuid.UUID) (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := Event{ServerID: id, Kind: EventOffline}
	if inst, ok := o.instances[id]; ok {
		status = Event{ServerID: id, Kind: EventOnline, Data: o.address(inst.Port)}
	}
	return o.bus.subscribe(id, status)
}

// address renders the externally visible address for a given port.
func (o *Orchestrator) address(port int) string {
	return fmt.Sprintf("%s:%d", o.cfg.PublicAddress, port)
}
