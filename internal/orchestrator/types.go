package orchestrator

import "github.com/google/uuid"

// EventKind identifies a lifecycle transition of one instance.
type EventKind string

const (
	EventOnline            EventKind = "online"
	EventOffline           EventKind = "offline"
	EventStopped           EventKind = "stopped"
	EventShutdownScheduled EventKind = "shutdown-scheduled"
)

// Event is a single lifecycle notification. Events are immutable once
// published and are never persisted; they exist only as live notifications.
type Event struct {
	ServerID uuid.UUID
	Kind     EventKind
	// Data carries the externally visible "host:port" address for online
	// events and is empty otherwise.
	Data string
}

// Instance is one ephemeral game server under management.
//
// An Instance is present in the registry iff its process is believed alive
// and Conn is valid for sending commands. The instance directory is owned
// exclusively by the instance until the reaper removes it.
type Instance struct {
	ID      uuid.UUID
	Port    int
	Dir     string
	MapPath string
	Conn    *EconConn
}

// Outcome distinguishes the terminal states of a successful operation.
type Outcome int

const (
	// OutcomeNoop means nothing was done (e.g. settings update for an
	// instance that does not exist).
	OutcomeNoop Outcome = iota
	// OutcomeAccepted means an existing instance took the change.
	OutcomeAccepted
	// OutcomeCreated means a new instance was launched.
	OutcomeCreated
)
