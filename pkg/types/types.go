// Package types holds the wire types shared by the HTTP API and its
// clients.
package types

// ErrorResponse is the JSON error payload returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Server-sent event names emitted on /server-events. The data payload of an
// online event is the externally visible "host:port" address; the other
// events carry no data.
const (
	EventOnline            = "online"
	EventOffline           = "offline"
	EventStopped           = "stopped"
	EventShutdownScheduled = "shutdown-scheduled"
)
