package orchestrator

import "fmt"

// invalidMapError signals a rejected map filename for 400 mapping.
type invalidMapError struct{ msg string }

func (e invalidMapError) Error() string { return e.msg }

func errInvalidMap(msg string) error { return invalidMapError{msg: msg} }

// IsInvalidMap reports whether err indicates a rejected map upload.
func IsInvalidMap(err error) bool {
	_, ok := err.(invalidMapError)
	return ok
}

// portsExhaustedError signals that every port in the configured range is
// occupied, so the HTTP layer can return 503 Service Unavailable.
type portsExhaustedError struct{ low, high int }

func (e portsExhaustedError) Error() string {
	return fmt.Sprintf("could not start the server: all ports in range %d-%d are occupied", e.low, e.high)
}

// IsPortsExhausted reports whether err indicates port-range exhaustion.
func IsPortsExhausted(err error) bool {
	_, ok := err.(portsExhaustedError)
	return ok
}

// startupFailureError wraps the reason a spawned server never became ready.
type startupFailureError struct{ err error }

func (e startupFailureError) Error() string {
	return "server process failed to start: " + e.err.Error()
}

func (e startupFailureError) Unwrap() error { return e.err }

func errStartupFailure(err error) error { return startupFailureError{err: err} }

// IsStartupFailure reports whether err indicates the spawned process never
// signaled readiness.
func IsStartupFailure(err error) bool {
	_, ok := err.(startupFailureError)
	return ok
}
