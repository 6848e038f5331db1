// Package orchestrator provisions and supervises ephemeral game-server
// processes. It is structured into small files by concern:
//
//   - orchestrator.go: core Orchestrator type, Config, constructor.
//   - types.go: Instance, Event, EventKind, Outcome.
//   - ports.go: lowest-free-port allocation within the configured range.
//   - escape.go: escaping of user strings interpolated into econ lines.
//   - econ.go: the loopback administration (econ) protocol client.
//   - launch.go: instance directory, config artifacts, spawn, readiness.
//   - createupdate.go: CreateOrUpdate and UpdateSettings entry points.
//   - lifecycle.go: per-instance exit reaper and idle-timeout scheduler.
//   - bus.go: bounded, drop-on-lag lifecycle event broadcast.
//   - shutdown.go: host-shutdown sequence over all live instances.
//   - errors.go: error types and helpers (IsInvalidMap, IsPortsExhausted,
//     IsStartupFailure).
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New, CreateOrUpdate, UpdateSettings, Subscribe,
// Shutdown, ActiveCount). Internal types are subject to change.
package orchestrator
