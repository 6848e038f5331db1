package orchestrator

import (
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// reap blocks until the child exits, by any cause: shutdown command, crash,
// or self-initiated exit once empty. It then clears the registry entry and
// the instance directory. Errors are logged and never surfaced to any
// in-flight request.
func (o *Orchestrator) reap(id uuid.UUID, cmd *exec.Cmd, dir string) {
	waitErr := cmd.Wait()

	o.mu.Lock()
	if inst, ok := o.instances[id]; ok {
		_ = inst.Conn.Close()
		delete(o.instances, id)
		o.bus.publish(Event{ServerID: id, Kind: EventStopped})
	}
	o.mu.Unlock()

	o.log.Info().Stringer("server", id).AnErr("exit", waitErr).Msg("game server exited")
	if err := os.RemoveAll(dir); err != nil {
		o.log.Error().Stringer("server", id).Err(err).Msg("removing instance directory")
	}
}

// scheduleIdleShutdown nudges the server to exit once it has no players, a
// fixed delay after creation. Removal still flows through the reaper when
// the process actually exits. Fires at most once per instance.
func (o *Orchestrator) scheduleIdleShutdown(id uuid.UUID) {
	time.Sleep(o.cfg.IdleTimeout)

	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[id]
	if !ok {
		return
	}
	if err := inst.Conn.ShutdownWhenEmpty(); err != nil {
		o.log.Error().Stringer("server", id).Err(err).Msg("sending shutdown-when-empty")
		return
	}
	o.bus.publish(Event{ServerID: id, Kind: EventShutdownScheduled})
	o.log.Info().Stringer("server", id).Msg("idle shutdown scheduled")
}
