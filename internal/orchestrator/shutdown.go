package orchestrator

import (
	"context"
	"os"
)

// Shutdown tells every live instance to exit and clears the registry. The
// sequence is bounded and fire-and-forget: each child gets the shutdown
// command and loses its directory, but its actual exit is not awaited.
// A canceled ctx aborts the remaining instances.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, inst := range o.instances {
		if ctx.Err() != nil {
			o.log.Warn().Err(ctx.Err()).Int("remaining", len(o.instances)).Msg("shutdown sequence aborted")
			return
		}
		if err := inst.Conn.Shutdown(); err != nil {
			o.log.Error().Stringer("server", id).Err(err).Msg("sending shutdown command")
		}
		_ = inst.Conn.Close()
		if err := os.RemoveAll(inst.Dir); err != nil {
			o.log.Error().Stringer("server", id).Err(err).Msg("removing instance directory")
		}
		delete(o.instances, id)
		o.bus.publish(Event{ServerID: id, Kind: EventStopped})
	}
}
