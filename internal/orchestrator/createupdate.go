package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// CreateOrUpdate uploads a map for the given server id. If no instance
// exists, a port is allocated, the binary launched, and the instance
// registered (OutcomeCreated). If one exists, the map is swapped or
// hot-reloaded in place (OutcomeAccepted).
//
// The registry mutex is held for the whole operation, including the spawn
// and readiness handshake on the creation path (see Orchestrator).
func (o *Orchestrator) CreateOrUpdate(id uuid.UUID, mapFilename string, mapBytes []byte, name, password string) (Outcome, error) {
	filename, mapName, err := sanitizeMapFilename(mapFilename)
	if err != nil {
		return OutcomeNoop, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if inst, ok := o.instances[id]; ok {
		return o.swapMap(inst, filename, mapName, mapBytes)
	}

	port, err := freePort(o.cfg.PortLow, o.cfg.PortHigh, o.occupiedPorts())
	if err != nil {
		return OutcomeNoop, err
	}

	inst, cmd, err := o.launch(id, port, filename, mapName, mapBytes, name, password)
	if err != nil {
		return OutcomeNoop, err
	}
	o.instances[id] = inst
	o.bus.publish(Event{ServerID: id, Kind: EventOnline, Data: o.address(port)})
	o.log.Info().Stringer("server", id).Str("addr", o.address(port)).Msg("instance online")

	go o.reap(id, cmd, inst.Dir)
	go o.scheduleIdleShutdown(id)

	return OutcomeCreated, nil
}

// swapMap applies a map upload to a live instance. The same resolved
// filename means a hot reload in place; a new filename switches maps and
// drops the previous file. Callers must hold o.mu.
func (o *Orchestrator) swapMap(inst *Instance, filename, mapName string, mapBytes []byte) (Outcome, error) {
	mapPath := filepath.Join(inst.Dir, "maps", filename)
	if err := os.WriteFile(mapPath, mapBytes, 0o644); err != nil {
		return OutcomeNoop, err
	}

	if mapPath == inst.MapPath {
		if err := inst.Conn.HotReload(); err != nil {
			return OutcomeNoop, err
		}
		return OutcomeAccepted, nil
	}

	if err := inst.Conn.ChangeMap(mapName); err != nil {
		return OutcomeNoop, err
	}
	if err := os.Remove(inst.MapPath); err != nil {
		return OutcomeNoop, err
	}
	inst.MapPath = mapPath
	return OutcomeAccepted, nil
}

// UpdateSettings changes a live instance's display name and password.
// Returns OutcomeNoop without error when the instance does not exist.
func (o *Orchestrator) UpdateSettings(id uuid.UUID, name, password string) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[id]
	if !ok {
		return OutcomeNoop, nil
	}
	if err := inst.Conn.UpdateSettings(name, password); err != nil {
		return OutcomeNoop, err
	}
	return OutcomeAccepted, nil
}
