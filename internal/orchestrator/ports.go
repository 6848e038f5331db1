package orchestrator

// freePort returns the lowest port in [low, high] absent from occupied.
// It is a pure function; callers must hold the registry mutex so two
// concurrent creations cannot pick the same port.
func freePort(low, high int, occupied map[int]bool) (int, error) {
	for p := low; p <= high; p++ {
		if !occupied[p] {
			return p, nil
		}
	}
	return 0, portsExhaustedError{low: low, high: high}
}

// occupiedPorts snapshots the ports of all registered instances. Callers
// must hold o.mu.
func (o *Orchestrator) occupiedPorts() map[int]bool {
	occupied := make(map[int]bool, len(o.instances))
	for _, inst := range o.instances {
		occupied[inst.Port] = true
	}
	return occupied
}
