package orchestrator

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// EconConn is a write-only administration session to a running game server.
// The protocol is newline-delimited ASCII over loopback TCP: the first line
// authenticates, every later line is an independent command. Responses are
// never read; this is a fire-and-forget control channel.
//
// Access is serialized by the registry mutex; no two callers hold the same
// connection concurrently.
type EconConn struct {
	c net.Conn
}

// dialEcon connects to the econ endpoint on the loopback interface,
// authenticates, and turns down the server's stdout verbosity so the
// captured pipe cannot run full.
func dialEcon(port int, password string) (*EconConn, error) {
	c, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	ec := &EconConn{c: c}
	if err := ec.send(password, "stdout_output_level -3"); err != nil {
		_ = c.Close()
		return nil, err
	}
	return ec, nil
}

// send writes the given lines as a single newline-terminated batch.
func (ec *EconConn) send(lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	_, err := ec.c.Write([]byte(b.String()))
	return err
}

// UpdateSettings changes the server's display name and join password.
func (ec *EconConn) UpdateSettings(name, password string) error {
	return ec.send(
		fmt.Sprintf(`sv_name "%s"`, escapeLine(name)),
		fmt.Sprintf(`password "%s"`, escapeLine(password)),
	)
}

// ChangeMap switches the active map. The name carries no extension.
func (ec *EconConn) ChangeMap(mapName string) error {
	return ec.send(fmt.Sprintf(`change_map "%s"`, escapeLine(mapName)))
}

// HotReload reloads the currently loaded map in place.
func (ec *EconConn) HotReload() error {
	return ec.send("hot_reload")
}

// ShutdownWhenEmpty tells the server to exit once no players remain.
func (ec *EconConn) ShutdownWhenEmpty() error {
	return ec.send("sv_shutdown_when_empty 1")
}

// Shutdown tells the server to exit immediately.
func (ec *EconConn) Shutdown() error {
	return ec.send("shutdown")
}

func (ec *EconConn) Close() error {
	return ec.c.Close()
}
