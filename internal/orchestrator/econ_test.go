package orchestrator

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// econPeer reads newline-terminated commands from the far end of a pipe.
type econPeer struct {
	conn  net.Conn
	lines chan string
}

func newEconPeer(t *testing.T) (*EconConn, *econPeer) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	p := &econPeer{conn: server, lines: make(chan string, 32)}
	go func() {
		sc := bufio.NewScanner(server)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
		close(p.lines)
	}()
	return &EconConn{c: client}, p
}

func (p *econPeer) next(t *testing.T) string {
	t.Helper()
	select {
	case l := <-p.lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for econ line")
		return ""
	}
}

func TestEconConn_Commands(t *testing.T) {
	ec, peer := newEconPeer(t)

	if err := ec.UpdateSettings(`my "server"`, `pass\word`); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got, want := peer.next(t), `sv_name "my \"server\""`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := peer.next(t), `password "pass\\word"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := ec.ChangeMap("bar"); err != nil {
		t.Fatalf("ChangeMap: %v", err)
	}
	if got, want := peer.next(t), `change_map "bar"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := ec.HotReload(); err != nil {
		t.Fatalf("HotReload: %v", err)
	}
	if got, want := peer.next(t), "hot_reload"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := ec.ShutdownWhenEmpty(); err != nil {
		t.Fatalf("ShutdownWhenEmpty: %v", err)
	}
	if got, want := peer.next(t), "sv_shutdown_when_empty 1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := ec.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got, want := peer.next(t), "shutdown"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEconConn_InjectionStripped(t *testing.T) {
	ec, peer := newEconPeer(t)
	if err := ec.ChangeMap("inno\ncent\rshutdown"); err != nil {
		t.Fatalf("ChangeMap: %v", err)
	}
	// The embedded line breaks must not split into a second command.
	if got, want := peer.next(t), `change_map "innocentshutdown"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
