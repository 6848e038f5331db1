package orchestrator

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// econRecorder plays the role of the game server's econ endpoint: it
// accepts loopback connections and records every line it receives.
type econRecorder struct {
	ln    net.Listener
	mu    sync.Mutex
	lines []string
}

func newEconRecorder(t *testing.T) *econRecorder {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &econRecorder{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				sc := bufio.NewScanner(c)
				for sc.Scan() {
					r.mu.Lock()
					r.lines = append(r.lines, sc.Text())
					r.mu.Unlock()
				}
			}()
		}
	}()
	return r
}

func (r *econRecorder) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *econRecorder) count(line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l == line {
			n++
		}
	}
	return n
}

func (r *econRecorder) waitFor(t *testing.T, line string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(line) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Fatalf("econ line %q never received; got %q", line, r.lines)
}

// writeFakeServer writes a stand-in game binary: it prints the readiness
// marker and then lives for the given number of seconds.
func writeFakeServer(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-server")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func fakeServerAlive(t *testing.T, seconds string) string {
	return writeFakeServer(t, "#!/bin/sh\necho 'econ: bound to 127.0.0.1'\nsleep "+seconds+"\n")
}

func newTestOrchestrator(t *testing.T, rec *econRecorder, exe string, idle time.Duration) *Orchestrator {
	t.Helper()
	return New(Config{
		ExecutablePath: exe,
		PortLow:        rec.port(),
		PortHigh:       rec.port(),
		PublicAddress:  "play.example.org",
		DataDir:        t.TempDir(),
		AdminPassword:  "open sesame",
		IdleTimeout:    idle,
		ReadyTimeout:   2 * time.Second,
		Logger:         zerolog.Nop(),
	})
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (o *Orchestrator) mapPathOf(id uuid.UUID) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if inst, ok := o.instances[id]; ok {
		return inst.MapPath
	}
	return ""
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake server script requires a POSIX shell")
	}
}

func TestCreateUpdateAndReap(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, fakeServerAlive(t, "5"), time.Hour)
	id := uuid.New()

	events, cancel := o.Subscribe(id)
	defer cancel()
	require.Equal(t, EventOffline, nextEvent(t, events).Kind)

	out, err := o.CreateOrUpdate(id, "foo.map", []byte("orig"), "my server", "secret")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, out)

	ev := nextEvent(t, events)
	assert.Equal(t, EventOnline, ev.Kind)
	assert.Equal(t, "play.example.org:"+strconv.Itoa(rec.port()), ev.Data)

	// The econ handshake authenticates and reduces verbosity.
	rec.waitFor(t, "open sesame")
	rec.waitFor(t, "stdout_output_level -3")

	dir := filepath.Dir(filepath.Dir(o.mapPathOf(id)))
	fooPath := filepath.Join(dir, "maps", "foo.map")
	assert.Equal(t, fooPath, o.mapPathOf(id))
	assert.FileExists(t, filepath.Join(dir, "storage.cfg"))
	assert.FileExists(t, filepath.Join(dir, "autoexec.cfg"))

	// Re-uploading the same filename hot-reloads in place.
	out, err = o.CreateOrUpdate(id, "foo.map", []byte("edited"), "my server", "secret")
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, out)
	rec.waitFor(t, "hot_reload")
	assert.Equal(t, fooPath, o.mapPathOf(id))
	b, err := os.ReadFile(fooPath)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(b))

	// A different filename switches maps and drops the old file.
	out, err = o.CreateOrUpdate(id, "bar.map", []byte("other"), "my server", "secret")
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, out)
	rec.waitFor(t, `change_map "bar"`)
	assert.Equal(t, filepath.Join(dir, "maps", "bar.map"), o.mapPathOf(id))
	assert.NoFileExists(t, fooPath)

	out, err = o.UpdateSettings(id, `renamed "x"`, "pw2")
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, out)
	rec.waitFor(t, `sv_name "renamed \"x\""`)
	rec.waitFor(t, `password "pw2"`)

	// The fake server exits on its own; the reaper must clean up.
	require.Equal(t, EventStopped, nextEvent(t, events).Kind)
	assert.Equal(t, 0, o.ActiveCount())
	assert.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return os.IsNotExist(err)
	}, 3*time.Second, 20*time.Millisecond, "instance directory not removed")
}

func TestPortExhaustion(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, fakeServerAlive(t, "3"), time.Hour)

	out, err := o.CreateOrUpdate(uuid.New(), "a.map", []byte("m"), "one", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, out)

	// The single-port range is now occupied.
	_, err = o.CreateOrUpdate(uuid.New(), "b.map", []byte("m"), "two", "")
	require.Error(t, err)
	assert.True(t, IsPortsExhausted(err), "got %v", err)
	assert.Equal(t, 1, o.ActiveCount())
}

func TestInvalidMapFilename(t *testing.T) {
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, "/nonexistent", time.Hour)
	for _, name := range []string{
		"",
		".",
		"..",
		"foo.txt",
		".map",
		"dir/foo.map",
		"../foo.map",
	} {
		_, err := o.CreateOrUpdate(uuid.New(), name, []byte("m"), "n", "")
		assert.True(t, IsInvalidMap(err), "filename %q: got %v", name, err)
	}
	assert.Equal(t, 0, o.ActiveCount())
}

func TestStartupFailure_NeverReady(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	exe := writeFakeServer(t, "#!/bin/sh\necho 'still loading'\nsleep 5\n")
	o := newTestOrchestrator(t, rec, exe, time.Hour)
	o.cfg.ReadyTimeout = 300 * time.Millisecond

	id := uuid.New()
	_, err := o.CreateOrUpdate(id, "foo.map", []byte("m"), "n", "")
	require.Error(t, err)
	assert.True(t, IsStartupFailure(err), "got %v", err)
	assert.Equal(t, 0, o.ActiveCount())
	assert.NoDirExists(t, filepath.Join(o.cfg.DataDir, id.String()))
}

func TestStartupFailure_ExitsEarly(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	exe := writeFakeServer(t, "#!/bin/sh\nexit 1\n")
	o := newTestOrchestrator(t, rec, exe, time.Hour)

	id := uuid.New()
	start := time.Now()
	_, err := o.CreateOrUpdate(id, "foo.map", []byte("m"), "n", "")
	require.Error(t, err)
	assert.True(t, IsStartupFailure(err), "got %v", err)
	// Early exit is detected well before the readiness deadline.
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, o.ActiveCount())
}

func TestIdleShutdownNudge(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, fakeServerAlive(t, "3"), 200*time.Millisecond)
	id := uuid.New()

	events, cancel := o.Subscribe(id)
	defer cancel()
	require.Equal(t, EventOffline, nextEvent(t, events).Kind)

	_, err := o.CreateOrUpdate(id, "foo.map", []byte("m"), "n", "")
	require.NoError(t, err)
	require.Equal(t, EventOnline, nextEvent(t, events).Kind)

	require.Equal(t, EventShutdownScheduled, nextEvent(t, events).Kind)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, rec.count("sv_shutdown_when_empty 1"), "exactly one nudge expected")
}

func TestIdleShutdownSkippedAfterExit(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, fakeServerAlive(t, "0.2"), 800*time.Millisecond)
	id := uuid.New()

	events, cancel := o.Subscribe(id)
	defer cancel()
	require.Equal(t, EventOffline, nextEvent(t, events).Kind)

	_, err := o.CreateOrUpdate(id, "foo.map", []byte("m"), "n", "")
	require.NoError(t, err)
	require.Equal(t, EventOnline, nextEvent(t, events).Kind)
	require.Equal(t, EventStopped, nextEvent(t, events).Kind)

	// The idle timer fires after removal and must do nothing.
	time.Sleep(time.Second)
	assert.Equal(t, 0, rec.count("sv_shutdown_when_empty 1"))
}

func TestSubscribeAbsentIsOffline(t *testing.T) {
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, "/nonexistent", time.Hour)

	events, cancel := o.Subscribe(uuid.New())
	defer cancel()
	require.Equal(t, EventOffline, nextEvent(t, events).Kind)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestUpdateSettingsNoopWhenAbsent(t *testing.T) {
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, "/nonexistent", time.Hour)
	out, err := o.UpdateSettings(uuid.New(), "n", "p")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)
}

func TestShutdownStopsEverything(t *testing.T) {
	requireUnix(t)
	rec := newEconRecorder(t)
	o := newTestOrchestrator(t, rec, fakeServerAlive(t, "3"), time.Hour)
	id := uuid.New()

	_, err := o.CreateOrUpdate(id, "foo.map", []byte("m"), "n", "")
	require.NoError(t, err)
	dir := filepath.Dir(filepath.Dir(o.mapPathOf(id)))

	events, cancel := o.Subscribe(id)
	defer cancel()
	require.Equal(t, EventOnline, nextEvent(t, events).Kind)

	o.Shutdown(context.Background())

	rec.waitFor(t, "shutdown")
	require.Equal(t, EventStopped, nextEvent(t, events).Kind)
	assert.Equal(t, 0, o.ActiveCount())
	assert.NoDirExists(t, dir)
}

