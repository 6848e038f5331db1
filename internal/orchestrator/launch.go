package orchestrator

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// readyMarker is the line fragment the game server prints once its econ
// endpoint accepts connections.
const readyMarker = "econ: bound to 127.0.0.1"

// safetySettings is appended verbatim to every generated autoexec.cfg. It
// enables test commands for players while gating gameplay abilities that
// could grief others behind elevated rcon access.
const safetySettings = `sv_motd "Use rcon password \"test\" or /practice for testing. Instead of \"super\" use \"invincible\" to toggle invincibility."
sv_test_cmds 1
sv_rescue 1
sv_rcon_helper_password "test"
sv_tele_others_auth_level 3
access_level totele 2
access_level totelecp 2
access_level tele 2
access_level addweapon 2
access_level removeweapon 2
access_level shotgun 2
access_level grenade 2
access_level laser 2
access_level rifle 2
access_level jetpack 2
access_level setjumps 2
access_level weapons 2
access_level unshotgun 2
access_level ungrenade 2
access_level unlaser 2
access_level unrifle 2
access_level unjetpack 2
access_level unweapons 2
access_level ninja 2
access_level unninja 2
access_level invincible 2
access_level endless_hook 2
access_level unendless_hook 2
access_level solo 2
access_level unsolo 2
access_level freeze 2
access_level unfreeze 2
access_level deep 2
access_level undeep 2
access_level livefreeze 2
access_level unlivefreeze 2
access_level left 2
access_level right 2
access_level up 2
access_level down 2
access_level move 2
access_level move_raw 2
`

// sanitizeMapFilename validates a caller-supplied map filename and returns
// it together with the map name (the filename without its extension). The
// name must be a bare filename; anything resembling a path is rejected.
func sanitizeMapFilename(name string) (filename, mapName string, err error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", "", errInvalidMap("not a valid map filename")
	}
	base, ok := strings.CutSuffix(name, ".map")
	if !ok || base == "" {
		return "", "", errInvalidMap("the filename must end with the .map extension")
	}
	return name, base, nil
}

// launch provisions the instance directory and artifacts, spawns the game
// binary, and performs the readiness handshake. On any failure the child
// (if started) is terminated and the directory removed; nothing is
// registered. The returned Cmd is handed to the caller's reaper.
func (o *Orchestrator) launch(id uuid.UUID, port int, mapFilename, mapName string, mapBytes []byte, name, password string) (*Instance, *exec.Cmd, error) {
	dir := filepath.Join(o.cfg.DataDir, id.String())
	mapPath := filepath.Join(dir, "maps", mapFilename)

	if err := o.writeArtifacts(dir, mapPath, port, mapName, mapBytes, name, password); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}

	cmd := exec.Command(o.cfg.ExecutablePath)
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, errStartupFailure(err)
	}
	o.log.Info().Stringer("server", id).Int("pid", cmd.Process.Pid).Int("port", port).Msg("spawned game server")

	if err := awaitReady(stdout, o.cfg.ReadyTimeout); err != nil {
		o.log.Error().Stringer("server", id).Err(err).Msg("readiness handshake failed")
		terminate(cmd)
		_ = os.RemoveAll(dir)
		return nil, nil, errStartupFailure(err)
	}

	conn, err := dialEcon(port, o.cfg.AdminPassword)
	if err != nil {
		o.log.Error().Stringer("server", id).Err(err).Msg("econ connect failed")
		terminate(cmd)
		_ = os.RemoveAll(dir)
		return nil, nil, errStartupFailure(err)
	}

	return &Instance{ID: id, Port: port, Dir: dir, MapPath: mapPath, Conn: conn}, cmd, nil
}

// writeArtifacts lays out the instance directory: the uploaded map, the
// storage-path directive, and the startup script the binary reads on boot.
func (o *Orchestrator) writeArtifacts(dir, mapPath string, port int, mapName string, mapBytes []byte, name, password string) error {
	if err := os.MkdirAll(filepath.Join(dir, "maps"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(mapPath, mapBytes, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "storage.cfg"), []byte("add_path $CURRENTDIR\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "autoexec.cfg"), o.autoexec(port, mapName, name, password), 0o644)
}

// autoexec renders the startup script in the binary's line-oriented
// `key "value"` format.
func (o *Orchestrator) autoexec(port int, mapName, name, password string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "sv_port %d\n", port)
	fmt.Fprintf(&b, "sv_map \"%s\"\n", escapeLine(mapName))
	fmt.Fprintf(&b, "sv_name \"%s\"\n", escapeLine(name))
	fmt.Fprintf(&b, "password \"%s\"\n", escapeLine(password))
	fmt.Fprintf(&b, "ec_port %d\n", port)
	b.WriteString("ec_bindaddr \"127.0.0.1\"\n")
	fmt.Fprintf(&b, "ec_password \"%s\"\n", escapeLine(o.cfg.AdminPassword))
	b.WriteString("ec_output_level -3\n") // keep the econ TCP buffer from running full
	b.WriteString(safetySettings)
	return b.Bytes()
}

// awaitReady scans the child's stdout for the readiness marker. It fails if
// the deadline elapses or the stream ends (the process exited) before the
// marker appears. After it returns, the spawned goroutine keeps draining
// stdout until process exit so the child can never block on a full pipe.
func awaitReady(stdout io.Reader, timeout time.Duration) error {
	type scanMsg struct {
		line string
		err  error
		eof  bool
	}
	done := make(chan struct{})
	defer close(done)
	msgs := make(chan scanMsg)
	go func() {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			select {
			case msgs <- scanMsg{line: sc.Text()}:
			case <-done:
				for sc.Scan() {
				}
				return
			}
		}
		select {
		case msgs <- scanMsg{err: sc.Err(), eof: true}:
		case <-done:
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case m := <-msgs:
			if m.eof {
				if m.err != nil {
					return fmt.Errorf("reading server output: %w", m.err)
				}
				return errors.New("the server process stopped unexpectedly")
			}
			if strings.Contains(m.line, readyMarker) {
				return nil
			}
		case <-deadline.C:
			return errors.New("timed out waiting for the server to become ready")
		}
	}
}

// terminate stops a child that never made it into the registry: SIGTERM
// first, escalating to SIGKILL after a grace period. The process is reaped
// here since no exit reaper exists for it yet.
func terminate(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}
