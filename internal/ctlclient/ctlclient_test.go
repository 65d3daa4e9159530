package ctlclient

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/andyrewlee/amux/internal/ipc"
)

func TestSpawnIsFireAndForget(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := ipc.Listen(sock)
	if err != nil {
		t.Fatalf("ipc.Listen: %v", err)
	}
	defer srv.Close()

	if err := Spawn(sock, "bash -lc true", "/tmp", map[string]string{"FOO": "bar"}, true); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case req := <-srv.Requests():
		if req.Kind != ipc.KindSpawn || req.Command != "bash -lc true" || !req.Foreground {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Env["FOO"] != "bar" {
			t.Fatalf("expected env to round-trip, got %+v", req.Env)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the spawn request")
	}
}

func TestResizeRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := ipc.Listen(sock)
	if err != nil {
		t.Fatalf("ipc.Listen: %v", err)
	}
	defer srv.Close()

	go func() {
		req := <-srv.Requests()
		if req.Mode != "full" {
			t.Errorf("unexpected mode %q", req.Mode)
		}
		req.Respond(ipc.Response{OK: true})
	}()

	resp, err := Resize(sock, "full")
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected OK response, got %+v", resp)
	}
}

func TestQueryWindowsRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := ipc.Listen(sock)
	if err != nil {
		t.Fatalf("ipc.Listen: %v", err)
	}
	defer srv.Close()

	want := []ipc.WindowInfo{{Index: 0, Width: 80, Height: 24, Command: "bash"}}
	go func() {
		req := <-srv.Requests()
		req.Respond(ipc.Response{OK: true, Windows: want})
	}()

	resp, err := QueryWindows(sock)
	if err != nil {
		t.Fatalf("QueryWindows: %v", err)
	}
	if len(resp.Windows) != 1 || resp.Windows[0].Command != "bash" {
		t.Fatalf("unexpected windows: %+v", resp.Windows)
	}
}

func TestSocketPathPrefersEnvVar(t *testing.T) {
	t.Setenv(ipc.SocketEnvVar, "/tmp/from-env.sock")
	if got := SocketPath("/tmp/fallback.sock"); got != "/tmp/from-env.sock" {
		t.Fatalf("expected env var to win, got %q", got)
	}
}

func TestSocketPathFallsBackWithoutEnvVar(t *testing.T) {
	t.Setenv(ipc.SocketEnvVar, "")
	if got := SocketPath("/tmp/fallback.sock"); got != "/tmp/fallback.sock" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
