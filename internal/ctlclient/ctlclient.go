// Package ctlclient is the sibling CLI's connection to a running
// compositor's control socket (core spec §6). It speaks the same
// line-framed JSON protocol internal/ipc decodes on the server side.
package ctlclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/andyrewlee/amux/internal/ipc"
)

// dialTimeout bounds how long a CLI invocation waits for the compositor
// to accept the connection before giving up.
const dialTimeout = 2 * time.Second

type envelope struct {
	Kind       ipc.RequestKind   `json:"kind"`
	Command    string            `json:"command,omitempty"`
	Cwd        string            `json:"cwd,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Foreground *bool             `json:"foreground,omitempty"`
	Mode       string            `json:"mode,omitempty"`
}

// SocketPath resolves the control socket to dial: the TERMSTACK_SOCKET
// env var a running compositor exports to its children, falling back to
// the caller-supplied default for invocations outside that process tree.
func SocketPath(fallback string) string {
	if p := os.Getenv(ipc.SocketEnvVar); p != "" {
		return p
	}
	return fallback
}

// Spawn fires a fire-and-forget request for a new terminal running
// command in cwd. foreground hides the currently focused terminal while
// command runs, per core spec §6.
func Spawn(socketPath, command, cwd string, env map[string]string, foreground bool) error {
	return send(socketPath, envelope{
		Kind:       ipc.KindSpawn,
		Command:    command,
		Cwd:        cwd,
		Env:        env,
		Foreground: &foreground,
	})
}

// Resize blocks until the compositor acknowledges applying mode
// ("full" or "content") to the focused terminal.
func Resize(socketPath, mode string) (ipc.Response, error) {
	return request(socketPath, envelope{Kind: ipc.KindResize, Mode: mode})
}

// QueryWindows blocks until the compositor returns the current column's
// cells.
func QueryWindows(socketPath string) (ipc.Response, error) {
	return request(socketPath, envelope{Kind: ipc.KindQueryWindows})
}

func send(socketPath string, env envelope) error {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("ctlclient: connecting to %s: %w", socketPath, err)
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	return enc.Encode(env)
}

func request(socketPath string, env envelope) (ipc.Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return ipc.Response{}, fmt.Errorf("ctlclient: connecting to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(env); err != nil {
		return ipc.Response{}, fmt.Errorf("ctlclient: sending request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return ipc.Response{}, fmt.Errorf("ctlclient: reading response: %w", err)
		}
		return ipc.Response{}, fmt.Errorf("ctlclient: compositor closed connection without a response")
	}

	var resp ipc.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return ipc.Response{}, fmt.Errorf("ctlclient: decoding response: %w", err)
	}
	return resp, nil
}
