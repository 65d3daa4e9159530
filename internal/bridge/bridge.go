// Package bridge manages the optional external X11/XWayland bridge
// process: launching it, watching a liveness file for crashes, and
// restarting it with exponential backoff (core spec §5, §7).
package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/logging"
	"github.com/andyrewlee/amux/internal/supervisor"
)

// ErrGaveUp describes a bridge that exceeded its rapid-crash budget, after
// which the compositor falls back to external-only mode. No function in
// this package returns it; GaveUp and OnGiveUp report that state.
var ErrGaveUp = fmt.Errorf("bridge: gave up after repeated rapid crashes")

// Bridge supervises a single external bridge process.
type Bridge struct {
	path        string
	args        []string
	livenessDir string
	cfg         config.BridgeConfig

	sup *supervisor.Supervisor

	mu         sync.Mutex
	crashTimes []time.Time
	gaveUp     bool
	onGiveUp   func()
}

// New creates a bridge supervisor for the binary at path. livenessDir, if
// non-empty, is watched with fsnotify and removals of the process's own
// socket/lock files are logged; restarts are driven only by the process
// exiting, not by the watcher.
func New(path string, args []string, livenessDir string, cfg config.BridgeConfig) *Bridge {
	return &Bridge{path: path, args: args, livenessDir: livenessDir, cfg: cfg}
}

// OnGiveUp registers a callback invoked once the bridge exceeds its
// rapid-crash budget and stops restarting.
func (b *Bridge) OnGiveUp(fn func()) {
	b.onGiveUp = fn
}

// Start launches the bridge process under supervision and returns
// immediately; the process runs until ctx is canceled or the bridge
// gives up.
func (b *Bridge) Start(ctx context.Context) {
	b.sup = supervisor.New(ctx)
	if b.livenessDir != "" {
		go b.watchLiveness(ctx)
	}
	b.sup.Start("bridge", b.runOnce,
		supervisor.WithRestartPolicy(supervisor.RestartOnError),
		supervisor.WithBackoff(time.Duration(b.cfg.RestartBackoffMs)*time.Millisecond),
		supervisor.WithMaxBackoff(time.Duration(b.cfg.RestartBackoffCapMs)*time.Millisecond),
	)
}

// Stop cancels the bridge's context and waits for its goroutine to exit.
func (b *Bridge) Stop() {
	if b.sup != nil {
		b.sup.Stop()
	}
}

// GaveUp reports whether the bridge exceeded its rapid-crash budget.
func (b *Bridge) GaveUp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gaveUp
}

// runOnce launches the bridge binary once and blocks until it exits. A
// non-nil error drives a restart (per RestartOnError); returning nil once
// the crash budget is exhausted tells the supervisor to stop trying.
func (b *Bridge) runOnce(ctx context.Context) error {
	if b.recordCrashAndMaybeGiveUp() {
		return nil
	}

	cmd := exec.CommandContext(ctx, b.path, b.args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("bridge: start failed: %w", err)
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bridge: exited: %w", err)
	}
	return fmt.Errorf("bridge: exited unexpectedly with status 0")
}

// recordCrashAndMaybeGiveUp records a restart attempt and reports whether
// the rapid-crash budget has been exceeded within the configured window.
func (b *Bridge) recordCrashAndMaybeGiveUp() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gaveUp {
		return true
	}

	now := time.Now()
	window := time.Duration(b.cfg.RapidCrashWindowMs) * time.Millisecond
	cutoff := now.Add(-window)
	kept := b.crashTimes[:0]
	for _, t := range b.crashTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.crashTimes = append(kept, now)

	if len(b.crashTimes) > b.cfg.MaxRapidCrashes {
		b.gaveUp = true
		logging.Error("bridge: %d crashes within %s, giving up and falling back to external-only mode",
			len(b.crashTimes), window)
		if b.onGiveUp != nil {
			go b.onGiveUp()
		}
		return true
	}
	return false
}

// watchLiveness logs unexpected removal of the bridge's liveness
// directory contents; it does not itself trigger restarts (cmd.Wait
// already does that) but surfaces crashes that leave stale sockets.
func (b *Bridge) watchLiveness(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("bridge: liveness watcher unavailable: %v", err)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := os.MkdirAll(b.livenessDir, 0o755); err != nil {
		logging.Warn("bridge: liveness dir unavailable: %v", err)
		return
	}
	if err := watcher.Add(b.livenessDir); err != nil {
		logging.Warn("bridge: could not watch liveness dir: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				logging.Debug("bridge: liveness file %s disappeared", filepath.Base(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Debug("bridge: liveness watcher error: %v", err)
		}
	}
}
