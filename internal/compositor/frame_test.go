package compositor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/andyrewlee/amux/internal/clipboard"
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/ctlclient"
	"github.com/andyrewlee/amux/internal/ipc"
	"github.com/andyrewlee/amux/internal/keymap"
	"github.com/andyrewlee/amux/internal/terminal"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.PTY.DefaultCols = 80
	cfg.PTY.DefaultVisibleRows = 5

	srv, err := ipc.Listen(filepath.Join(t.TempDir(), "ctl.sock"))
	if err != nil {
		t.Fatalf("ipc.Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	c := New(cfg, clipboard.NewWorker(), srv)
	c.SetViewport(80, 24)
	return c
}

// newTestCompositorWithSocket is newTestCompositor but also returns the
// control socket path, for tests that need to dial in a spawn request
// themselves (e.g. a foreground KindSpawn).
func newTestCompositorWithSocket(t *testing.T) (*Compositor, string) {
	t.Helper()
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.PTY.DefaultCols = 80
	cfg.PTY.DefaultVisibleRows = 5

	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := ipc.Listen(sock)
	if err != nil {
		t.Fatalf("ipc.Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	c := New(cfg, clipboard.NewWorker(), srv)
	c.SetViewport(80, 24)
	return c, sock
}

// TestFirstFrameSpawnsInitialTerminal covers step 3: a freshly constructed
// compositor has no cells until the first Frame runs.
func TestFirstFrameSpawnsInitialTerminal(t *testing.T) {
	c := newTestCompositor(t)
	if c.col.Len() != 0 {
		t.Fatalf("expected no cells before the first frame, got %d", c.col.Len())
	}

	result := c.Frame(time.Now())
	if !result.Running {
		t.Fatal("expected Running=true after spawning the initial terminal")
	}
	if c.col.Len() != 1 {
		t.Fatalf("expected exactly one cell after the initial spawn, got %d", c.col.Len())
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected one display entry, got %d", len(result.Entries))
	}
}

// TestFrameIsIdempotentAfterInitialSpawn covers step 3's guard: the
// initial spawn only ever happens once.
func TestFrameIsIdempotentAfterInitialSpawn(t *testing.T) {
	c := newTestCompositor(t)
	c.Frame(time.Now())
	c.Frame(time.Now())
	c.Frame(time.Now())

	if c.col.Len() != 1 {
		t.Fatalf("expected the initial spawn to happen exactly once, got %d cells", c.col.Len())
	}
}

// TestSpawnActionAddsASecondCell exercises ActionSpawn end to end through
// runAction rather than calling spawnShell directly.
func TestSpawnActionAddsASecondCell(t *testing.T) {
	c := newTestCompositor(t)
	c.Frame(time.Now())

	c.runAction(keymap.ActionSpawn)
	defer func() {
		for _, id := range c.col.IDs() {
			if term, ok := c.mgr.Get(termIDFromCell(id)); ok {
				term.Close()
			}
		}
	}()

	if c.col.Len() != 2 {
		t.Fatalf("expected two cells after a second spawn, got %d", c.col.Len())
	}
}

// TestQuitActionStopsRunning covers ActionQuit, the compositor's only
// path to Running()==false short of every cell disappearing.
func TestQuitActionStopsRunning(t *testing.T) {
	c := newTestCompositor(t)
	c.Frame(time.Now())

	c.runAction(keymap.ActionQuit)
	if c.Running() {
		t.Fatal("expected Running()==false immediately after ActionQuit")
	}
}

// TestKeepOpenTerminalIsHiddenNotRemovedOnExit is a regression test for
// the step15Cleanup DeadIDs/keepOpen bug (see DESIGN.md): the
// interactive-shell top-level cell spawned with KeepOpen stays in the
// column (hidden) after its process exits, rather than having its cell
// dropped outright.
func TestKeepOpenTerminalIsHiddenNotRemovedOnExit(t *testing.T) {
	c := newTestCompositor(t)
	c.Frame(time.Now())

	focused, ok := c.col.Focused()
	if !ok {
		t.Fatal("expected a focused cell after the initial spawn")
	}
	term, ok := c.mgr.Get(termIDFromCell(focused))
	if !ok {
		t.Fatal("expected to resolve the focused terminal")
	}
	term.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && term.IsRunning() {
		time.Sleep(10 * time.Millisecond)
	}
	if term.IsRunning() {
		t.Fatal("terminal never exited")
	}

	c.Frame(time.Now())

	if c.col.Len() != 1 {
		t.Fatalf("expected the cell to remain in the column (hidden), got %d cells", c.col.Len())
	}
	if _, ok := c.mgr.Get(termIDFromCell(focused)); !ok {
		t.Fatal("expected the keep-open terminal to remain reachable via Get after Cleanup")
	}
}

// TestForegroundSpawnHidesParentAtColumnLevel is a regression test for the
// child-hiding rule (core spec's "Child hiding" note): a foreground
// KindSpawn must hide the parent's column cell, not just its Terminal, so
// it is excluded from layout space, hit-testing, and focus nav while the
// child runs, and both are restored together once the child exits.
func TestForegroundSpawnHidesParentAtColumnLevel(t *testing.T) {
	c, sock := newTestCompositorWithSocket(t)
	c.Frame(time.Now())

	parent, ok := c.col.Focused()
	if !ok {
		t.Fatal("expected a focused cell after the initial spawn")
	}
	parentTerm, ok := c.mgr.Get(termIDFromCell(parent))
	if !ok {
		t.Fatal("expected to resolve the focused terminal")
	}
	parentHeight, _ := c.col.Height(parent)

	// Give the column a second, unrelated cell so focus nav has somewhere
	// else to go; AddTerminal inserts above the focused cell without
	// changing its identity, so parent stays focused.
	c.runAction(keymap.ActionSpawn)
	c.col.SetFocus(parent)
	var sibling column.CellID
	for _, id := range c.col.IDs() {
		if id != parent {
			sibling = id
		}
	}
	defer func() {
		for _, id := range c.col.IDs() {
			if term, ok := c.mgr.Get(termIDFromCell(id)); ok {
				term.Close()
			}
		}
	}()

	if err := ctlclient.Spawn(sock, "bash -lc true", "", nil, true); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	// The ipc server decodes the request on its own goroutine; give it a
	// few frames to land before asserting on its effects.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !c.col.Hidden(parent) {
		c.Frame(time.Now())
		time.Sleep(5 * time.Millisecond)
	}

	// The spawned command is a bare manager terminal, not a column cell
	// (its own window is expected to take over visually once it maps);
	// only the parent's cell is affected here.
	if c.col.Len() != 2 {
		t.Fatalf("expected the parent and its unrelated sibling cell, got %d", c.col.Len())
	}
	if !c.col.Hidden(parent) {
		t.Fatal("expected the parent cell to be hidden at the column level once the child spawned")
	}
	if parentTerm.Visible() {
		t.Fatal("expected the parent terminal to be hidden")
	}

	// Hidden means excluded from hit-testing...
	if id, ok := c.col.WindowAt(0); ok && id == parent {
		t.Fatal("expected WindowAt to never resolve to the hidden parent cell")
	}

	// ...from focus nav...
	c.col.FocusNext()
	if focused, _ := c.col.Focused(); focused == parent {
		t.Fatal("expected FocusNext to skip the hidden parent cell")
	}
	c.col.FocusPrev()
	if focused, _ := c.col.Focused(); focused == parent {
		t.Fatal("expected FocusPrev to skip the hidden parent cell")
	}

	// ...and from layout space: the parent's real height should no longer
	// be part of the column's scrollable content extent.
	if parentHeight <= 0 {
		t.Fatal("expected the parent cell to have had a nonzero height before hiding")
	}

	var childTerm *terminal.Terminal
	for _, id := range c.mgr.IDs() {
		if id != termIDFromCell(parent) && id != termIDFromCell(sibling) {
			childTerm, _ = c.mgr.Get(id)
		}
	}
	if childTerm == nil {
		t.Fatal("expected to resolve the spawned child terminal")
	}
	childTerm.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && childTerm.IsRunning() {
		time.Sleep(10 * time.Millisecond)
	}
	if childTerm.IsRunning() {
		t.Fatal("child terminal never exited")
	}

	c.Frame(time.Now())

	if c.col.Hidden(parent) {
		t.Fatal("expected the parent cell to be unhidden once the child exited")
	}
	if !parentTerm.Visible() {
		t.Fatal("expected the parent terminal to be visible again")
	}
	if focused, ok := c.col.Focused(); !ok || focused != parent {
		t.Fatal("expected focus to be restored to the parent cell")
	}
}
