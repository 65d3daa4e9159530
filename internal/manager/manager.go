// Package manager owns the pool of live terminal instances: spawning,
// parent-child hiding, alt-screen auto-resize detection, and the cleanup
// pass that reaps dead children and restores focus. See core spec §4.3.
package manager

import (
	"errors"
	"sync"

	"github.com/andyrewlee/amux/internal/logging"
	"github.com/andyrewlee/amux/internal/safego"
	"github.com/andyrewlee/amux/internal/sizing"
	"github.com/andyrewlee/amux/internal/terminal"
)

// ErrParentInAltScreen is returned by SpawnCommand when the requested
// parent is running a full-screen TUI app; spawning a child would steal
// its PTY real estate out from under it.
var ErrParentInAltScreen = errors.New("manager: parent is in alternate-screen mode")

// Action pairs a terminal id with the sizing action process_all collected
// for it.
type Action struct {
	ID     terminal.ID
	Action sizing.Action
}

// CleanupResult is cleanup()'s return value.
type CleanupResult struct {
	DeadIDs        []terminal.ID
	FocusToRestore *terminal.ID
}

type entry struct {
	term     *terminal.Terminal
	hidden   bool
	keepOpen bool
}

// Manager owns TerminalId -> Terminal and the cross-terminal bookkeeping
// the core spec assigns to the terminal manager.
type Manager struct {
	mu      sync.Mutex
	nextID  terminal.ID
	entries map[terminal.ID]*entry
	order   []terminal.ID // insertion order, for deterministic iteration
}

// New returns an empty manager.
func New() *Manager {
	return &Manager{
		nextID:  1,
		entries: make(map[terminal.ID]*entry),
	}
}

func (m *Manager) allocID() terminal.ID {
	id := m.nextID
	m.nextID++
	return id
}

// Spawn starts an interactive shell terminal and returns its id.
func (m *Manager) Spawn(opts terminal.Options) (terminal.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.allocID()
	opts.Command = ""
	t, err := terminal.New(id, opts)
	if err != nil {
		return 0, err
	}
	m.entries[id] = &entry{term: t, keepOpen: opts.KeepOpen}
	m.order = append(m.order, id)
	return id, nil
}

// SpawnCommand starts a one-shot command terminal, optionally hiding a
// parent shell while it runs. If parent is in alternate-screen mode the
// spawn is rejected outright: a TUI app is running and losing its PTY
// would corrupt its draw state.
func (m *Manager) SpawnCommand(opts terminal.Options, parent *terminal.ID) (terminal.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parent != nil {
		pe, ok := m.entries[*parent]
		if !ok {
			return 0, errors.New("manager: unknown parent terminal")
		}
		if pe.term.IsAlternateScreen() {
			return 0, ErrParentInAltScreen
		}
	}

	id := m.allocID()
	t, err := terminal.New(id, opts)
	if err != nil {
		return 0, err
	}
	e := &entry{term: t, keepOpen: opts.KeepOpen}
	if parent != nil {
		t.SetParent(*parent)
		m.entries[*parent].term.SetVisible(false)
	}
	m.entries[id] = e
	m.order = append(m.order, id)
	return id, nil
}

// Get returns the terminal for id, if present.
func (m *Manager) Get(id terminal.ID) (*terminal.Terminal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.term, true
}

// IDs returns terminal ids in spawn order.
func (m *Manager) IDs() []terminal.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]terminal.ID, len(m.order))
	copy(out, m.order)
	return out
}

// ProcessAll calls ProcessPTY on every live terminal and collects the
// sizing actions produced, tagged with their owning id. PTY read errors
// are contained to the offending terminal per the core spec's failure
// semantics: they never abort the sweep.
func (m *Manager) ProcessAll() []Action {
	m.mu.Lock()
	ids := make([]terminal.ID, len(m.order))
	copy(ids, m.order)
	entries := make(map[terminal.ID]*entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	m.mu.Unlock()

	var out []Action
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			continue
		}
		actions, _, err := e.term.ProcessPTY()
		if err != nil {
			logging.Debug("terminal %d pty read error: %v", id, err)
			continue
		}
		for _, a := range actions {
			if a.Kind != sizing.ActionNone {
				out = append(out, Action{ID: id, Action: a})
			}
		}
	}
	return out
}

// GrowTerminal handles a RequestGrowth action: configure the terminal to
// min(targetRows, maxRowsInViewport).
func (m *Manager) GrowTerminal(id terminal.ID, targetRows, maxRowsInViewport int) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	rows := targetRows
	if rows > maxRowsInViewport {
		rows = maxRowsInViewport
	}
	e.term.Configure(rows)
}

// CheckAltScreenResizeNeeded reports, for each terminal that just entered
// alt-screen mode (edge-triggered — reported exactly once per transition)
// and is currently shorter than maxHeight, that it should be resized to
// full viewport height. The caller is expected to follow up with
// Configure/GrowTerminal at maxHeight.
func (m *Manager) CheckAltScreenResizeNeeded(maxHeight int) []terminal.ID {
	m.mu.Lock()
	ids := make([]terminal.ID, len(m.order))
	copy(ids, m.order)
	entries := make(map[terminal.ID]*entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	m.mu.Unlock()

	var out []terminal.ID
	for _, id := range ids {
		e, ok := entries[id]
		if !ok {
			continue
		}
		if e.term.TakeAltScreenEnteredEdge() && e.term.GridRows() < maxHeight {
			out = append(out, id)
		}
	}
	return out
}

// Cleanup reaps terminals whose child process has exited: terminals with
// a parent cause the parent to be unhidden and refocused; terminals with
// no meaningful content (after a final drain to catch late stderr) are
// hidden. Dead terminals with keep_open set stay in the pool; all others
// are closed and removed outright, whether or not they produced content.
func (m *Manager) Cleanup() CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result CleanupResult
	var survivors []terminal.ID

	for _, id := range m.order {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		if e.term.IsRunning() {
			survivors = append(survivors, id)
			continue
		}

		// The child may have written output (often stderr) between its
		// last scheduled PTY read and the kernel reaping it; drain once
		// more before judging whether it produced anything meaningful.
		e.term.DrainFinal()

		result.DeadIDs = append(result.DeadIDs, id)

		if parent, ok := e.term.Parent(); ok {
			if pe, exists := m.entries[parent]; exists {
				pe.term.SetVisible(true)
				restore := parent
				result.FocusToRestore = &restore
			}
		}

		if !e.term.HasMeaningfulContent() {
			e.term.SetVisible(false)
		}

		if e.keepOpen {
			// Survives in the pool (hidden if content-less) so the user
			// can still review a shell that exited; only dropped from
			// iteration order when the caller explicitly removes it.
			survivors = append(survivors, id)
			continue
		}

		safego.Run("manager.cleanup.close", func() {
			if err := e.term.Close(); err != nil {
				logging.Debug("terminal %d close error: %v", id, err)
			}
		})
		delete(m.entries, id)
	}

	m.order = survivors
	return result
}

// Count returns the number of terminals currently tracked (including
// hidden ones kept open).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
