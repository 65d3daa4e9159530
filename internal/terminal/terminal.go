// Package terminal wraps one emulator grid, one PTY, and one sizing state
// machine behind a single behavioral API, per the core spec's terminal
// instance component. Nothing outside this package ever reads the
// emulator's geometry directly to decide a cell's height — only the
// column layer's cached render height is authoritative for that (see
// internal/column).
package terminal

import (
	"os"
	"sync"
	"time"

	"github.com/andyrewlee/amux/internal/logging"
	"github.com/andyrewlee/amux/internal/pty"
	"github.com/andyrewlee/amux/internal/sizing"
	"github.com/andyrewlee/amux/internal/vterm"
)

// PTYRowsLarge is the virtual row count presented to spawned shells in
// primary-screen mode so their own scrollback never eats lines the
// compositor could otherwise still reveal (see core spec §4.1).
const PTYRowsLarge = 1000

// ID is an opaque per-terminal identifier, allocated by the manager.
type ID uint64

// Terminal is one live shell or command: PTY + emulator + sizing FSM +
// lifecycle bookkeeping.
type Terminal struct {
	mu sync.Mutex

	id   ID
	pty  *pty.Terminal
	grid *vterm.VTerm
	size *sizing.Machine

	cols, ptyRows  int
	visibleRows    int
	viewportOffset int

	showTitleBar bool
	title        string

	exited             bool
	hasHadOutput       bool
	sawMeaningfulBytes bool
	visible            bool
	keepOpen           bool
	parent             *ID
	manuallySized      bool
	altScreenEnteredEdge bool

	command          string
	interactiveShell bool
	cwd              string

	// pendingActions buffers sizing.Action values produced synchronously
	// inside vterm event hooks (which have no return value of their own)
	// until ProcessPTY/Configure can hand them back to the caller.
	pendingActions []sizing.Action
}

// Options configures a new terminal.
type Options struct {
	Cols          int
	VisibleRows   int
	Command       string // empty => spawn the user's shell
	Cwd           string
	Env           []string
	ShowTitleBar  bool
	Title         string
	KeepOpen      bool
}

func shellCommand() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// New spawns a terminal per opts. When opts.Command is empty an
// interactive shell is spawned with pty_rows = PTYRowsLarge (the
// "new(cols, visible_rows)" operation of the core spec). When
// opts.Command is set, the PTY is sized rows=visible_rows cols=cols
// directly ("new_with_command"), matching the core spec's distinction
// between interactive shells (always get the large virtual PTY) and
// one-shot commands (get exactly what the cell currently shows, since
// commands don't need deep scrollback headroom from the start).
func New(id ID, opts Options) (*Terminal, error) {
	cols := opts.Cols
	if cols < 1 {
		cols = 80
	}
	visibleRows := opts.VisibleRows
	if visibleRows < 1 {
		visibleRows = 1
	}

	command := opts.Command
	interactiveShell := command == ""
	ptyRows := visibleRows
	if interactiveShell {
		command = shellCommand()
		ptyRows = PTYRowsLarge
	}

	p, err := pty.NewWithSize(command, opts.Cwd, opts.Env, uint16(ptyRows), uint16(cols))
	if err != nil {
		return nil, err
	}

	// The emulator grid always renders at the visible height, not the
	// large virtual PTY size: we parse the byte stream ourselves and let
	// vterm's own scrollback absorb overflow exactly like a normal small
	// terminal would. The large ptyRows value only affects what the
	// child process itself believes its window size is (TIOCGWINSZ),
	// which keeps output-shaping tools (pagers, banners) from assuming a
	// cramped terminal. See core spec §4.1.
	grid := vterm.New(cols, visibleRows)
	t := &Terminal{
		id:               id,
		pty:              p,
		grid:             grid,
		size:             sizing.New(visibleRows),
		cols:             cols,
		ptyRows:          ptyRows,
		visibleRows:      visibleRows,
		showTitleBar:     opts.ShowTitleBar,
		title:            opts.Title,
		visible:          true,
		keepOpen:         opts.KeepOpen,
		command:          command,
		interactiveShell: interactiveShell,
		cwd:              opts.Cwd,
	}
	grid.SetResponseWriter(func(b []byte) {
		_, _ = t.pty.Write(b)
	})
	grid.SetEventHooks(t.onLineAdvance, t.onAltScreenEnter, t.onAltScreenExit)
	return t, nil
}

// ID returns the terminal's identity.
func (t *Terminal) ID() ID { return t.id }

func (t *Terminal) onLineAdvance(count int) {
	// Called with t.mu held by process_pty; OnNewLine is cheap so we just
	// loop count times rather than threading a batched variant through
	// the FSM.
	for i := 0; i < count; i++ {
		t.pendingActions = append(t.pendingActions, t.size.OnNewLine())
	}
}

func (t *Terminal) onAltScreenEnter() {
	// Alt-screen content is never persistent; resync so primary-screen
	// line counting resumes cleanly when the app exits alt-screen.
	t.size.ResetContent()
	t.altScreenEnteredEdge = true
}

func (t *Terminal) onAltScreenExit() {
	t.size.ResetContent()
}

// ProcessPTY performs one non-blocking read from the PTY, feeds the bytes
// to the emulator, and returns any sizing actions produced plus the byte
// count read. It is the terminal's half of the manager's process_all.
func (t *Terminal) ProcessPTY() ([]sizing.Action, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 64*1024)
	n, err := t.pty.Read(buf)
	if n > 0 {
		t.hasHadOutput = true
		if !t.sawMeaningfulBytes && containsNonWhitespace(buf[:n]) {
			t.sawMeaningfulBytes = true
		}
		t.pendingActions = nil
		t.grid.Write(buf[:n])
		actions := t.pendingActions
		t.pendingActions = nil
		return actions, n, nil
	}
	return nil, 0, err
}

func containsNonWhitespace(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return true
		}
	}
	return false
}

// TakeAltScreenEnteredEdge reports whether this terminal has transitioned
// into alternate-screen mode since the last call, consuming the edge so it
// is reported exactly once per transition (core spec's
// check_alt_screen_resize_needed edge-triggering requirement).
func (t *Terminal) TakeAltScreenEnteredEdge() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	edge := t.altScreenEnteredEdge
	t.altScreenEnteredEdge = false
	return edge
}

// HasMeaningfulContent reports whether the PTY has ever produced
// non-whitespace bytes, the "meaningful content" test the manager uses to
// decide whether a dead terminal with no parent should be hidden instead
// of removed outright.
func (t *Terminal) HasMeaningfulContent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sawMeaningfulBytes
}

// DrainFinal performs a last non-blocking read after the child has exited,
// so output written between the process's final write and its reaping
// (stderr from a crash, for example) is not lost to the meaningful-content
// check. Safe to call repeatedly; returns once the PTY has nothing left.
func (t *Terminal) DrainFinal() {
	for {
		_, n, _ := t.ProcessPTY()
		if n <= 0 {
			return
		}
	}
}

// Write sends bytes to the child process. Input is silently dropped if
// the child has exited, matching the core spec's write-error policy.
func (t *Terminal) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exited {
		return 0, nil
	}
	n, err := t.pty.Write(b)
	if err != nil {
		logging.Debug("terminal %d write error: %v", t.id, err)
	}
	return n, err
}

// Configure forwards a resize instruction to the sizing FSM and, if it
// emits ApplyResize, resizes the emulator grid to match and the PTY too,
// except that an interactive shell in primary-screen mode keeps its PTY at
// PTYRowsLarge (the PTY-rows/grid-rows asymmetry of invariant 5).
func (t *Terminal) Configure(rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visibleRows = rows

	act := t.size.OnConfigure(rows)
	if act.Kind != sizing.ActionApplyResize {
		return
	}
	t.applyResizeLocked(act.Rows)
}

func (t *Terminal) applyResizeLocked(rows int) {
	// The emulator grid always tracks the visible row count so ordinary
	// line-feed output scrolls overflow into vterm's own scrollback just
	// like a real small terminal. Only the PTY side keeps the
	// alt-screen/primary-screen asymmetry from invariant 5: in alt-screen
	// mode the PTY must match rows exactly (full-screen apps address
	// rows directly), while in primary-screen mode the PTY keeps
	// presenting PTYRowsLarge regardless of the visible row count, so the
	// child's own scrollback is never truncated by what the user happens
	// to see.
	t.grid.Resize(t.cols, rows)
	wantPTYRows := rows
	if !t.grid.AltScreen && t.interactiveShell {
		wantPTYRows = PTYRowsLarge
	}
	if wantPTYRows != t.ptyRows {
		t.ptyRows = wantPTYRows
		if err := t.pty.SetSize(uint16(wantPTYRows), uint16(t.cols)); err != nil {
			logging.Debug("terminal %d resize pty error: %v", t.id, err)
		}
	}
	// ResizeComplete is driven synchronously: the PTY ioctl above is not
	// asynchronous from our perspective, so we can complete the FSM
	// transition immediately instead of waiting on a separate callback.
	completion := t.size.OnResizeComplete()
	if completion.Kind == sizing.ActionRequestGrowth {
		t.pendingActions = append(t.pendingActions, completion)
	}
}

// TakeGrowthActions drains any sizing actions produced by applyResizeLocked
// chaining (see Configure) that the caller (manager) still needs to act on.
func (t *Terminal) TakeGrowthActions() []sizing.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	actions := t.pendingActions
	t.pendingActions = nil
	return actions
}

// ForceAltScreenForTest sets the alt-screen flag directly and fires the
// same edge-tracking a real ESC[?1049h transition would, for tests that
// need to simulate alt-screen entry without driving a TUI app through the
// PTY byte stream.
func (t *Terminal) ForceAltScreenForTest(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.AltScreen = v
	if v {
		t.onAltScreenEnter()
	}
}

// IsAlternateScreen reports whether the emulator is currently showing an
// alternate-screen (full-screen TUI) buffer.
func (t *Terminal) IsAlternateScreen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.AltScreen
}

// PTYRows returns the row count currently presented to the child process.
func (t *Terminal) PTYRows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ptyRows
}

// GridRows returns the emulator grid's row count.
func (t *Terminal) GridRows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.Height
}

// CursorLine returns the cursor's row.
func (t *Terminal) CursorLine() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grid.CursorY
}

// LastContentLine returns the row of the last non-empty cell in the
// visible screen, which drives shrink-back after a command completes.
func (t *Terminal) LastContentLine() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for y := len(t.grid.Screen) - 1; y >= 0; y-- {
		for _, cell := range t.grid.Screen[y] {
			if cell.Rune != 0 && cell.Rune != ' ' {
				return y
			}
		}
	}
	return 0
}

// ScrollDisplay adjusts the viewport offset, clamped so the first visible
// row never scrolls above the emulator's row 0.
func (t *Terminal) ScrollDisplay(lines int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.ScrollView(lines)
}

// Render rasterizes into dst, a width x height grid of vterm.Cell,
// honoring the given cursor visibility and viewport offset.
func (t *Terminal) Render(dst [][]vterm.Cell, width, height int, showCursor bool, viewportOffset int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.RenderInto(dst, width, height, showCursor, viewportOffset)
}

// StartSelection begins a text selection at grid coordinates.
func (t *Terminal) StartSelection(col, line int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.SetSelection(col, line, col, line, true, false)
}

// UpdateSelection extends the active selection to grid coordinates.
func (t *Terminal) UpdateSelection(col, line int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.grid.SelActive() {
		return
	}
	t.grid.SetSelection(t.grid.SelStartX(), t.grid.SelStartY(), col, line, true, t.grid.SelActive())
}

// ClearSelection drops the active selection.
func (t *Terminal) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid.ClearSelection()
}

// SelectedText extracts the current selection's text, if any.
func (t *Terminal) SelectedText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.grid.SelActive() {
		return ""
	}
	return t.grid.GetSelectedText(t.grid.SelStartX(), t.grid.SelStartY(), t.grid.SelEndX(), t.grid.SelEndY())
}

// IsRunning reports whether the child process has not yet been reaped.
// As a side effect, on transition to not-running it marks the terminal
// exited, matching the core spec's is_running() contract.
func (t *Terminal) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	running := t.pty.Running()
	if !running {
		t.exited = true
	}
	return running
}

// Exited reports the cached exited flag without re-checking the process.
func (t *Terminal) Exited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exited
}

// HasHadOutput reports whether the PTY has ever produced readable bytes.
func (t *Terminal) HasHadOutput() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasHadOutput
}

// Visible reports whether this terminal should render/participate in
// focus navigation (false while a child command has hidden its parent).
func (t *Terminal) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// SetVisible sets the visibility flag.
func (t *Terminal) SetVisible(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = v
}

// KeepOpen reports whether the terminal should survive even after exit
// with no meaningful content (used for the interactive-shell top-level
// cells, never for ephemeral command terminals).
func (t *Terminal) KeepOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.keepOpen
}

// Parent returns the parent terminal id, if any.
func (t *Terminal) Parent() (ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.parent == nil {
		return 0, false
	}
	return *t.parent, true
}

// SetParent records the parent terminal id.
func (t *Terminal) SetParent(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parent = &id
}

// ManuallySized reports whether a user drag has pinned this terminal's
// height, suppressing further automatic growth.
func (t *Terminal) ManuallySized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.manuallySized
}

// SetManuallySized sets the sticky manual-size bit (see core spec §9 open
// question: we do not clear it automatically; a fresh spawn is the only
// way to get an automatically-growing terminal again).
func (t *Terminal) SetManuallySized(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manuallySized = v
}

// Title returns the adornment title.
func (t *Terminal) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// SetTitle updates the adornment title (e.g. from an OSC 0/2 sequence).
func (t *Terminal) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = title
}

// ShowTitleBar reports whether a title bar should be drawn above this cell.
func (t *Terminal) ShowTitleBar() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.showTitleBar
}

// Command returns the command string the terminal was spawned with.
func (t *Terminal) Command() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.command
}

// SizingState exposes the underlying sizing machine's state, for tests and
// diagnostics only; callers must not drive it directly.
func (t *Terminal) SizingState() sizing.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size.State()
}

// Close releases the PTY and its child process.
func (t *Terminal) Close() error {
	return t.pty.Close()
}

// CloseTimeout mirrors the teacher's terminalCloseTimeout constant,
// exported here so the manager's tests can reason about worst-case
// cleanup latency without importing the pty package's internals.
const CloseTimeout = 5 * time.Second
