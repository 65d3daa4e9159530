// Package compositor orchestrates one frame of the terminal stack: it
// owns the terminal manager, the column layout, and every external
// window's protocol state, and drives them through the fixed 18-step
// order from core spec §4.7.
package compositor

import (
	"time"

	"github.com/andyrewlee/amux/internal/clipboard"
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/coords"
	"github.com/andyrewlee/amux/internal/ipc"
	"github.com/andyrewlee/amux/internal/keymap"
	"github.com/andyrewlee/amux/internal/logging"
	"github.com/andyrewlee/amux/internal/manager"
	"github.com/andyrewlee/amux/internal/perf"
	"github.com/andyrewlee/amux/internal/sizing"
	"github.com/andyrewlee/amux/internal/terminal"
	"github.com/andyrewlee/amux/internal/windowproto"
)

// Compositor holds every piece of state one frame touches: the terminal
// pool, the column layout, external-window protocol state, and the
// queues fed by the UI/input layer and the IPC server between frames.
type Compositor struct {
	cfg *config.Config
	km  keymap.KeyMap

	mgr *manager.Manager
	col *column.Column

	surfaces      map[surfaceID]*surface
	nextSurfaceID surfaceID

	ipcServer *ipc.Server
	clip      *clipboard.Worker

	inputQueue    []InputEvent
	protocolQueue []InputEvent

	viewportWidth  int
	viewportHeight int
	rowHeightPx    int

	buttonsDown    int
	dragging       bool
	requestedFocus *column.CellID

	keyRepeat *keyRepeatState

	initialTerminalPending bool
	running                bool

	pasteRequested bool
}

// keyRepeatState tracks an in-flight auto-repeating key press (core spec
// §4.6/§5: repeat cancels on release or focus change).
type keyRepeatState struct {
	keySym    string
	startedAt time.Time
	lastFired time.Time
}

// New creates a compositor with an empty pool, spawning the first
// terminal on the next frame (step 3).
func New(cfg *config.Config, clip *clipboard.Worker, ipcServer *ipc.Server) *Compositor {
	return &Compositor{
		cfg:                    cfg,
		km:                     keymap.New(cfg.Keybind),
		mgr:                    manager.New(),
		col:                    column.New(0),
		surfaces:               make(map[surfaceID]*surface),
		clip:                   clip,
		ipcServer:              ipcServer,
		rowHeightPx:            1,
		initialTerminalPending: true,
		running:                true,
	}
}

// SetViewport updates the compositor's output dimensions; honored at the
// top of the next Frame call (step 7).
func (c *Compositor) SetViewport(w, h int) {
	c.viewportWidth = w
	c.viewportHeight = h
}

// Running reports whether any cell remains; once false the caller should
// shut down (step 15).
func (c *Compositor) Running() bool { return c.running }

// RequestFocus queues a focus-change request (e.g. a keymap action or a
// tab click) honored in step 11.
func (c *Compositor) RequestFocus(id column.CellID) {
	c.requestedFocus = &id
}

// RequestPaste marks a clipboard paste as pending; processed in step 6.
func (c *Compositor) RequestPaste() {
	c.pasteRequested = true
}

// termIDFromCell converts a terminal-kind CellID to a terminal.ID.
func termIDFromCell(id column.CellID) terminal.ID {
	return terminal.ID(id.ID)
}

// cellFromTermID builds the CellID identifying a terminal.
func cellFromTermID(id terminal.ID) column.CellID {
	return column.CellID{Kind: column.CellTerminal, ID: uint64(id)}
}

// cellFromSurfaceID builds the CellID identifying an external surface.
func cellFromSurfaceID(id surfaceID) column.CellID {
	return column.CellID{Kind: column.CellSurface, ID: uint64(id)}
}

// Frame runs exactly one iteration of the 18-step order from core spec
// §4.7 and returns the resulting display list.
func (c *Compositor) Frame(now time.Time) FrameResult {
	defer perf.Time("frame")()
	perf.Count("frame.cells", int64(c.col.Len()))
	c.step01ClearStaleDrag()
	c.step02ReapStaleResizes(now)
	c.step03SpawnInitialTerminal()
	c.dispatchInput() // step 4
	c.col.ApplyPendingScroll() // step 5
	c.step06ProcessPaste()
	c.step07ApplyViewport()
	c.step08DispatchProtocol()
	c.step09HandleIPC()
	c.step10ApplyKeyRepeat(now)
	c.step11ApplyFocusChange()
	c.step12ProcessAllTerminals()
	c.step13PromoteOutputTerminals()
	c.step14CleanupClosedWindowOutputs()
	c.step15Cleanup()
	c.step16RecalculateLayout()
	return c.step17EmitDisplayList()
	// step 18 (present; frame-ready callbacks) is the caller's
	// responsibility once it has the display list in hand.
}

// step 1: a lost mouse-up (e.g. the pointer left the window) must not
// leave a drag stuck forever; if no button is currently down at the
// start of a frame, any drag is abandoned.
func (c *Compositor) step01ClearStaleDrag() {
	if c.buttonsDown == 0 && c.dragging {
		c.col.EndResizeDrag()
		c.dragging = false
	}
}

// step 2: external resizes that never got a matching commit fall back to
// their last known size so a hung client never blocks layout.
func (c *Compositor) step02ReapStaleResizes(now time.Time) {
	for _, s := range c.surfaces {
		if s.window.ReapStale(now) {
			logging.Debug("surface %d: pending resize timed out, reverting to %v", s.id, s.window.Committed)
		}
	}
}

// step 3: the compositor always starts with one interactive shell.
func (c *Compositor) step03SpawnInitialTerminal() {
	if !c.initialTerminalPending {
		return
	}
	c.initialTerminalPending = false
	c.spawnShell("", "")
}

// spawnShell spawns an interactive shell terminal and inserts it into the
// column at the currently focused position.
func (c *Compositor) spawnShell(cwd string, title string) (terminal.ID, error) {
	id, err := c.mgr.Spawn(terminal.Options{
		Cols:         c.cfg.PTY.DefaultCols,
		VisibleRows:  c.cfg.PTY.DefaultVisibleRows,
		Cwd:          cwd,
		Title:        title,
		ShowTitleBar: false,
		KeepOpen:     true,
	})
	if err != nil {
		logging.Error("spawn shell: %v", err)
		return 0, err
	}
	c.col.AddTerminal(cellFromTermID(id), c.cfg.PTY.DefaultVisibleRows)
	return id, nil
}

// step 6: deliver a completed async clipboard read to the focused
// terminal's PTY, if one was requested.
func (c *Compositor) step06ProcessPaste() {
	if !c.pasteRequested {
		return
	}
	result, ok := c.clip.PollResult()
	if !ok {
		return
	}
	c.pasteRequested = false
	if result.Err != nil {
		return
	}
	focused, ok := c.col.Focused()
	if !ok || focused.Kind != column.CellTerminal {
		return
	}
	if term, ok := c.mgr.Get(termIDFromCell(focused)); ok {
		_, _ = term.Write([]byte(result.Text))
	}
}

func (c *Compositor) step07ApplyViewport() {
	c.col.SetOutputHeight(c.viewportHeight)
}

// step 8: apply queued surface-commit / decoration-negotiation messages.
func (c *Compositor) step08DispatchProtocol() {
	queue := c.protocolQueue
	c.protocolQueue = nil
	for _, ev := range queue {
		s, ok := c.surfaces[ev.Surface]
		if !ok {
			logging.Debug("protocol message for unknown surface %d ignored", ev.Surface)
			continue
		}
		switch ev.Kind {
		case InputProtocolCommit:
			s.window.Commit(windowproto.Size{Width: ev.Size.Width, Height: ev.Size.Height})
		case InputProtocolDecoration:
			s.window.SetClientSideDecoration(ev.ClientSide)
		}
	}
}

// step 9: drain queued IPC requests (spawn, resize, builtin, query).
func (c *Compositor) step09HandleIPC() {
	if c.ipcServer == nil {
		return
	}
	for {
		select {
		case req := <-c.ipcServer.Requests():
			c.handleIPCRequest(req)
		default:
			return
		}
	}
}

func (c *Compositor) handleIPCRequest(req *ipc.Request) {
	switch req.Kind {
	case ipc.KindSpawn:
		// A GUI app's launcher terminal hides itself (both the Terminal and
		// its column cell, per core spec's child-hiding rule) and lets the
		// app's own window take over as the visual proxy once it maps.
		var parent *terminal.ID
		if req.Foreground {
			if focused, ok := c.col.Focused(); ok && focused.Kind == column.CellTerminal {
				id := termIDFromCell(focused)
				parent = &id
			}
		}
		_, err := c.mgr.SpawnCommand(terminal.Options{
			Cols:        c.cfg.PTY.DefaultCols,
			VisibleRows: c.cfg.PTY.DefaultVisibleRows,
			Command:     req.Command,
			Cwd:         req.Cwd,
			Env:         flattenEnv(req.Env),
		}, parent)
		if err != nil {
			logging.Debug("ipc spawn failed: %v", err)
		} else if parent != nil {
			c.col.SetHidden(cellFromTermID(*parent), true)
		}
		// Spawn is fire-and-forget; no reply is expected.
	case ipc.KindResize:
		c.applyRequestedResize(req.Mode)
		req.Respond(ipc.Response{OK: true})
	case ipc.KindBuiltin:
		logging.Debug("builtin command reported: success=%v result=%q", req.Success, req.Result)
	case ipc.KindQueryWindows:
		req.Respond(ipc.Response{OK: true, Windows: c.queryWindows()})
	}
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// applyRequestedResize handles the IPC Resize request's two modes: "full"
// grows the focused terminal to fill the viewport; "content" shrinks it
// back to its last content-driven height.
func (c *Compositor) applyRequestedResize(mode string) {
	focused, ok := c.col.Focused()
	if !ok || focused.Kind != column.CellTerminal {
		return
	}
	term, ok := c.mgr.Get(termIDFromCell(focused))
	if !ok {
		return
	}
	switch mode {
	case "full":
		term.SetManuallySized(true)
		c.mgr.GrowTerminal(termIDFromCell(focused), c.viewportHeight, c.viewportHeight)
	case "content":
		term.SetManuallySized(false)
		c.mgr.GrowTerminal(termIDFromCell(focused), term.LastContentLine()+1, c.viewportHeight)
	}
}

func (c *Compositor) queryWindows() []ipc.WindowInfo {
	var out []ipc.WindowInfo
	for i, id := range c.col.IDs() {
		height, _ := c.col.Height(id)
		info := ipc.WindowInfo{Index: i, Width: c.viewportWidth, Height: height}
		switch id.Kind {
		case column.CellTerminal:
			if term, ok := c.mgr.Get(termIDFromCell(id)); ok {
				info.Command = term.Command()
			}
		case column.CellSurface:
			info.IsExternal = true
			if s, ok := c.surfaces[surfaceID(id.ID)]; ok {
				info.Command = s.command
			}
		}
		out = append(out, info)
	}
	return out
}

// step 10: while a key is held, re-send it at RepeatIntervalMs once
// RepeatDelayMs has elapsed, until release or focus change cancels it.
func (c *Compositor) step10ApplyKeyRepeat(now time.Time) {
	rep := c.keyRepeat
	if rep == nil {
		return
	}
	if now.Sub(rep.startedAt) < time.Duration(keymap.RepeatDelayMs)*time.Millisecond {
		return
	}
	if now.Sub(rep.lastFired) < time.Duration(keymap.RepeatIntervalMs)*time.Millisecond {
		return
	}
	rep.lastFired = now
	c.dispatchKey(rep.keySym)
}

// StartKeyRepeat begins auto-repeat tracking for a held key.
func (c *Compositor) StartKeyRepeat(keySym string, now time.Time) {
	c.keyRepeat = &keyRepeatState{keySym: keySym, startedAt: now, lastFired: now}
}

// CancelKeyRepeat stops auto-repeat (key release or focus change).
func (c *Compositor) CancelKeyRepeat() {
	c.keyRepeat = nil
}

// step 11: apply a pending focus-change request and scroll it into view
// if it landed off-screen.
func (c *Compositor) step11ApplyFocusChange() {
	if c.requestedFocus == nil {
		return
	}
	id := *c.requestedFocus
	c.requestedFocus = nil
	c.col.SetFocus(id)
	c.col.ScrollToShowWindowBottom(id)
}

// step 12: read PTY output from every terminal, and follow up on the
// sizing actions and alt-screen transitions it reports.
func (c *Compositor) step12ProcessAllTerminals() {
	actions := c.mgr.ProcessAll()
	for _, a := range actions {
		if a.Action.Kind == sizing.ActionNone {
			continue
		}
		maxRows := c.viewportHeight
		c.mgr.GrowTerminal(a.ID, a.Action.TargetRows, maxRows)
	}

	altScreenIDs := c.mgr.CheckAltScreenResizeNeeded(c.viewportHeight)
	for _, id := range altScreenIDs {
		c.mgr.GrowTerminal(id, c.viewportHeight, c.viewportHeight)
	}
}

// step 13: once a graphical app's captured output becomes non-empty, its
// window stops being the terminal's visual proxy: insert the output
// terminal as its own cell directly below the window.
func (c *Compositor) step13PromoteOutputTerminals() {
	for _, s := range c.surfaces {
		if s.promoted || s.outputTerm == nil {
			continue
		}
		if !s.outputTerm.HasMeaningfulContent() {
			continue
		}
		s.promoted = true
		parentCell := cellFromSurfaceID(s.id)
		c.col.SetFocus(parentCell)
		c.col.AddTerminal(cellFromTermID(s.outputID), c.cfg.PTY.DefaultVisibleRows)
	}
}

// step 14: when a window linked to an output terminal closes, drop the
// terminal if it never produced anything worth keeping; otherwise it was
// already promoted in step 13 and stands on its own.
func (c *Compositor) step14CleanupClosedWindowOutputs() {
	for id, s := range c.surfaces {
		if !s.closed || s.outputTerm == nil || s.promoted {
			continue
		}
		if !s.outputTerm.HasMeaningfulContent() {
			_ = s.outputTerm.Close()
			s.outputTerm = nil
		}
		c.col.Remove(cellFromSurfaceID(s.id))
		delete(c.surfaces, id)
	}
}

// step 15: reap dead terminals, restoring a parent's visibility/focus if
// its child just exited; if no cells remain the compositor should shut
// down.
func (c *Compositor) step15Cleanup() {
	result := c.mgr.Cleanup()
	for _, id := range result.DeadIDs {
		// Cleanup already dropped truly-discarded terminals from the
		// manager; a surviving Get here means keep_open kept it in the
		// pool (hidden) for later review, so just hide the cell rather
		// than dropping its layout identity.
		if _, ok := c.mgr.Get(id); ok {
			c.col.SetHidden(cellFromTermID(id), true)
			continue
		}
		c.col.Remove(cellFromTermID(id))
	}
	if result.FocusToRestore != nil {
		c.col.SetHidden(cellFromTermID(*result.FocusToRestore), false)
		c.col.SetFocus(cellFromTermID(*result.FocusToRestore))
	}
	if c.col.Len() == 0 && len(c.surfaces) == 0 {
		c.running = false
	}
}

// step 16: recompute every cell's height and re-lay-out the column. A
// terminal's height is its grid row count (growth-clamped to the
// viewport); an external window's is EffectiveSize().Height plus its
// title bar if server-decorated (core spec §4.4/§4.5).
func (c *Compositor) step16RecalculateLayout() {
	for _, id := range c.col.IDs() {
		switch id.Kind {
		case column.CellTerminal:
			if term, ok := c.mgr.Get(termIDFromCell(id)); ok {
				c.col.SetHeight(id, term.GridRows())
			}
		case column.CellSurface:
			if s, ok := c.surfaces[surfaceID(id.ID)]; ok {
				h := s.window.EffectiveSize().Height + s.window.ContentYOffset()
				c.col.SetHeight(id, h)
			}
		}
	}
	c.col.RecalculateLayout()
}

// DisplayEntry is one rendered cell's placement for this frame.
type DisplayEntry struct {
	Cell     column.CellID
	RenderY  coords.RenderY
	Height   int
	Focused  bool
	Title    string
	IsSurface bool
}

// PopupEntry positions an external popup surface relative to its parent.
type PopupEntry struct {
	Parent column.CellID
	ScreenX, ScreenY int
}

// FrameResult is the display list emitted by step 17: the ordered cells
// to draw plus any popup overlays.
type FrameResult struct {
	Entries []DisplayEntry
	Popups  []PopupEntry
	Running bool
}

// step 17: walk the column in layout order and emit each visible cell's
// placement, in render coordinates, plus popup overlays for any surface
// that has one attached.
func (c *Compositor) step17EmitDisplayList() FrameResult {
	focused, hasFocus := c.col.Focused()
	var entries []DisplayEntry
	for _, id := range c.col.IDs() {
		if c.col.Hidden(id) {
			continue
		}
		height, ok := c.col.Height(id)
		if !ok {
			continue
		}
		contentY, _ := c.col.ContentY(id)
		renderY := coords.ContentToRender(int(contentY), height, c.viewportHeight, c.col.ScrollOffset())
		entry := DisplayEntry{
			Cell:    id,
			RenderY: renderY,
			Height:  height,
			Focused: hasFocus && focused == id,
		}
		if id.Kind == column.CellSurface {
			entry.IsSurface = true
		}
		entries = append(entries, entry)
	}
	return FrameResult{Entries: entries, Running: c.running}
}
