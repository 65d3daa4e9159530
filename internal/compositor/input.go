package compositor

import (
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/coords"
	"github.com/andyrewlee/amux/internal/keymap"
)

// InputKind distinguishes the events queued by the UI layer for the next
// Frame to drain and dispatch (core spec §4.7 step 4).
type InputKind int

const (
	InputKey InputKind = iota
	InputMouseDown
	InputMouseUp
	InputMouseDrag
	InputScroll
	InputProtocolCommit
	InputProtocolDecoration
)

// InputEvent is one queued input or client-protocol message. Only the
// fields relevant to Kind are read.
type InputEvent struct {
	Kind InputKind

	// Keyboard
	KeySym string

	// Pointer (screen coordinates, Y=0 at top)
	X, Y   int
	Button int

	// Scroll
	ScrollDelta int

	// Protocol messages target a specific surface.
	Surface    surfaceID
	Size       Size
	ClientSide bool
}

// Size mirrors windowproto.Size so input.go doesn't need to import it
// just for this one field; kept identical in shape for direct conversion.
type Size struct {
	Width, Height int
}

// QueueInput appends an input or protocol event to be drained on the next
// Frame call. Safe to call from the UI goroutine that owns the
// Compositor; the compositor itself is not safe for concurrent use.
func (c *Compositor) QueueInput(ev InputEvent) {
	c.inputQueue = append(c.inputQueue, ev)
}

// dispatchInput is step 4: drains queued keyboard/pointer events,
// dispatching each immediately, and accumulates scroll deltas into the
// column (applied in step 5). Protocol messages are left in a side queue
// for step 8, matching the spec's separation of input dispatch from
// client protocol dispatch.
func (c *Compositor) dispatchInput() {
	queue := c.inputQueue
	c.inputQueue = nil

	for _, ev := range queue {
		switch ev.Kind {
		case InputKey:
			c.dispatchKey(ev.KeySym)
		case InputMouseDown:
			c.dispatchMouseDown(ev.X, ev.Y, ev.Button)
		case InputMouseUp:
			c.dispatchMouseUp()
		case InputMouseDrag:
			c.dispatchMouseDrag(ev.Y)
		case InputScroll:
			c.col.Scroll(ev.ScrollDelta)
		case InputProtocolCommit, InputProtocolDecoration:
			c.protocolQueue = append(c.protocolQueue, ev)
		}
	}
}

func (c *Compositor) dispatchMouseDown(x, y, button int) {
	c.buttonsDown++
	ry := c.screenToRender(y)
	if id, ok := c.col.FindResizeHandleAt(ry); ok {
		c.col.BeginResizeDrag(id, y, c.rowHeightPx)
		c.dragging = true
		return
	}
	if id, ok := c.col.WindowAt(ry); ok {
		c.col.SetFocus(id)
		c.requestedFocus = &id
	}
}

func (c *Compositor) dispatchMouseDrag(y int) {
	if !c.dragging {
		return
	}
	c.col.UpdateResizeDrag(y)
}

func (c *Compositor) dispatchMouseUp() {
	if c.buttonsDown > 0 {
		c.buttonsDown--
	}
	if c.dragging {
		c.col.EndResizeDrag()
		c.dragging = false
	}
}

func (c *Compositor) screenToRender(y int) coords.RenderY {
	return coords.ScreenY(y).ToRender(c.viewportHeight)
}

// dispatchKey resolves a key symbol against the compositor keymap; if it
// matches no bound action, it is encoded to ANSI bytes and forwarded to
// the focused terminal's PTY (core spec §4.6).
func (c *Compositor) dispatchKey(keySym string) {
	if action, ok := c.km.Match(keySym); ok {
		c.runAction(action)
		return
	}
	focused, ok := c.col.Focused()
	if !ok || focused.Kind != column.CellTerminal {
		return
	}
	term, ok := c.mgr.Get(termIDFromCell(focused))
	if !ok {
		return
	}
	b := keymap.EncodeKey(keySym)
	if b == nil {
		return
	}
	_, _ = term.Write(b)
}
