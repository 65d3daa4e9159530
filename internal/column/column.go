// Package column implements the single vertically scrollable column of
// cells (terminals and external windows) the compositor arranges: layout
// caching, focus-by-identity, scroll clamping, hit-testing, and resize
// handles. See core spec §4.4.
package column

import (
	"github.com/andyrewlee/amux/internal/coords"
)

// CellKind distinguishes the two kinds of identity a cell can carry.
type CellKind int

const (
	CellTerminal CellKind = iota
	CellSurface
)

// CellID is the identity of one column entry: a TerminalId or an external
// surface id, never a bare index — indexes are derived, never cached
// across structural mutations (see core spec §9 design note).
type CellID struct {
	Kind CellKind
	ID   uint64
}

// resizeHandleHeight is the pixel band at a cell's bottom edge (render
// coords) that counts as its resize handle.
const resizeHandleHeight = 4

// FocusIndicatorWidth is the left margin reserved for the focus
// indicator, used when converting popup screen coordinates to
// parent-local space (§4.5).
const FocusIndicatorWidth = 4

// node is one entry in the column. cachedHeight is the single source of
// truth for hit-testing — it is set once per recalculateLayout call and
// never re-derived from the underlying cell's live geometry, so a click
// always lands where the most recent frame actually drew.
type node struct {
	id           CellID
	cachedHeight int
	contentY     coords.ContentY // top of this cell in the content stack
	hidden       bool
}

// Column owns one vertically stacked, scrollable list of cells.
type Column struct {
	nodes       []*node
	focused     CellID
	hasFocus    bool
	scrollPx    int
	pendingScrollDelta int
	outputHeight int

	resizeDragID     *CellID
	resizeDragStartY int
	resizeDragHeight int
}

// New returns an empty column sized to the given output height (render
// pixels).
func New(outputHeight int) *Column {
	return &Column{outputHeight: outputHeight}
}

// SetOutputHeight updates the viewport height used for scroll clamping
// and hit-testing.
func (c *Column) SetOutputHeight(h int) {
	c.outputHeight = h
	c.clampScroll()
}

func indexOf(nodes []*node, id CellID) int {
	for i, n := range nodes {
		if n.id == id {
			return i
		}
	}
	return -1
}

// AddTerminal inserts id at the currently focused position, pushing the
// existing focused cell (and everything below it) down by one. Focus is
// retained on the previously focused cell by identity; only its index
// shifts. If nothing is focused yet, the new cell is appended and
// becomes focused.
func (c *Column) AddTerminal(id CellID, initialHeight int) {
	n := &node{id: id, cachedHeight: initialHeight}
	if !c.hasFocus {
		c.nodes = append(c.nodes, n)
		c.focused = id
		c.hasFocus = true
		c.RecalculateLayout()
		return
	}
	at := indexOf(c.nodes, c.focused)
	if at < 0 {
		c.nodes = append(c.nodes, n)
	} else {
		c.nodes = append(c.nodes, nil)
		copy(c.nodes[at+1:], c.nodes[at:])
		c.nodes[at] = n
	}
	// focused identity is unchanged; only its index moved.
	c.RecalculateLayout()
}

// Remove drops id from the column. If it was focused, focus moves to the
// next visible cell, falling back to the previous, falling back to
// unfocused if no visible cell remains.
func (c *Column) Remove(id CellID) {
	at := indexOf(c.nodes, id)
	if at < 0 {
		return
	}
	wasFocused := c.hasFocus && c.focused == id
	c.nodes = append(c.nodes[:at], c.nodes[at+1:]...)
	if wasFocused {
		c.hasFocus = false
		for i := at; i < len(c.nodes) && !c.hasFocus; i++ {
			if !c.nodes[i].hidden {
				c.focused = c.nodes[i].id
				c.hasFocus = true
			}
		}
		for i := at - 1; i >= 0 && !c.hasFocus; i-- {
			if !c.nodes[i].hidden {
				c.focused = c.nodes[i].id
				c.hasFocus = true
			}
		}
	}
	c.RecalculateLayout()
}

// SetHidden marks a cell hidden (skipped by focus nav and rendering) or
// visible again.
func (c *Column) SetHidden(id CellID, hidden bool) {
	if at := indexOf(c.nodes, id); at >= 0 {
		c.nodes[at].hidden = hidden
	}
}

// SetHeight updates a cell's cached height (called after a resize
// completes or content grows) and recomputes layout.
func (c *Column) SetHeight(id CellID, height int) {
	if at := indexOf(c.nodes, id); at >= 0 {
		c.nodes[at].cachedHeight = height
		c.RecalculateLayout()
	}
}

// Height returns a cell's cached height.
func (c *Column) Height(id CellID) (int, bool) {
	if at := indexOf(c.nodes, id); at >= 0 {
		return c.nodes[at].cachedHeight, true
	}
	return 0, false
}

// Hidden reports whether id is currently hidden (skipped by rendering,
// hit-testing, focus nav, and layout).
func (c *Column) Hidden(id CellID) bool {
	if at := indexOf(c.nodes, id); at >= 0 {
		return c.nodes[at].hidden
	}
	return false
}

// totalContentHeight sums every visible node's cached height; this is the
// content stack's total extent, used for scroll clamping. A hidden cell
// (e.g. a parent whose foreground child has taken over) contributes
// nothing, so the stack doesn't reserve space for it.
func (c *Column) totalContentHeight() int {
	total := 0
	for _, n := range c.nodes {
		if n.hidden {
			continue
		}
		total += n.cachedHeight
	}
	return total
}

// RecalculateLayout recomputes every cell's content_y from cached
// heights. This is the only moment cell positions are authoritative; all
// hit-testing and rendering reads these values, never re-derives from
// live cell geometry. Hidden cells are pinned to the content_y of
// whatever follows them rather than advancing y, so they never occupy
// column space; becoming visible again simply resumes the stack there.
func (c *Column) RecalculateLayout() {
	y := 0
	for _, n := range c.nodes {
		if n.hidden {
			n.contentY = coords.ContentY(y)
			continue
		}
		n.contentY = coords.ContentY(y)
		y += n.cachedHeight
	}
	c.clampScroll()
}

// MaxScroll returns the largest valid scroll offset: content height minus
// viewport height, floored at zero.
func (c *Column) MaxScroll() int {
	max := c.totalContentHeight() - c.outputHeight
	if max < 0 {
		return 0
	}
	return max
}

func (c *Column) clampScroll() {
	if c.scrollPx < 0 {
		c.scrollPx = 0
	}
	if max := c.MaxScroll(); c.scrollPx > max {
		c.scrollPx = max
	}
}

// Scroll accumulates delta into pending_scroll_delta; it is not applied
// until ApplyPendingScroll runs once per frame, preventing repeated
// layout recomputation during a wheel burst.
func (c *Column) Scroll(delta int) {
	c.pendingScrollDelta += delta
}

// ApplyPendingScroll applies and clears the accumulated scroll delta.
func (c *Column) ApplyPendingScroll() {
	if c.pendingScrollDelta == 0 {
		return
	}
	c.scrollPx += c.pendingScrollDelta
	c.pendingScrollDelta = 0
	c.clampScroll()
}

// ScrollOffset returns the current scroll offset in pixels from the top
// of the content stack.
func (c *Column) ScrollOffset() int { return c.scrollPx }

// ScrollToTop scrolls to the top of the content stack.
func (c *Column) ScrollToTop() { c.scrollPx = 0 }

// ScrollToBottom scrolls to the bottom of the content stack.
func (c *Column) ScrollToBottom() { c.scrollPx = c.MaxScroll() }

// ScrollToShowWindowBottom snaps the viewport so cell id's bottom edge is
// flush with the viewport bottom; a no-op if the cell's bottom is
// already within view.
func (c *Column) ScrollToShowWindowBottom(id CellID) {
	at := indexOf(c.nodes, id)
	if at < 0 {
		return
	}
	n := c.nodes[at]
	bottom := int(n.contentY) + n.cachedHeight
	if bottom-c.scrollPx <= c.outputHeight && bottom-c.scrollPx >= 0 {
		return
	}
	c.scrollPx = bottom - c.outputHeight
	c.clampScroll()
}

// renderSpan returns id's render-coordinate span for the current scroll
// offset and output height.
func (c *Column) renderSpan(n *node) coords.Span {
	top := coords.ContentToRender(int(n.contentY), 0, c.outputHeight, c.scrollPx)
	bottom := coords.ContentToRender(int(n.contentY)+n.cachedHeight, 0, c.outputHeight, c.scrollPx)
	return coords.Span{Bottom: bottom, Top: top}
}

// WindowAt returns the cell whose rendered span contains the given
// render-coordinate Y, or false if none does (e.g. in the scroll gutter).
func (c *Column) WindowAt(y coords.RenderY) (CellID, bool) {
	for _, n := range c.nodes {
		if n.hidden {
			continue
		}
		if c.renderSpan(n).Contains(y) {
			return n.id, true
		}
	}
	return CellID{}, false
}

// FindResizeHandleAt returns the cell whose bottom-edge resize handle (a
// resizeHandleHeight-pixel band in render coords) contains y.
func (c *Column) FindResizeHandleAt(y coords.RenderY) (CellID, bool) {
	for _, n := range c.nodes {
		if n.hidden {
			continue
		}
		span := c.renderSpan(n)
		handle := coords.Span{Bottom: span.Bottom, Top: span.Bottom + resizeHandleHeight}
		if handle.Contains(y) {
			return n.id, true
		}
	}
	return CellID{}, false
}

// Focused returns the currently focused cell identity.
func (c *Column) Focused() (CellID, bool) {
	return c.focused, c.hasFocus
}

// SetFocus sets the focused cell directly (e.g. from a click).
func (c *Column) SetFocus(id CellID) {
	if indexOf(c.nodes, id) >= 0 {
		c.focused = id
		c.hasFocus = true
	}
}

// FocusIndex returns the focused cell's current index, recomputed on
// demand rather than cached (see core spec §9).
func (c *Column) FocusIndex() (int, bool) {
	if !c.hasFocus {
		return 0, false
	}
	at := indexOf(c.nodes, c.focused)
	if at < 0 {
		return 0, false
	}
	return at, true
}

// FocusNext steps focus to the next visible cell, skipping hidden ones.
// If every other cell is hidden, focus does not move.
func (c *Column) FocusNext() {
	c.stepFocus(1)
}

// FocusPrev steps focus to the previous visible cell, skipping hidden
// ones. If every other cell is hidden, focus does not move.
func (c *Column) FocusPrev() {
	c.stepFocus(-1)
}

func (c *Column) stepFocus(dir int) {
	n := len(c.nodes)
	if n == 0 {
		return
	}
	at, ok := c.FocusIndex()
	if !ok {
		for i, nd := range c.nodes {
			if !nd.hidden {
				c.focused = nd.id
				c.hasFocus = true
				_ = i
				break
			}
		}
		return
	}
	for step := 1; step <= n; step++ {
		next := ((at+dir*step)%n + n) % n
		if !c.nodes[next].hidden {
			c.focused = c.nodes[next].id
			c.hasFocus = true
			return
		}
	}
	// every other cell is hidden (or only this one exists): don't move.
}

// ContentY returns a cell's top in content-stack coordinates.
func (c *Column) ContentY(id CellID) (coords.ContentY, bool) {
	if at := indexOf(c.nodes, id); at >= 0 {
		return c.nodes[at].contentY, true
	}
	return 0, false
}

// BeginResizeDrag starts a resize drag on id, snapping the starting
// height to the nearest multiple of rowHeight (for terminals, so the
// drag feels quantized to whole rows) so small jitters before the first
// move don't produce a fractional-row commit.
func (c *Column) BeginResizeDrag(id CellID, startScreenY int, rowHeight int) {
	h, ok := c.Height(id)
	if !ok {
		return
	}
	if rowHeight > 0 {
		h = ((h + rowHeight/2) / rowHeight) * rowHeight
	}
	idCopy := id
	c.resizeDragID = &idCopy
	c.resizeDragStartY = startScreenY
	c.resizeDragHeight = h
}

// UpdateResizeDrag applies a pointer delta to the in-flight drag's
// cell height and re-derives layout. Returns the dragged cell id and new
// height, or ok=false if no drag is active.
func (c *Column) UpdateResizeDrag(currentScreenY int) (id CellID, height int, ok bool) {
	if c.resizeDragID == nil {
		return CellID{}, 0, false
	}
	delta := currentScreenY - c.resizeDragStartY
	h := c.resizeDragHeight + delta
	if h < 1 {
		h = 1
	}
	c.SetHeight(*c.resizeDragID, h)
	return *c.resizeDragID, h, true
}

// EndResizeDrag clears drag state (pointer release, or stale-drag
// cleanup when the frame observes zero buttons pressed).
func (c *Column) EndResizeDrag() {
	c.resizeDragID = nil
}

// ResizeDragActive reports whether a drag is in progress.
func (c *Column) ResizeDragActive() bool {
	return c.resizeDragID != nil
}

// Len returns the number of cells in the column, including hidden ones.
func (c *Column) Len() int { return len(c.nodes) }

// IDs returns cell identities in layout order.
func (c *Column) IDs() []CellID {
	out := make([]CellID, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.id
	}
	return out
}
