// Package windowproto implements the external-window integration layer:
// the three-state configure/commit lifecycle mirroring a display-server
// handshake, decoration negotiation, and popup positioning math. See
// core spec §4.5.
package windowproto

import (
	"time"

	"github.com/google/uuid"
)

// StalePendingTimeout is how long a window may sit in PendingResize
// before the layout gives up waiting for a commit and falls back to the
// last committed size.
const StalePendingTimeout = 500 * time.Millisecond

// minConfigureInterval throttles configure sends during a resize drag so
// a fast pointer doesn't flood the client with more requests than it can
// possibly commit to, reinstating the rate limit the distilled core spec
// dropped (see DESIGN.md).
const minConfigureInterval = 16 * time.Millisecond

// Size is a width/height pair in pixels.
type Size struct {
	Width, Height int
}

// StateKind distinguishes the lifecycle states a window can be in.
type StateKind int

const (
	// StateActive means stable; Committed is what the client last
	// committed.
	StateActive StateKind = iota
	// StatePendingResize means a configure was sent and no commit has
	// arrived yet.
	StatePendingResize
	// StateAwaitingCommit is reserved for an advanced handshake variant;
	// treated identically to PendingResize for layout purposes.
	StateAwaitingCommit
)

// Window tracks one external surface's lifecycle state.
type Window struct {
	ID uuid.UUID

	Kind StateKind

	// Active
	Committed Size

	// PendingResize / AwaitingCommit
	Current      Size
	Requested    Size
	RequestSerial uint32
	RequestedAt  time.Time

	usesCSD bool
	csdSet  bool

	nextSerial uint32
}

// New creates a window starting Active at the given committed size.
func New(initial Size) *Window {
	return &Window{ID: uuid.New(), Kind: StateActive, Committed: initial}
}

// RequestResize begins a resize request: sets the pending target size,
// stamps a request serial and timestamp, and transitions to
// PendingResize. Returns the serial the caller should attach to the
// configure event it sends the client. Calls within minConfigureInterval
// of a still-pending request are coalesced: the pending target is
// updated in place without issuing a second serial.
func (w *Window) RequestResize(target Size, now time.Time) uint32 {
	if w.Kind != StateActive && now.Sub(w.RequestedAt) < minConfigureInterval {
		w.Requested = target
		return w.RequestSerial
	}
	w.nextSerial++
	serial := w.nextSerial

	current := w.Committed
	if w.Kind != StateActive {
		current = w.Current
	}

	w.Current = current
	w.Requested = target
	w.RequestSerial = serial
	w.RequestedAt = now
	w.Kind = StatePendingResize
	return serial
}

// Commit handles the client's next commit while a resize is pending (or
// while Active, a no-op size-preserving commit). If the committed size
// matches Requested, or differs from Current for any other reason (the
// client resized on its own initiative), the window becomes Active at
// the new size. Otherwise it remains pending — waiting for the matching
// commit, or for timeout recovery.
func (w *Window) Commit(committed Size) {
	switch w.Kind {
	case StateActive:
		w.Committed = committed
	case StatePendingResize, StateAwaitingCommit:
		if committed == w.Requested || committed != w.Current {
			w.Kind = StateActive
			w.Committed = committed
		}
	}
}

// ReapStale transitions a window stuck in PendingResize/AwaitingCommit
// back to Active at its last known Current size if more than
// StalePendingTimeout has elapsed since the request, so a hung or
// ignoring client never blocks layout indefinitely. Returns true if a
// transition happened.
func (w *Window) ReapStale(now time.Time) bool {
	if w.Kind == StateActive {
		return false
	}
	if now.Sub(w.RequestedAt) <= StalePendingTimeout {
		return false
	}
	w.Kind = StateActive
	w.Committed = w.Current
	return true
}

// EffectiveSize returns the size the layout should use this frame:
// Committed while Active, Current while a resize is in flight (the
// stale-pending fallback target).
func (w *Window) EffectiveSize() Size {
	if w.Kind == StateActive {
		return w.Committed
	}
	return w.Current
}

// SetClientSideDecoration records the client's decoration preference. If
// the client never calls this, UsesCSD defaults to false (server-side:
// we draw the title bar), matching the "prefer server-side" default from
// core spec §4.5.
func (w *Window) SetClientSideDecoration(csd bool) {
	w.usesCSD = csd
	w.csdSet = true
}

// UsesCSD reports whether the client requested client-side decorations.
func (w *Window) UsesCSD() bool { return w.usesCSD }

// DecorationNegotiated reports whether the client has expressed a
// decoration preference at all.
func (w *Window) DecorationNegotiated() bool { return w.csdSet }

// TitleBarHeight is the pixel height reserved above a server-decorated
// window's content.
const TitleBarHeight = 24

// ContentYOffset returns how far below the cell's top the client's
// surface content starts: TitleBarHeight if we're drawing the title bar
// (server-side decoration), zero if the client draws its own.
func (w *Window) ContentYOffset() int {
	if w.usesCSD {
		return 0
	}
	return TitleBarHeight
}

// PopupOffset is a popup's target rectangle in parent-local coordinates,
// as specified by the positioner.
type PopupOffset struct {
	X, Y int
}

// PopupScreenY computes a popup's screen-space top-left Y given the
// parent's content_y, the column's scroll offset, and the popup's
// parent-local Y offset — the formula from core spec §4.5 / scenario D,
// with the parent's screen Y clamped at zero:
// screen_y = max(0, parent_content_y - scroll_offset) + title_bar_offset + popup_offset_y.
func PopupScreenY(parentContentY, scrollOffset, titleBarOffset int, popup PopupOffset) int {
	parentScreenY := parentContentY - scrollOffset
	if parentScreenY < 0 {
		parentScreenY = 0
	}
	return parentScreenY + titleBarOffset + popup.Y
}

// ParentLocalViewportTop converts the screen top edge (Y=0) into
// parent-local coordinates, per core spec §4.5's popup-constraining
// math: screen top is at parent-local Y = -parent_screen_y.
func ParentLocalViewportTop(parentContentY, scrollOffset int) int {
	parentScreenY := parentContentY - scrollOffset
	if parentScreenY < 0 {
		parentScreenY = 0
	}
	return -parentScreenY
}

// ParentLocalViewportLeft converts the screen left edge (X=0) into
// parent-local coordinates: screen left is at parent-local X =
// -parent_screen_x, with parent_screen_x fixed at FocusIndicatorWidth.
func ParentLocalViewportLeft(focusIndicatorWidth int) int {
	return -focusIndicatorWidth
}
