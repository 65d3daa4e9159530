package compositor

import (
	"github.com/andyrewlee/amux/internal/terminal"
	"github.com/andyrewlee/amux/internal/windowproto"
)

// surfaceID is the compositor-local identity for an external window,
// distinct from terminal.ID (core spec §3: a cell is either a terminal or
// a surface, never both at once, though a surface can later be "promoted"
// to stand beside a separate output terminal — see step 13 in frame.go).
type surfaceID uint64

// surface is one external window tracked by the compositor: its
// configure/commit lifecycle (windowproto.Window) plus the bookkeeping
// needed to promote captured stdout/stderr into a standalone cell once it
// produces meaningful content, or to discard it when the window closes
// first (core spec §4.7 step 13-14).
type surface struct {
	id      surfaceID
	window  *windowproto.Window
	command string

	// outputTerm captures a graphical app's stdout/stderr while its window
	// is the visual proxy. As soon as outputTerm holds meaningful content
	// it is promoted to its own cell; if the window closes before that,
	// it is discarded along with the window (core spec §4.7 step 13-14).
	outputTerm *terminal.Terminal
	outputID   terminal.ID
	promoted   bool
	closed     bool
}
