package compositor

import (
	"github.com/andyrewlee/amux/internal/clipboard"
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/keymap"
	"github.com/andyrewlee/amux/internal/logging"
)

// runAction carries out a compositor-level keybinding resolved by
// keymap.Match (core spec §4.6). Scroll actions mutate the column's
// pending scroll state, applied in Frame's step 5, exactly like a wheel
// event would.
func (c *Compositor) runAction(action keymap.Action) {
	switch action {
	case keymap.ActionQuit:
		c.running = false
	case keymap.ActionSpawn:
		// A new shell always starts in the compositor's own working
		// directory; terminal.Terminal doesn't track a live cwd past spawn
		// time for an existing one to inherit from.
		if _, err := c.spawnShell("", ""); err != nil {
			logging.Debug("spawn action failed: %v", err)
		}
	case keymap.ActionFocusNext:
		c.col.FocusNext()
		c.CancelKeyRepeat()
	case keymap.ActionFocusPrev:
		c.col.FocusPrev()
		c.CancelKeyRepeat()
	case keymap.ActionCopy:
		c.runCopy()
	case keymap.ActionPaste:
		c.clip.RequestPaste()
		c.pasteRequested = true
	case keymap.ActionScrollUp:
		c.col.Scroll(-scrollStepPx)
	case keymap.ActionScrollDown:
		c.col.Scroll(scrollStepPx)
	case keymap.ActionScrollTop:
		c.col.ScrollToTop()
	case keymap.ActionScrollBottom:
		c.col.ScrollToBottom()
	}
}

// scrollStepPx is how far one ScrollUp/ScrollDown keypress moves the
// viewport, in render units (16 terminal rows at the compositor's row
// height of 1).
const scrollStepPx = 16

func (c *Compositor) runCopy() {
	focused, ok := c.col.Focused()
	if !ok || focused.Kind != column.CellTerminal {
		return
	}
	term, ok := c.mgr.Get(termIDFromCell(focused))
	if !ok {
		return
	}
	text := term.SelectedText()
	if text == "" {
		return
	}
	if err := clipboard.Copy(text); err != nil {
		logging.Debug("copy action failed: %v", err)
	}
}
