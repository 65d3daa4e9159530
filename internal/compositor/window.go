package compositor

import (
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/terminal"
	"github.com/andyrewlee/amux/internal/windowproto"
)

// NewSurface registers a freshly mapped external window, inserting it
// into the column at the focused position exactly like a spawned
// terminal (core spec §4.5). command is the process the bridge launched
// to produce this window, kept for QueryWindows reporting.
func (c *Compositor) NewSurface(command string, initial windowproto.Size) surfaceID {
	c.nextSurfaceID++
	id := c.nextSurfaceID
	s := &surface{
		id:      id,
		window:  windowproto.New(initial),
		command: command,
	}
	c.surfaces[id] = s
	c.col.AddTerminal(cellFromSurfaceID(id), initial.Height+windowproto.TitleBarHeight)
	return id
}

// CloseSurface marks a surface's window as closed; step 14 reaps it (and
// any output terminal it captured) on the next frame.
func (c *Compositor) CloseSurface(id surfaceID) {
	if s, ok := c.surfaces[id]; ok {
		s.closed = true
	}
}

// AttachOutputTerminal links a captured stdout/stderr terminal to a
// surface, so step 13 can promote it into its own cell once it produces
// meaningful content.
func (c *Compositor) AttachOutputTerminal(id surfaceID, outputID terminal.ID) {
	if s, ok := c.surfaces[id]; ok {
		s.outputID = outputID
		if term, ok := c.mgr.Get(outputID); ok {
			s.outputTerm = term
		}
	}
}

// surfaceForCell resolves a CellID back to its surface, if any.
func (c *Compositor) surfaceForCell(id column.CellID) (*surface, bool) {
	if id.Kind != column.CellSurface {
		return nil, false
	}
	s, ok := c.surfaces[surfaceID(id.ID)]
	return s, ok
}
