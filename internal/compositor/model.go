package compositor

import (
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/andyrewlee/amux/internal/clipboard"
	"github.com/andyrewlee/amux/internal/column"
	"github.com/andyrewlee/amux/internal/config"
	"github.com/andyrewlee/amux/internal/ipc"
	"github.com/andyrewlee/amux/internal/vterm"
	"github.com/andyrewlee/amux/internal/windowproto"
)

// frameInterval is the event-loop timeout from core spec §5: block only in
// dispatch, with a timeout chosen to maintain ~60 Hz when idle.
const frameInterval = 16 * time.Millisecond

// presentInterval is the minimum gap between two View renders (core spec
// §5's ~120 Hz present cap), tracked so a burst of input messages between
// two tick-driven frames doesn't force extra rasterization work.
const presentInterval = 8 * time.Millisecond

type tickMsg time.Time

// Model adapts a Compositor to the bubbletea v2 Model interface: it
// translates terminal UI messages into compositor InputEvents, drives one
// Frame per tick, and rasterizes the resulting display list through a
// Canvas.
type Model struct {
	comp        *Compositor
	canvas      *Canvas
	lastPresent time.Time
	lastFrame   FrameResult
}

// NewModel builds the bubbletea entry point for one compositor process.
func NewModel(cfg *config.Config, clip *clipboard.Worker, ipcServer *ipc.Server) *Model {
	return &Model{comp: New(cfg, clip, ipcServer), canvas: NewCanvas(1, 1)}
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the frame clock.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// Update translates one terminal UI message into a queued InputEvent (or a
// viewport/quit transition) and, on each tick, runs exactly one Frame.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.comp.SetViewport(msg.Width, msg.Height)
		m.canvas.Resize(msg.Width, msg.Height)

	case tea.KeyPressMsg:
		m.comp.QueueInput(InputEvent{Kind: InputKey, KeySym: msg.String()})

	case tea.MouseClickMsg:
		m.comp.QueueInput(InputEvent{Kind: InputMouseDown, X: msg.X, Y: msg.Y, Button: int(msg.Button)})

	case tea.MouseReleaseMsg:
		m.comp.QueueInput(InputEvent{Kind: InputMouseUp})

	case tea.MouseMotionMsg:
		m.comp.QueueInput(InputEvent{Kind: InputMouseDrag, Y: msg.Y})

	case tea.MouseWheelMsg:
		delta := scrollStepPx
		if msg.Button == tea.MouseWheelUp {
			delta = -scrollStepPx
		}
		m.comp.QueueInput(InputEvent{Kind: InputScroll, ScrollDelta: delta})

	case tickMsg:
		result := m.comp.Frame(time.Time(msg))
		m.lastFrame = result
		if !m.comp.Running() {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

// View rasterizes the last computed display list, throttled to
// presentInterval so a rapid burst of ticks never re-renders faster than
// core spec §5's ~120 Hz present cap.
func (m *Model) View() string {
	now := time.Now()
	if !m.lastPresent.IsZero() && now.Sub(m.lastPresent) < presentInterval {
		return m.canvas.Render()
	}
	m.lastPresent = now
	m.render(m.lastFrame)
	return m.canvas.Render()
}

func (m *Model) render(result FrameResult) {
	m.canvas.Fill(vterm.Style{})
	for _, entry := range result.Entries {
		m.drawEntry(entry)
	}
}

func (m *Model) drawEntry(entry DisplayEntry) {
	top := m.canvas.Height - int(entry.RenderY) - entry.Height
	switch entry.Cell.Kind {
	case column.CellTerminal:
		m.drawTerminalEntry(entry, top)
	case column.CellSurface:
		m.drawSurfaceEntry(entry, top)
	}
}

func (m *Model) drawTerminalEntry(entry DisplayEntry, top int) {
	term, ok := m.comp.mgr.Get(termIDFromCell(entry.Cell))
	if !ok || !term.Visible() {
		return
	}
	m.canvas.DrawTerminal(0, top, m.canvas.Width, entry.Height, term, entry.Focused, 0)
}

func (m *Model) drawSurfaceEntry(entry DisplayEntry, top int) {
	s, ok := m.comp.surfaceForCell(entry.Cell)
	if !ok {
		return
	}
	size := s.window.EffectiveSize()
	contentTop := top
	if !s.window.UsesCSD() {
		title := s.command
		m.canvas.DrawTitleBar(0, top, m.canvas.Width, title, entry.Focused)
		contentTop = top + windowproto.TitleBarHeight
	}
	style := vterm.Style{}
	if entry.Focused {
		style.Bold = true
	}
	m.canvas.DrawBorder(0, contentTop, m.canvas.Width, size.Height, style, entry.Focused)
}
