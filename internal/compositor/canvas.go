package compositor

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/andyrewlee/amux/internal/terminal"
	"github.com/andyrewlee/amux/internal/vterm"
)

// Canvas is a fixed-size buffer of styled cells the display list is
// rasterized into before being handed to the frame's presenter.
type Canvas struct {
	Width  int
	Height int
	Cells  [][]vterm.Cell

	renderBuf strings.Builder
}

// NewCanvas creates a new canvas filled with blank cells.
func NewCanvas(width, height int) *Canvas {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	rows := make([][]vterm.Cell, height)
	for y := range rows {
		rows[y] = vterm.MakeBlankLine(width)
	}
	return &Canvas{Width: width, Height: height, Cells: rows}
}

// Resize resets the canvas dimensions when the size changes.
func (c *Canvas) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == c.Width && height == c.Height {
		return
	}
	rows := make([][]vterm.Cell, height)
	for y := range rows {
		rows[y] = vterm.MakeBlankLine(width)
	}
	c.Width = width
	c.Height = height
	c.Cells = rows
}

// Fill sets the entire canvas to the given style.
func (c *Canvas) Fill(style vterm.Style) {
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			cell := vterm.DefaultCell()
			cell.Style = style
			c.Cells[y][x] = cell
		}
	}
}

// SetCell sets a cell if within bounds.
func (c *Canvas) SetCell(x, y int, cell vterm.Cell) {
	if x < 0 || y < 0 || x >= c.Width || y >= c.Height {
		return
	}
	c.Cells[y][x] = cell
}

// DrawText draws a string starting at the given position.
func (c *Canvas) DrawText(x, y int, text string, style vterm.Style) {
	if y < 0 || y >= c.Height {
		return
	}
	col := x
	for _, r := range text {
		if col >= c.Width {
			break
		}
		width := runewidth.RuneWidth(r)
		if width <= 0 {
			continue
		}
		if col+width > c.Width {
			break
		}
		c.SetCell(col, y, vterm.Cell{Rune: r, Width: width, Style: style})
		if width == 2 {
			c.SetCell(col+1, y, vterm.Cell{Width: 0, Style: style})
		}
		col += width
	}
}

// DrawTitleBar draws a server-side decoration title bar: the window's
// title left-aligned, with a focus-aware border color (core spec §4.5,
// windowproto.TitleBarHeight).
func (c *Canvas) DrawTitleBar(x, y, w int, title string, focused bool) {
	if w < 1 {
		return
	}
	style := vterm.Style{}
	if focused {
		style.Bold = true
	}
	for cx := x; cx < x+w; cx++ {
		c.SetCell(cx, y, vterm.Cell{Rune: ' ', Width: 1, Style: style})
	}
	c.DrawText(x+1, y, title, style)
}

// DrawBorder draws a single or double line border.
func (c *Canvas) DrawBorder(x, y, w, h int, style vterm.Style, focused bool) {
	if w < 2 || h < 2 {
		return
	}
	var tl, tr, bl, br, hline, vline rune
	if focused {
		tl, tr, bl, br = '╔', '╗', '╚', '╝'
		hline, vline = '═', '║'
	} else {
		tl, tr, bl, br = '┌', '┐', '└', '┘'
		hline, vline = '─', '│'
	}
	c.SetCell(x, y, vterm.Cell{Rune: tl, Width: 1, Style: style})
	c.SetCell(x+w-1, y, vterm.Cell{Rune: tr, Width: 1, Style: style})
	c.SetCell(x, y+h-1, vterm.Cell{Rune: bl, Width: 1, Style: style})
	c.SetCell(x+w-1, y+h-1, vterm.Cell{Rune: br, Width: 1, Style: style})
	for cx := x + 1; cx < x+w-1; cx++ {
		c.SetCell(cx, y, vterm.Cell{Rune: hline, Width: 1, Style: style})
		c.SetCell(cx, y+h-1, vterm.Cell{Rune: hline, Width: 1, Style: style})
	}
	for cy := y + 1; cy < y+h-1; cy++ {
		c.SetCell(x, cy, vterm.Cell{Rune: vline, Width: 1, Style: style})
		c.SetCell(x+w-1, cy, vterm.Cell{Rune: vline, Width: 1, Style: style})
	}
}

// DrawTerminal renders term's current view into the canvas at (x, y),
// clipped to (w, h).
func (c *Canvas) DrawTerminal(x, y, w, h int, term *terminal.Terminal, showCursor bool, viewOffset int) {
	if w <= 0 || h <= 0 {
		return
	}
	buf := make([][]vterm.Cell, h)
	for i := range buf {
		buf[i] = vterm.MakeBlankLine(w)
	}
	term.Render(buf, w, h, showCursor, viewOffset)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			targetX, targetY := x+col, y+row
			if targetX < 0 || targetY < 0 || targetX >= c.Width || targetY >= c.Height {
				continue
			}
			c.SetCell(targetX, targetY, buf[row][col])
		}
	}
}

// Render converts the canvas to an ANSI string, one line per row.
func (c *Canvas) Render() string {
	b := &c.renderBuf
	b.Reset()
	b.Grow(c.Width * c.Height * 2)

	for y := 0; y < c.Height; y++ {
		b.WriteString("\x1b[0m")
		var lastStyle vterm.Style
		for x := 0; x < c.Width; x++ {
			cell := c.Cells[y][x]
			if cell.Width == 0 {
				continue
			}
			if cell.Style != lastStyle {
				b.WriteString(vterm.StyleToANSI(cell.Style))
				lastStyle = cell.Style
			}
			r := cell.Rune
			if r == 0 {
				r = ' '
			}
			b.WriteRune(r)
		}
		if y < c.Height-1 {
			b.WriteRune('\n')
		}
	}
	b.WriteString("\x1b[0m")
	return b.String()
}

// HexColor converts a #RRGGBB string to a vterm.Color.
func HexColor(hex string) vterm.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return vterm.Color{Type: vterm.ColorDefault}
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return vterm.Color{Type: vterm.ColorDefault}
	}
	return vterm.Color{Type: vterm.ColorRGB, Value: uint32(value)}
}
