package vterm

import (
	"fmt"
	"strings"
)

// Render returns the terminal content as a string with ANSI codes
func (v *VTerm) Render() string {
	if v.ViewOffset > 0 {
		return v.renderWithScrollback()
	}
	return v.renderScreen()
}

// renderScreen renders just the current screen
func (v *VTerm) renderScreen() string {
	var buf strings.Builder
	buf.Grow(v.Width * v.Height * 2) // Rough estimate

	var lastStyle Style
	firstCell := true

	for y, row := range v.Screen {
		for _, cell := range row {
			// Apply style changes; blank cells never carry an underline.
			style := cell.Style
			if cell.Rune == 0 || cell.Rune == ' ' {
				style.Underline = false
			}
			if firstCell || style != lastStyle {
				buf.WriteString(styleToANSI(style))
				lastStyle = style
				firstCell = false
			}

			if cell.Rune == 0 {
				buf.WriteRune(' ')
			} else {
				buf.WriteRune(cell.Rune)
			}
		}

		if y < len(v.Screen)-1 {
			buf.WriteString("\n")
		}
	}

	// Reset styles at end
	buf.WriteString("\x1b[0m")

	return buf.String()
}

// renderWithScrollback renders content from scrollback + screen
func (v *VTerm) renderWithScrollback() string {
	var buf strings.Builder
	buf.Grow(v.Width * v.Height * 2)

	// Calculate which lines to show
	// ViewOffset = how many lines scrolled up into history
	scrollbackLen := len(v.Scrollback)
	screenLen := len(v.Screen)

	// Start position in the combined buffer (scrollback + screen)
	// When ViewOffset = scrollbackLen, we show from the start of scrollback
	// When ViewOffset = 0, we show the screen
	startLine := scrollbackLen + screenLen - v.Height - v.ViewOffset
	if startLine < 0 {
		startLine = 0
	}

	var lastStyle Style
	firstCell := true

	for i := 0; i < v.Height; i++ {
		lineIdx := startLine + i

		var row []Cell
		if lineIdx < scrollbackLen {
			row = v.Scrollback[lineIdx]
		} else if lineIdx-scrollbackLen < screenLen {
			row = v.Screen[lineIdx-scrollbackLen]
		}

		// Render the row
		for x := 0; x < v.Width; x++ {
			var cell Cell
			if row != nil && x < len(row) {
				cell = row[x]
			} else {
				cell = DefaultCell()
			}

			style := cell.Style
			if cell.Rune == 0 || cell.Rune == ' ' {
				style.Underline = false
			}
			if firstCell || style != lastStyle {
				buf.WriteString(styleToANSI(style))
				lastStyle = style
				firstCell = false
			}

			if cell.Rune == 0 {
				buf.WriteRune(' ')
			} else {
				buf.WriteRune(cell.Rune)
			}
		}

		if i < v.Height-1 {
			buf.WriteString("\n")
		}
	}

	buf.WriteString("\x1b[0m")
	return buf.String()
}

// styleToANSI converts a Style to ANSI escape codes
func styleToANSI(s Style) string {
	var codes []string

	// Reset first if any attributes
	codes = append(codes, "0")

	if s.Bold {
		codes = append(codes, "1")
	}
	if s.Dim {
		codes = append(codes, "2")
	}
	if s.Italic {
		codes = append(codes, "3")
	}
	if s.Underline {
		codes = append(codes, "4")
	}
	if s.Blink {
		codes = append(codes, "5")
	}
	if s.Reverse {
		codes = append(codes, "7")
	}
	if s.Hidden {
		codes = append(codes, "8")
	}
	if s.Strike {
		codes = append(codes, "9")
	}

	// Foreground color
	codes = append(codes, colorToANSI(s.Fg, true)...)

	// Background color
	codes = append(codes, colorToANSI(s.Bg, false)...)

	return fmt.Sprintf("\x1b[%sm", strings.Join(codes, ";"))
}

// colorToANSI converts a Color to ANSI code strings
func colorToANSI(c Color, fg bool) []string {
	switch c.Type {
	case ColorDefault:
		return nil
	case ColorIndexed:
		idx := c.Value
		if idx < 8 {
			if fg {
				return []string{fmt.Sprintf("%d", 30+idx)}
			}
			return []string{fmt.Sprintf("%d", 40+idx)}
		} else if idx < 16 {
			if fg {
				return []string{fmt.Sprintf("%d", 90+idx-8)}
			}
			return []string{fmt.Sprintf("%d", 100+idx-8)}
		} else {
			if fg {
				return []string{"38", "5", fmt.Sprintf("%d", idx)}
			}
			return []string{"48", "5", fmt.Sprintf("%d", idx)}
		}
	case ColorRGB:
		r := (c.Value >> 16) & 0xFF
		g := (c.Value >> 8) & 0xFF
		b := c.Value & 0xFF
		if fg {
			return []string{"38", "2", fmt.Sprintf("%d", r), fmt.Sprintf("%d", g), fmt.Sprintf("%d", b)}
		}
		return []string{"48", "2", fmt.Sprintf("%d", r), fmt.Sprintf("%d", g), fmt.Sprintf("%d", b)}
	}
	return nil
}

// RenderInto rasterizes the current view into dst, a width x height grid of
// cells, honoring showCursor and an explicit viewport offset override. This
// is the render_grid_into half of the emulator contract (§6): the backend
// never queries a "preferred height", it reads exactly what was drawn here.
func (v *VTerm) RenderInto(dst [][]Cell, width, height int, showCursor bool, viewportOffset int) {
	screen, scrollbackLen := v.RenderBuffers()
	screenLen := len(screen)
	startLine := scrollbackLen + screenLen - height - viewportOffset
	if startLine < 0 {
		startLine = 0
	}

	for y := 0; y < height && y < len(dst); y++ {
		lineIdx := startLine + y
		var row []Cell
		if lineIdx < scrollbackLen {
			row = v.Scrollback[lineIdx]
		} else if lineIdx-scrollbackLen < screenLen {
			row = screen[lineIdx-scrollbackLen]
		}
		for x := 0; x < width && x < len(dst[y]); x++ {
			if row != nil && x < len(row) {
				dst[y][x] = row[x]
			} else {
				dst[y][x] = DefaultCell()
			}
		}
	}

	if showCursor && !v.CursorHiddenForRender() && viewportOffset == 0 {
		cy := v.CursorY
		if cy >= 0 && cy < height && v.CursorX >= 0 && v.CursorX < width {
			dst[cy][v.CursorX].Style.Reverse = !dst[cy][v.CursorX].Style.Reverse
		}
	}
}
