// Package coords isolates the two Y axes the compositor juggles: screen
// coordinates (Y=0 at top, OS/input convention) and render coordinates
// (Y=0 at bottom, GPU convention). Mixing them up was the most frequent
// bug class in the system this was modeled on, so every conversion is
// forced through these two named types instead of passing bare ints
// around.
package coords

// ScreenY is a Y coordinate with origin at the top of the output,
// growing downward. Keyboard/pointer events and display-server-protocol
// code work in this space.
type ScreenY int

// RenderY is a Y coordinate with origin at the bottom of the output,
// growing upward. All GPU-facing layout and drawing works in this space.
type RenderY int

// ToRender converts a screen Y to render Y given the output height.
func (y ScreenY) ToRender(outputHeight int) RenderY {
	return RenderY(outputHeight - int(y))
}

// ToScreen converts a render Y to screen Y given the output height.
func (y RenderY) ToScreen(outputHeight int) ScreenY {
	return ScreenY(outputHeight - int(y))
}

// ContentY is a Y coordinate in the content stack, measured from the top
// of the topmost cell (index 0) downward, independent of scroll and of
// output size. Column layout accumulates in this space before converting
// to render coordinates for hit-testing and drawing.
type ContentY int

// ContentToRender converts a cell's top content Y and its height into the
// render-space Y of that cell's bottom edge, given the output height and
// the current scroll offset (pixels of content above the viewport). With
// height 0 it is the render Y of contentY itself.
func ContentToRender(contentY, height, outputHeight, scrollOffset int) RenderY {
	return RenderY(outputHeight - (contentY - scrollOffset) - height)
}

// Span is a half-open render-coordinate interval [Bottom, Top) — note that
// in render space "top" of a cell has the larger Y value.
type Span struct {
	Bottom RenderY
	Top    RenderY
}

// Contains reports whether y falls within the span.
func (s Span) Contains(y RenderY) bool {
	return y >= s.Bottom && y < s.Top
}

// Overlaps reports whether two spans share any pixel row.
func (s Span) Overlaps(o Span) bool {
	return s.Bottom < o.Top && o.Bottom < s.Top
}
