package coords

import "testing"

func TestYFlipRoundTrip(t *testing.T) {
	const outputHeight = 480
	for screenY := 0; screenY <= outputHeight; screenY++ {
		got := ScreenY(screenY).ToRender(outputHeight).ToScreen(outputHeight)
		if int(got) != screenY {
			t.Fatalf("round trip broke at screenY=%d: got %d", screenY, got)
		}
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{Bottom: 10, Top: 20}
	if !s.Contains(10) || !s.Contains(19) {
		t.Fatal("expected span to contain its bottom and top-1")
	}
	if s.Contains(20) || s.Contains(9) {
		t.Fatal("span should be half-open [bottom, top)")
	}
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Bottom: 0, Top: 10}
	b := Span{Bottom: 10, Top: 20}
	if a.Overlaps(b) {
		t.Fatal("adjacent spans must not overlap")
	}
	c := Span{Bottom: 5, Top: 15}
	if !a.Overlaps(c) {
		t.Fatal("expected overlapping spans to report overlap")
	}
}

func TestContentToRender(t *testing.T) {
	// A cell at contentY=100 height=50 in a 600px viewport with scroll=20.
	got := ContentToRender(100, 50, 600, 20)
	want := RenderY(600 - (100 - 20) - 50)
	if got != want {
		t.Fatalf("ContentToRender() = %d, want %d", got, want)
	}
}
