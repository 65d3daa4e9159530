package clipboard

import (
	"testing"
	"time"
)

func TestPollResultEmptyBeforeAnyRequest(t *testing.T) {
	w := NewWorker()
	if _, ok := w.PollResult(); ok {
		t.Fatal("expected no pending result before RequestPaste is called")
	}
}

func TestRequestPasteEventuallyDeliversAResult(t *testing.T) {
	w := NewWorker()
	w.RequestPaste()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := w.PollResult(); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected a result to arrive even when the underlying clipboard read fails (e.g. headless CI)")
}

func TestConcurrentRequestPasteWhileInFlightIsDropped(t *testing.T) {
	w := NewWorker()
	w.RequestPaste()
	w.RequestPaste() // should be a no-op: the channel slot is already reserved

	deadline := time.Now().Add(2 * time.Second)
	got := 0
	for time.Now().Before(deadline) {
		if _, ok := w.PollResult(); ok {
			got++
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got != 1 {
		t.Fatalf("expected exactly one delivered result, got %d", got)
	}
	if _, ok := w.PollResult(); ok {
		t.Fatal("expected no second result to be pending")
	}
}
