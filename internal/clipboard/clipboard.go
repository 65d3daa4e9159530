// Package clipboard copies and pastes text against the system clipboard.
// Reads are offloaded to a detached worker and delivered back over a
// single-producer channel so the main frame loop never blocks (core
// spec §5).
package clipboard

import (
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/atotto/clipboard"

	"github.com/andyrewlee/amux/internal/logging"
	"github.com/andyrewlee/amux/internal/safego"
)

// Result is delivered on the worker's result channel once a paste read
// completes.
type Result struct {
	Text string
	Err  error
}

// Worker owns the single-producer channel a detached clipboard read
// delivers its result on. The main loop polls Results() once per frame;
// it never blocks waiting on a read.
type Worker struct {
	results  chan Result
	inFlight atomic.Bool
	warned   bool
}

// NewWorker creates a clipboard worker. The channel is buffered by one so
// a read can complete even if the main loop hasn't polled the previous
// result yet; a new RequestPaste while one is in flight is dropped.
func NewWorker() *Worker {
	return &Worker{results: make(chan Result, 1)}
}

// RequestPaste starts an async clipboard read on a detached goroutine. If
// a read is already in flight, or a delivered result has not been polled
// yet (the channel is full), the request is dropped; the caller will
// simply try again next frame.
func (w *Worker) RequestPaste() {
	if len(w.results) > 0 || !w.inFlight.CompareAndSwap(false, true) {
		return
	}
	safego.Go("clipboard-paste", func() {
		defer w.inFlight.Store(false)
		text, err := clipboard.ReadAll()
		if err != nil && !w.warned {
			logging.Warn("clipboard unavailable: %v", err)
			w.warned = true
		}
		select {
		case w.results <- Result{Text: text, Err: err}:
		default:
		}
	})
}

// PollResult returns a pending paste result, if one has arrived, without
// blocking.
func (w *Worker) PollResult() (Result, bool) {
	select {
	case r := <-w.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Copy writes text to the system clipboard synchronously, preferring
// pbcopy on macOS (more reliable across sandboxed/headless environments)
// before falling back to the portable clipboard library.
func Copy(text string) error {
	if runtime.GOOS == "darwin" {
		cmd := exec.Command("pbcopy")
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err == nil {
			return nil
		}
	}
	return clipboard.WriteAll(text)
}
