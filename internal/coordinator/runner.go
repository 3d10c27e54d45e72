package coordinator

import (
	"context"
	"errors"
	"sync"
)

// Runner triggers a coordinator's refresh on a fixed cadence.
//
// Each runner owns one goroutine and one ticker, so a slow router never
// delays another. Ticks that arrive while a cycle is running are dropped:
// the ticker buffers at most one pending tick and the coordinator's
// in-flight guard rejects overlapping calls.
type Runner struct {
	coord *Coordinator
	clock Clock

	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	startOnce sync.Once
}

// NewRunner creates a runner for coord. Call Start to begin polling.
func NewRunner(coord *Coordinator) *Runner {
	return &Runner{
		coord: coord,
		clock: coord.clock,
		done:  make(chan struct{}),
	}
}

// Start begins periodic refreshes. Subsequent calls are no-ops.
//
// Parameters:
//   - ctx: Context for cancellation (stops the loop and aborts the
//     in-flight cycle when cancelled)
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		r.wg.Add(1)
		go r.loop(loopCtx)
	})
}

// Stop ends the loop and waits for it to exit.
// Safe to call multiple times, and before Start.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.clock.Ticker(r.coord.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.Chan():
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	err := r.coord.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		r.coord.log().Debug("skipping tick, refresh in progress", "coordinator", r.coord.ID())
	default:
		// Already logged by the coordinator; the next tick retries.
	}
}
