package loan

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"

	"lending-engine/internal/infrastructure/monitoring"
)

type handle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Tracker is the registry of in-flight loan workflows, keyed by loan id.
type Tracker struct {
	mu      sync.Mutex
	running map[string]*handle
	wg      conc.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{running: make(map[string]*handle)}
}

// Start runs fn in a new goroutine under a cancelable child of parent. It
// returns false, without running fn, when a workflow for id is already in
// flight.
func (t *Tracker) Start(parent context.Context, id string, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	if _, ok := t.running[id]; ok {
		t.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancelCause(parent)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	t.running[id] = h
	t.mu.Unlock()

	monitoring.WorkflowsInFlight.Inc()
	t.wg.Go(func() {
		defer func() {
			t.mu.Lock()
			delete(t.running, id)
			t.mu.Unlock()
			cancel(nil)
			close(h.done)
			monitoring.WorkflowsInFlight.Dec()
		}()
		fn(ctx)
	})
	return true
}

// Cancel signals the workflow for id with cause. It reports whether a
// workflow was in flight.
func (t *Tracker) Cancel(id string, cause error) bool {
	t.mu.Lock()
	h, ok := t.running[id]
	t.mu.Unlock()
	if ok {
		h.cancel(cause)
	}
	return ok
}

func (t *Tracker) CancelAll(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range t.running {
		h.cancel(cause)
	}
}

// Wait blocks until the workflow for id has finished. It returns immediately
// when nothing is in flight for id.
func (t *Tracker) Wait(ctx context.Context, id string) error {
	t.mu.Lock()
	h, ok := t.running[id]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}

// Drain waits for every in-flight workflow to finish or for ctx to end.
func (t *Tracker) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
