package application

import (
	"context"
	"fmt"
	"sync"
)

// settlementRunner tracks settlement goroutines so shutdown can wait for them.
type settlementRunner struct {
	mu       sync.Mutex
	inflight int
	idle     chan struct{}
	closing  bool
}

func newSettlementRunner() *settlementRunner {
	idle := make(chan struct{})
	close(idle)
	return &settlementRunner{idle: idle}
}

// Go starts fn unless the runner is closing.
func (r *settlementRunner) Go(fn func()) bool {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return false
	}
	if r.inflight == 0 {
		r.idle = make(chan struct{})
	}
	r.inflight++
	r.mu.Unlock()

	go func() {
		defer r.done()
		fn()
	}()

	return true
}

func (r *settlementRunner) done() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--
	if r.inflight == 0 {
		close(r.idle)
	}
}

// Wait blocks until no settlement is running. New work may still be started.
func (r *settlementRunner) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settlement drain timeout: %w", ctx.Err())
	}
}

func (r *settlementRunner) CloseAndWait(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	return r.Wait(ctx)
}
