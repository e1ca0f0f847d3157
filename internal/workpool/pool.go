// Package workpool runs short background tasks with a hard cap on
// concurrency. Submissions beyond the cap are rejected rather than queued.
package workpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/minerscan/internal/util"
)

// ErrSaturated is returned when every slot is busy.
var ErrSaturated = errors.New("worker pool saturated")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is a unit of work. ctx is cancelled when the pool closes.
type Task func(ctx context.Context)

// Pool is a bounded task runner.
type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool with the given capacity whose tasks derive their
// context from parent.
func New(parent context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		ctx:    ctx,
		cancel: cancel,
	}
}

// TrySubmit starts task if a slot is free.
func (p *Pool) TrySubmit(name string, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.ctx.Err() != nil {
		return ErrClosed
	}
	if !p.sem.TryAcquire(1) {
		util.Warn("Rejected task %s: %d tasks already running", name, p.size)
		return ErrSaturated
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		task(p.ctx)
	}()
	return nil
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return int(p.size)
}

// Wait blocks until all running tasks finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close cancels running tasks, rejects new ones and waits.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
