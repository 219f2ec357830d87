// Package workpool runs blocking calls (SDK requests, subprocesses) on a fixed
// set of worker goroutines so request handlers queue instead of fanning out
// unbounded work.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/swinglab/mediacore/internal/metrics"
)

// ErrPoolClosed is returned by Do after Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool is a fixed-size worker pool. It is safe for concurrent use.
type Pool struct {
	name    string
	workers int
	jobs    chan *job
	group   errgroup.Group
	queued  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers and queue capacity.
// Once the queue is full, Do blocks until a slot frees up or ctx is done.
func New(name string, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		name:    name,
		workers: workers,
		jobs:    make(chan *job, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}
	return p
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Do runs fn on a worker and waits for it to return. If ctx ends first, Do
// returns ctx.Err(); a job that already started keeps running with the same
// ctx so it can observe the cancellation and clean up after itself.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.adjustQueue(1)
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.adjustQueue(-1)
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, lets queued jobs drain and waits for every
// worker to exit. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	return p.group.Wait()
}

func (p *Pool) worker() error {
	for j := range p.jobs {
		p.adjustQueue(-1)
		j.done <- p.run(j)
	}
	return nil
}

func (p *Pool) run(j *job) (err error) {
	// The caller gave up while the job was queued.
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workpool %s: job panicked: %v", p.name, r)
		}
	}()
	return j.fn(j.ctx)
}

func (p *Pool) adjustQueue(delta int64) {
	metrics.SetPoolQueueDepth(p.name, int(p.queued.Add(delta)))
}
