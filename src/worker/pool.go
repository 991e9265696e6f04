package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

const (
	MinSize      = 2
	MaxSize      = 4
	DefaultQueue = 32
)

// Task is one unit of work. It runs on a pool goroutine with the context it was submitted with.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool with a bounded input queue. Submit never blocks the caller.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx  context.Context
	task Task
}

// New starts size workers (clamped to MinSize..MaxSize) reading from a queue of the given
// capacity (DefaultQueue when queue<=0).
func New(size, queue int) *Pool {
	if size < MinSize {
		size = MinSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(id, j)
			}
		}(i)
	}
}

// run isolates a panicking task so the worker keeps serving the queue.
func (p *Pool) run(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker task panicked", "worker", id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.task(j.ctx)
}

// Submit enqueues task if the queue has room. Returns false if dropped or the pool is closed.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, task: task}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
