package crawl

import (
	"sync"
)

// pool runs independent, idempotent hashing tasks across a fixed number of
// goroutines, mirroring the bounded worker arrangement of mutagen's
// pkg/parallelism.SIMDWorkerArray but shaped as a task queue rather than a
// broadcast primitive: callers push tasks as they're discovered instead of
// handing the whole array identical work. A semaphore channel of size
// workers bounds concurrency; a WaitGroup marks the per-directory barrier
// described in spec.md §5 ("sidecars for directory D are written after all
// D's hashing tasks complete").
type pool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// newPool creates a pool bounded to the given number of concurrent tasks.
// A non-positive size is treated as 1.
func newPool(workers int) *pool {
	if workers < 1 {
		workers = 1
	}
	return &pool{sem: make(chan struct{}, workers)}
}

// Go schedules task to run on the pool, blocking only if all worker slots
// are occupied.
func (p *pool) Go(task func() error) {
	p.wg.Add(1)
	p.sem <- struct{}{}
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		if err := task(); err != nil {
			p.mu.Lock()
			if p.firstErr == nil {
				p.firstErr = err
			}
			p.mu.Unlock()
		}
	}()
}

// Wait blocks until every submitted task has returned, then reports the
// first non-nil error encountered, if any.
func (p *pool) Wait() error {
	p.wg.Wait()
	return p.firstErr
}
