package crawl

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := newPool(4)
	var count int64
	for i := 0; i < 50; i++ {
		p.Go(func() error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 tasks to run, got %d", count)
	}
}

func TestPoolReportsFirstError(t *testing.T) {
	p := newPool(2)
	boom := errors.New("boom")
	p.Go(func() error { return nil })
	p.Go(func() error { return boom })
	p.Go(func() error { return nil })
	if err := p.Wait(); err == nil {
		t.Fatal("expected an error from the pool")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := newPool(2)
	var active, maxActive int64
	release := make(chan struct{})
	// Go blocks while both slots are taken, so the running tasks are
	// released from another goroutine once the pool has filled up.
	go func() {
		for atomic.LoadInt64(&active) < 2 {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()
	for i := 0; i < 6; i++ {
		p.Go(func() error {
			n := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&maxActive)
				if n <= old || atomic.CompareAndSwapInt64(&maxActive, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt64(&active, -1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if maxActive > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", maxActive)
	}
}
