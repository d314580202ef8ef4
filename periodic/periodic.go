// Package periodic runs a callback on a fixed interval until stopped, e.g. the feed keepalive ping.
package periodic

import (
	"context"
	"sync"
	"time"
)

// Tick is passed to the callback on every run.
type Tick struct {
	Elapsed time.Duration // since Start
	Time    time.Time
	Count   int64 // starting at 1
}

// Stopper stops a task returned by Start.
type Stopper interface {
	Stop()
}

// Option configures Start.
type Option func(*task)

// Immediate runs the callback once right away instead of waiting for the first tick.
func Immediate() Option {
	return func(t *task) { t.immediate = true }
}

// OnStop registers a callback executed once the task is stopped or its context is done.
func OnStop(f func(Tick)) Option {
	return func(t *task) { t.onStop = f }
}

// Start calls callback every interval in a separate goroutine until ctx is done or Stop is called.
// Runs never overlap. If a run takes longer than the interval, the next one starts right after.
// The interval must be greater than zero.
func Start(ctx context.Context, interval time.Duration, callback func(Tick), options ...Option) Stopper {
	t := &task{callback: callback}
	for _, option := range options {
		option(t)
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if ctx.Err() != nil {
		if t.onStop != nil {
			t.onStop(Tick{Time: start})
		}

		return t
	}

	var count int64
	if t.immediate {
		count++
		t.callback(Tick{Time: start, Count: count})
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				count++
				t.callback(Tick{Elapsed: now.Sub(start), Time: now, Count: count})
			case <-ctx.Done():
				if t.onStop != nil {
					now := time.Now()
					t.onStop(Tick{Elapsed: now.Sub(start), Time: now, Count: count})
				}

				return
			}
		}
	}()

	return t
}

type task struct {
	callback  func(Tick)
	immediate bool
	onStop    func(Tick)
	cancel    context.CancelFunc
	stop      sync.Once
}

// Stop implements Stopper.
func (t *task) Stop() {
	t.stop.Do(t.cancel)
}
