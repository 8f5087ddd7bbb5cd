// Package loop runs closures one at a time on a single goroutine.
//
// A game session owns one Loop. Timer ticks and player input are both posted to it, so all
// state they touch is mutated by exactly one goroutine in arrival order.
package loop

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const defaultQueueSize = 64

// ErrStopped is returned by Do when the loop no longer accepts work.
var ErrStopped = stderrors.New("loop: stopped")

type Loop struct {
	queue chan func()
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a loop with a queue of the given size. A size <= 0 uses the default.
func New(size int) *Loop {
	if size <= 0 {
		size = defaultQueueSize
	}

	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. It is safe to call more than once.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		l.wg.Add(1)
		go l.run()
	})
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case f := <-l.queue:
			l.exec(f)
		}
	}
}

func (l *Loop) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop: task panic",
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	f()
}

// Post enqueues f and returns immediately. It blocks while the queue is full and returns false
// if the loop is stopped before f could be enqueued.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do enqueues f and waits for it to run. It must not be called from inside the loop.
func (l *Loop) Do(ctx context.Context, f func() error) error {
	result := make(chan error, 1)
	posted := l.Post(func() {
		result <- f()
	})
	if !posted {
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// f may still have completed just before stop.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop terminates the loop after the task in progress. Queued tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
}
