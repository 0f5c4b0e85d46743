package widget

import (
	"context"
	"sync"
)

// Loop is a cooperative single-threaded event queue. Callbacks posted from
// any goroutine run one at a time on whichever goroutine calls RunUntilIdle.
// It implements ajax.Dispatcher.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	inflight int
	wake     chan struct{}
}

// NewLoop returns an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Go runs work on its own goroutine and counts it as in flight until it
// returns. work queues its results through post.
func (l *Loop) Go(work func(post func(func()))) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()
	go func() {
		defer l.done()
		work(l.Post)
	}()
}

// Post queues fn to run on the event thread.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Pending reports queued callbacks and in-flight work.
func (l *Loop) Pending() (queued, inflight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue), l.inflight
}

// RunUntilIdle runs queued callbacks until the queue is empty and no work is
// in flight, or ctx ends. Callbacks may start more work.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
			continue
		}
		idle := l.inflight == 0
		l.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) done() {
	l.mu.Lock()
	l.inflight--
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
