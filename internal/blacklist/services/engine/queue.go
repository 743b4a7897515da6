package engine

import (
	"context"
	"sync"
)

// job is a queued reaction to one update notification.
type job func(ctx context.Context)

// eventQueue is an unbounded FIFO. Store hooks push from writer goroutines,
// including the engine's own goroutine while it handles an event, so pushing
// must never block.
type eventQueue struct {
	mu     sync.Mutex
	items  []job
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(j job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	j := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return j, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ready fires at least once after any push.
func (q *eventQueue) ready() <-chan struct{} { return q.signal }
