package events

import "sync"

// Feed is the central many-producer / single-consumer FIFO queue. Producers
// never block; the consumer blocks on Next until an event or Close arrives.
// Per-producer ordering is preserved; ordering between producers is whatever
// arrival order the queue observed.
//
// The queue is unbounded and trades memory for latency. A bounded variant
// would have to block producers, never drop.
type Feed struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	queue    []Event
	closed   bool
}

// NewFeed returns an empty open feed.
func NewFeed() *Feed {
	f := &Feed{}
	f.nonEmpty = sync.NewCond(&f.mu)
	return f
}

// Push appends an event. Pushing to a closed feed is a no-op.
func (f *Feed) Push(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, e)
	f.nonEmpty.Signal()
}

// Next blocks until an event is available, returning ok=false once the feed
// is closed and drained.
func (f *Feed) Next() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && !f.closed {
		f.nonEmpty.Wait()
	}
	if len(f.queue) == 0 {
		return nil, false
	}
	e := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return e, true
}

// Close stops accepting events. Queued events remain consumable.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.nonEmpty.Broadcast()
}

// Len reports the number of queued events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
