package quoter

import "sync"

// broadcast fans QuoteResponses out to every waiting request handler.
// Publishing never blocks: a subscriber that cannot keep up misses the
// response and times out, which is the protocol's failure mode anyway.
type broadcast struct {
	mu   sync.Mutex
	subs map[chan QuoteResponse]struct{}
}

func newBroadcast() *broadcast {
	return &broadcast{subs: make(map[chan QuoteResponse]struct{})}
}

// subscribe registers a listener and returns the channel plus an unsubscribe
// function.
func (b *broadcast) subscribe(buffer int) (chan QuoteResponse, func()) {
	ch := make(chan QuoteResponse, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, unsub
}

// publish delivers to every subscriber without blocking.
func (b *broadcast) publish(response QuoteResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- response:
		default:
		}
	}
}
