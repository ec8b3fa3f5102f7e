package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-fi/barter-mono/internal/market"
	"github.com/sector-fi/barter-mono/pkg/instrument"
)

func marketEvent(seq int) Market {
	return Market(market.Event{
		ReceivedTime: time.Unix(int64(seq), 0),
		Exchange:     instrument.Exchange("test"),
		Kind:         market.Trade{ID: string(rune('a' + seq))},
	})
}

func TestFeedFIFOSingleProducer(t *testing.T) {
	feed := NewFeed()
	for i := 0; i < 10; i++ {
		feed.Push(marketEvent(i))
	}

	for i := 0; i < 10; i++ {
		event, ok := feed.Next()
		require.True(t, ok)
		assert.Equal(t, marketEvent(i), event)
	}
	assert.Equal(t, 0, feed.Len())
}

// The consumer must observe a linear extension of each producer's local
// order, for any interleaving of producers.
func TestFeedPreservesPerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 200

	feed := NewFeed()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				feed.Push(Account{
					Exchange:     instrument.Exchange(string(rune('a' + p))),
					ReceivedTime: time.Unix(0, int64(i)),
				})
			}
		}(p)
	}
	wg.Wait()

	lastSeen := make(map[instrument.Exchange]int64)
	for i := 0; i < producers*perProducer; i++ {
		event, ok := feed.Next()
		require.True(t, ok)
		account, ok := event.(Account)
		require.True(t, ok)

		seq := account.ReceivedTime.UnixNano()
		if last, seen := lastSeen[account.Exchange]; seen {
			require.Greater(t, seq, last, "producer %s reordered", account.Exchange)
		}
		lastSeen[account.Exchange] = seq
	}
}

func TestFeedCloseDrainsThenEnds(t *testing.T) {
	feed := NewFeed()
	feed.Push(marketEvent(1))
	feed.Close()

	// Push after close is dropped.
	feed.Push(marketEvent(2))

	event, ok := feed.Next()
	require.True(t, ok)
	assert.Equal(t, marketEvent(1), event)

	_, ok = feed.Next()
	assert.False(t, ok)
}

func TestFeedNextBlocksUntilPush(t *testing.T) {
	feed := NewFeed()

	got := make(chan Event, 1)
	go func() {
		event, ok := feed.Next()
		if ok {
			got <- event
		}
	}()

	time.Sleep(20 * time.Millisecond)
	feed.Push(marketEvent(7))

	select {
	case event := <-got:
		assert.Equal(t, marketEvent(7), event)
	case <-time.After(time.Second):
		t.Fatal("consumer never woke")
	}
}
