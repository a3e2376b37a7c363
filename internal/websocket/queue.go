package websocket

import (
	"sync"
	"time"
)

// Entry is one message held while disconnected
type Entry struct {
	Type       string
	Payload    []byte
	EnqueuedAt time.Time
}

// Queue is a bounded FIFO of outbound messages. When full the oldest entry
// is evicted; entries older than the staleness threshold are dropped on drain.
type Queue struct {
	mu         sync.Mutex
	items      []Entry
	capacity   int
	staleAfter time.Duration
}

// NewQueue creates a queue holding at most capacity entries
func NewQueue(capacity int, staleAfter time.Duration) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		items:      make([]Entry, 0, capacity),
		capacity:   capacity,
		staleAfter: staleAfter,
	}
}

// Push appends an entry and returns the entry evicted to make room, if any
func (q *Queue) Push(e Entry) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		evicted Entry
		dropped bool
	)
	if len(q.items) >= q.capacity {
		evicted = q.items[0]
		dropped = true
		q.items = append(q.items[:0], q.items[1:]...)
	}
	q.items = append(q.items, e)
	return evicted, dropped
}

// Drain removes every entry, returning the fresh ones oldest first and the
// number dropped as stale
func (q *Queue) Drain(now time.Time) ([]Entry, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	fresh := make([]Entry, 0, len(q.items))
	stale := 0
	for _, e := range q.items {
		if q.staleAfter > 0 && now.Sub(e.EnqueuedAt) > q.staleAfter {
			stale++
			continue
		}
		fresh = append(fresh, e)
	}
	q.items = q.items[:0]
	return fresh, stale
}

// Len returns the number of queued entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
