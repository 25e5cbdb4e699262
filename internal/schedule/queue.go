package schedule

import (
	"sort"
	"sync"
	"time"
)

// queue is the ascending, duplicate-free collection of pending fire
// times. The monitor goroutine is the only writer on the firing path;
// snapshot reads and administrative purges may happen concurrently, so
// every operation holds the mutex.
type queue struct {
	mu    sync.Mutex
	limit int
	items []time.Time
}

func newQueue(limit int) *queue {
	if limit < 1 {
		limit = 1
	}
	return &queue{limit: limit}
}

func (q *queue) peek() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0], true
}

func (q *queue) tail() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[len(q.items)-1], true
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) needsRefill() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) < q.limit
}

// takeDue removes and returns every entry at or before now, in
// ascending order. A forward clock jump can make several entries due in
// a single poll step; callers fire one notification per entry.
func (q *queue) takeDue(now time.Time) []time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.items) && !q.items[n].After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]time.Time, n)
	copy(due, q.items[:n])
	q.items = q.items[n:]
	return due
}

// purgeBefore removes every entry strictly before t and returns the
// count removed. Entries at or after t are untouched.
func (q *queue) purgeBefore(t time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.items) && q.items[n].Before(t) {
		n++
	}
	if n > 0 {
		q.items = q.items[n:]
	}
	return n
}

// add inserts the given times, preserving ascending order, dropping
// duplicates, and never growing past the pre-calculation limit. It
// returns the number of entries actually added.
func (q *queue) add(ts []time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	added := 0
	for _, t := range ts {
		if len(q.items) >= q.limit {
			break
		}
		i := sort.Search(len(q.items), func(i int) bool { return !q.items[i].Before(t) })
		if i < len(q.items) && q.items[i].Equal(t) {
			continue
		}
		q.items = append(q.items, time.Time{})
		copy(q.items[i+1:], q.items[i:])
		q.items[i] = t
		added++
	}
	return added
}

// snapshot returns a copy of the pending times; never the live slice.
func (q *queue) snapshot() []time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]time.Time, len(q.items))
	copy(out, q.items)
	return out
}
