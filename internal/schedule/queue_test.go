package schedule

import (
	"testing"
	"time"
)

func ts(min int) time.Time {
	return time.Date(2024, 6, 1, 0, min, 0, 0, time.UTC)
}

func TestQueueAddKeepsOrderAndDedupes(t *testing.T) {
	t.Parallel()
	q := newQueue(10)

	added := q.add([]time.Time{ts(30), ts(10), ts(20), ts(10)})
	if added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}

	got := q.snapshot()
	want := []time.Time{ts(10), ts(20), ts(30)}
	if len(got) != len(want) {
		t.Fatalf("snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("entry %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestQueueAddHonorsLimit(t *testing.T) {
	t.Parallel()
	q := newQueue(2)
	if added := q.add([]time.Time{ts(1), ts(2), ts(3)}); added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if q.size() != 2 {
		t.Fatalf("size = %d, want 2", q.size())
	}
	if q.needsRefill() {
		t.Fatal("full queue must not report needsRefill")
	}
}

func TestQueueTakeDue(t *testing.T) {
	t.Parallel()
	q := newQueue(10)
	q.add([]time.Time{ts(10), ts(20), ts(30)})

	// Inclusive boundary: an entry exactly at now is due.
	due := q.takeDue(ts(20))
	if len(due) != 2 || !due[0].Equal(ts(10)) || !due[1].Equal(ts(20)) {
		t.Fatalf("takeDue = %v, want [%v %v]", due, ts(10), ts(20))
	}
	if q.size() != 1 {
		t.Fatalf("size after takeDue = %d, want 1", q.size())
	}
	if due := q.takeDue(ts(20)); due != nil {
		t.Fatalf("second takeDue = %v, want nil", due)
	}
}

func TestQueuePurgeBeforeIsExclusive(t *testing.T) {
	t.Parallel()
	q := newQueue(10)
	q.add([]time.Time{ts(10), ts(20), ts(30)})

	// Strict boundary: the entry at t survives.
	if n := q.purgeBefore(ts(20)); n != 1 {
		t.Fatalf("purgeBefore removed %d, want 1", n)
	}
	head, ok := q.peek()
	if !ok || !head.Equal(ts(20)) {
		t.Fatalf("head = %v, want %v", head, ts(20))
	}
}

func TestQueueSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	q := newQueue(10)
	q.add([]time.Time{ts(10), ts(20)})

	snap := q.snapshot()
	snap[0] = ts(59)

	head, _ := q.peek()
	if !head.Equal(ts(10)) {
		t.Fatalf("mutating the snapshot changed the queue head: %v", head)
	}
}

func TestQueueTail(t *testing.T) {
	t.Parallel()
	q := newQueue(10)
	if _, ok := q.tail(); ok {
		t.Fatal("empty queue must report no tail")
	}
	q.add([]time.Time{ts(10), ts(30)})
	tail, ok := q.tail()
	if !ok || !tail.Equal(ts(30)) {
		t.Fatalf("tail = %v, want %v", tail, ts(30))
	}
}
