package kernel

import (
	"container/heap"

	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// eventList is the pending-event priority queue: a multiset of
// ScheduledEvents ordered by (time asc, priority desc, seq asc). It is
// realized as the textbook container/heap "priority queue with Fix/update"
// idiom, extended with a handle-to-index map (the ScheduledEvent's own index
// field, maintained in Swap) so that Remove(handle) is O(log n) instead of
// the O(n) an unindexed container/heap.Remove would need to first locate the
// element. A plain binary heap without this index cannot satisfy that bound,
// which is exactly why the spec rules it out.
type eventList struct {
	items []*ScheduledEvent
	seq   uint64
}

func newEventList() *eventList {
	return &eventList{}
}

// heap.Interface implementation. Not called directly outside this file.

func (l *eventList) Len() int { return len(l.items) }

func (l *eventList) Less(i, j int) bool {
	a, b := l.items[i], l.items[j]
	if c := simtime.Compare(a.time, b.time); c != 0 {
		return c < 0
	}
	if a.priority != b.priority {
		return a.priority > b.priority // higher priority first
	}
	return a.seq < b.seq
}

func (l *eventList) Swap(i, j int) {
	l.items[i], l.items[j] = l.items[j], l.items[i]
	l.items[i].index = i
	l.items[j].index = j
}

func (l *eventList) Push(x any) {
	e := x.(*ScheduledEvent)
	e.index = len(l.items)
	l.items = append(l.items, e)
}

func (l *eventList) Pop() any {
	old := l.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	l.items = old[:n-1]
	return e
}

// Add inserts a new pending event and returns it; the returned pointer is
// the handle callers pass to Remove.
func (l *eventList) Add(t simtime.Time, priority int16, action Action) *ScheduledEvent {
	l.seq++
	e := &ScheduledEvent{time: t, priority: priority, seq: l.seq, action: action, state: Pending}
	heap.Push(l, e)
	return e
}

// First returns the earliest pending event without removing it, or nil if
// the list is empty.
func (l *eventList) First() *ScheduledEvent {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}

// RemoveFirst pops and returns the earliest pending event, or nil if the
// list is empty.
func (l *eventList) RemoveFirst() *ScheduledEvent {
	if len(l.items) == 0 {
		return nil
	}
	return heap.Pop(l).(*ScheduledEvent)
}

// Remove removes e from the list, transitioning it to Cancelled. It returns
// true iff e was present and Pending; cancelling an event that has already
// executed, was already cancelled, or is not a member of this list is a
// harmless no-op that returns false.
func (l *eventList) Remove(e *ScheduledEvent) bool {
	if e == nil || e.state != Pending {
		return false
	}
	if e.index < 0 || e.index >= len(l.items) || l.items[e.index] != e {
		return false
	}
	heap.Remove(l, e.index)
	e.state = Cancelled
	return true
}

// Clear removes every event from the list without marking any as executed;
// they simply cease to be scheduled.
func (l *eventList) Clear() {
	for _, e := range l.items {
		e.index = -1
	}
	l.items = nil
}

// IsEmpty reports whether the list holds no pending events.
func (l *eventList) IsEmpty() bool { return len(l.items) == 0 }
