package engine

import (
	"container/heap"
)

// Queue is a priority queue of actions with at most one action per key.
//
// Enqueueing an action whose key is already queued merges the two in place
// and restores the heap order at that position.
//
// Queue is not safe for concurrent use; the Scheduler owns it.
type Queue struct {
	h actionHeap
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{h: actionHeap{index: make(map[string]int)}}
}

// Enqueue adds a or merges it into the queued action with the same key.
// It reports whether a was merged.
func (q *Queue) Enqueue(a *Action) (merged bool, err error) {
	if i, ok := q.h.index[a.Key()]; ok {
		if err := merge(q.h.items[i], a); err != nil {
			return false, err
		}
		heap.Fix(&q.h, i)
		return true, nil
	}
	heap.Push(&q.h, a)
	return false, nil
}

// Dequeue removes the action with the highest priority.
func (q *Queue) Dequeue() (*Action, bool) {
	if len(q.h.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Action), true
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	return len(q.h.items)
}

// actionHeap implements heap.Interface with a side index from action key
// to position.
type actionHeap struct {
	items []*Action
	index map[string]int
}

func (h actionHeap) Len() int { return len(h.items) }

func (h actionHeap) Less(i, j int) bool {
	return before(h.items[i], h.items[j])
}

func (h actionHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].Key()] = i
	h.index[h.items[j].Key()] = j
}

func (h *actionHeap) Push(x any) {
	a := x.(*Action)
	h.index[a.Key()] = len(h.items)
	h.items = append(h.items, a)
}

func (h *actionHeap) Pop() any {
	n := len(h.items)
	a := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	delete(h.index, a.Key())
	return a
}

// before reports whether a runs before b: by type weight, then reference
// count, then distance to the nearest common ancestor, then sequence.
func before(a, b *Action) bool {
	if wa, wb := a.Type.Weight(), b.Type.Weight(); wa != wb {
		return wa > wb
	}
	if a.RefCount != b.RefCount {
		return a.RefCount > b.RefCount
	}
	if da, db := ancestorDistance(a.Stack, b.Stack); da != db {
		return da < db
	}
	return a.Seq < b.Seq
}

// ancestorDistance returns how far each stack extends past their longest
// common prefix.
func ancestorDistance(a, b []string) (int, int) {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return len(a) - n, len(b) - n
}
