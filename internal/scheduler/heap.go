package scheduler

import (
	"container/heap"
	"time"
)

type entry struct {
	key    string
	at     time.Time
	action Action
	seq    uint64
	index  int
}

// triggerHeap orders entries by instant, then by registration order.
type triggerHeap []*entry

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *triggerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h triggerHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

func heapRemove(h *triggerHeap, e *entry) {
	if e.index >= 0 && e.index < h.Len() && (*h)[e.index] == e {
		heap.Remove(h, e.index)
	}
}
