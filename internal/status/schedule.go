package status

import (
	"container/heap"
	"time"
)

type pollEntry struct {
	jobID string
	at    time.Time
	index int
}

// pollHeap is a min-heap ordered by next poll deadline.
type pollHeap []*pollEntry

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h pollHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pollHeap) Push(x any) {
	entry := x.(*pollEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *pollHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}

var _ heap.Interface = (*pollHeap)(nil)
