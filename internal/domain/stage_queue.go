package domain

import "container/heap"

// StageQueue is a min-heap of pending approval requests keyed by stage order.
// Peek yields the request whose approver should be asked next.
type StageQueue struct {
	items stageHeap
}

// NewStageQueue builds a queue from the pending requests in requests.
func NewStageQueue(requests []StagedRequest) *StageQueue {
	q := &StageQueue{}
	for _, r := range requests {
		if r.Request.Status == RequestStatusPending {
			q.items = append(q.items, r)
		}
	}
	heap.Init(&q.items)
	return q
}

// Peek returns the lowest-order pending request without removing it.
func (q *StageQueue) Peek() (StagedRequest, bool) {
	if q.items.Len() == 0 {
		return StagedRequest{}, false
	}
	return q.items[0], true
}

type stageHeap []StagedRequest

func (h stageHeap) Len() int { return len(h) }

func (h stageHeap) Less(i, j int) bool {
	if h[i].Stage.Order != h[j].Stage.Order {
		return h[i].Stage.Order < h[j].Stage.Order
	}
	return h[i].Request.ID < h[j].Request.ID
}

func (h stageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *stageHeap) Push(x any) { *h = append(*h, x.(StagedRequest)) }

func (h *stageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
