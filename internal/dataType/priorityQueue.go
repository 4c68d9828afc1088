package dataType

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// QueueEntry is a message waiting to be forwarded.
type QueueEntry struct {
	Rank    int
	Seq     uint64
	Message Message
}

type entryHeap []QueueEntry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Rank != h[j].Rank {
		return h[i].Rank < h[j].Rank
	}
	return h[i].Seq < h[j].Seq
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(QueueEntry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = QueueEntry{}
	*h = old[:n-1]
	return it
}

// PriorityQueue orders messages by priority rank, then by arrival.
type PriorityQueue struct {
	mu      sync.Mutex
	entries entryHeap
	nextSeq uint64
	ready   chan struct{}
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{ready: make(chan struct{}, 1)}
}

// Enqueue stamps msg with its rank and the next sequence number.
func (q *PriorityQueue) Enqueue(msg Message) QueueEntry {
	q.mu.Lock()
	q.nextSeq++
	e := QueueEntry{Rank: msg.Priority.Rank(), Seq: q.nextSeq, Message: msg}
	heap.Push(&q.entries, e)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return e
}

func (q *PriorityQueue) tryPop() (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	return heap.Pop(&q.entries).(QueueEntry), true
}

// DequeueBlocking removes the entry with the lowest (rank, seq). It returns
// false if nothing arrives within timeout or ctx is done first.
func (q *PriorityQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (QueueEntry, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if e, ok := q.tryPop(); ok {
			return e, true
		}
		select {
		case <-q.ready:
		case <-timer.C:
			// an Enqueue may have landed right at the deadline
			return q.tryPop()
		case <-ctx.Done():
			return QueueEntry{}, false
		}
	}
}

func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
