package search

import (
	"container/heap"
	"context"
	"sync"
)

// DefaultBufferThreshold is the result count that opens the readiness gate
// when the stream has not ended yet.
const DefaultBufferThreshold = 10000

// candidateQueue is the unbounded FIFO feeding the workers.
type candidateQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*Payload
}

func newCandidateQueue() *candidateQueue {
	q := &candidateQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *candidateQueue) Put(p *Payload) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *candidateQueue) PutAll(ps []*Payload) {
	q.mu.Lock()
	q.items = append(q.items, ps...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Take blocks until a payload is available.
func (q *candidateQueue) Take() *Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p
}

type resultHeap []*Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return Compare(h[i], h[j]) < 0 }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(*Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// ResultQueue is a priority queue of results behind a readiness gate.  The
// gate opens once, when the queue first holds threshold items or when
// PoisonResult is put.  Until then Take blocks even if results are queued;
// afterwards it is an ordinary blocking priority dequeue.
type ResultQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     resultHeap
	threshold int
	ready     bool
}

// NewResultQueue returns a gated queue.  threshold <= 0 selects
// DefaultBufferThreshold.
func NewResultQueue(threshold int) *ResultQueue {
	if threshold <= 0 {
		threshold = DefaultBufferThreshold
	}
	q := &ResultQueue{threshold: threshold}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *ResultQueue) Put(r *Result) {
	q.mu.Lock()
	heap.Push(&q.items, r)
	if !q.ready && (r.IsPoison() || len(q.items) >= q.threshold) {
		q.ready = true
	}
	ready := q.ready
	q.mu.Unlock()
	if ready {
		q.cond.Broadcast()
	}
}

// Take returns the best queued result once the gate is open.  It returns
// ctx.Err() if ctx ends first.
func (q *ResultQueue) Take(ctx context.Context) (*Result, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.ready || len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
	return heap.Pop(&q.items).(*Result), nil
}

// Len returns the number of queued results, including PoisonResult.
func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready reports whether the gate has opened.
func (q *ResultQueue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready
}
