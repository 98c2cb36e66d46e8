package sim

import (
	"container/heap"

	"github.com/inference-sim/popsim/sim/model"
)

// plan is a queue entry. A canceled plan stays in the queue with its payload
// cleared and is skipped when it reaches the head.
type plan struct {
	owner    model.ComponentID
	key      string
	time     float64
	seq      uint64
	payload  any
	canceled bool
}

// PlanQueue implements a priority queue with deterministic ordering.
// Ordering: time → sequence number, so equal times run in scheduling order.
type PlanQueue struct {
	plans []*plan
}

// NewPlanQueue creates a new plan queue
func NewPlanQueue() *PlanQueue {
	q := &PlanQueue{
		plans: make([]*plan, 0),
	}
	heap.Init(q)
	return q
}

// Len implements heap.Interface
func (q *PlanQueue) Len() int {
	return len(q.plans)
}

// Less implements heap.Interface with deterministic ordering
func (q *PlanQueue) Less(i, j int) bool {
	pi, pj := q.plans[i], q.plans[j]
	if pi.time != pj.time {
		return pi.time < pj.time
	}
	return pi.seq < pj.seq
}

// Swap implements heap.Interface
func (q *PlanQueue) Swap(i, j int) {
	q.plans[i], q.plans[j] = q.plans[j], q.plans[i]
}

// Push implements heap.Interface
func (q *PlanQueue) Push(x interface{}) {
	q.plans = append(q.plans, x.(*plan))
}

// Pop implements heap.Interface
func (q *PlanQueue) Pop() interface{} {
	old := q.plans
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.plans = old[0 : n-1]
	return item
}

func (q *PlanQueue) schedule(p *plan) {
	heap.Push(q, p)
}

// popNext removes and returns the head entry, tombstones included.
func (q *PlanQueue) popNext() *plan {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*plan)
}

func (q *PlanQueue) peek() *plan {
	if q.Len() == 0 {
		return nil
	}
	return q.plans[0]
}
