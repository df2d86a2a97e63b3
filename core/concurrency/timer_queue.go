// File: core/concurrency/timer_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TimerQueue keeps deadline callbacks ordered by their remaining time and
// is driven by elapsed-time deltas instead of the wall clock. Given the same
// sequence of Advance calls, the same callbacks fire in the same order, which
// keeps the queue testable with a simulated clock.
//
// The queue is owned by a single goroutine; it is not synchronized.

package concurrency

import (
	"container/heap"
	"time"

	"github.com/momentics/mrcp-reactor/api"
)

// TimerFunc is invoked when a timer expires.
type TimerFunc func(t *Timer)

// Timer is a one-shot deadline callback owned by a TimerQueue.
// A new timer is disarmed; Set arms it and Kill disarms it.
type Timer struct {
	queue     *TimerQueue
	proc      TimerFunc
	obj       any
	scheduled time.Duration // position on the queue's elapsed axis
	seq       uint64        // arming order, breaks deadline ties
	gen       uint64        // bumped on every Set/Kill
	index     int           // heap slot, -1 when not queued
	armed     bool
}

// Object returns the context supplied at creation.
func (t *Timer) Object() any { return t.obj }

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool { return t.armed }

// Set arms the timer to fire after timeout, replacing any pending deadline.
func (t *Timer) Set(timeout time.Duration) error {
	if t.queue == nil {
		return api.ErrTimerDetached
	}
	if timeout < 0 {
		return api.ErrInvalidArgument
	}
	q := t.queue
	if t.index >= 0 {
		heap.Remove(&q.heap, t.index)
	}
	if q.heap.Len() == 0 && !q.advancing {
		q.elapsed = 0
	}
	q.seq++
	t.seq = q.seq
	t.gen++
	t.scheduled = q.elapsed + timeout
	t.armed = true
	heap.Push(&q.heap, t)
	return nil
}

// Kill disarms the timer. Killing a disarmed timer is a no-op.
func (t *Timer) Kill() error {
	if t.queue == nil {
		return api.ErrTimerDetached
	}
	if t.index >= 0 {
		heap.Remove(&t.queue.heap, t.index)
	}
	t.gen++
	t.armed = false
	return nil
}

// Remaining returns the time left before the timer fires.
func (t *Timer) Remaining() (time.Duration, bool) {
	if !t.armed || t.index < 0 {
		return 0, false
	}
	d := t.scheduled - t.queue.elapsed
	if d < 0 {
		d = 0
	}
	return d, true
}

// TimerQueue orders armed timers by ascending deadline.
type TimerQueue struct {
	heap      timerHeap
	elapsed   time.Duration
	seq       uint64
	advancing bool
	due       []dueTimer
}

type dueTimer struct {
	t   *Timer
	gen uint64
}

// NewTimerQueue creates an empty queue.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{}
}

// CreateTimer creates a disarmed timer bound to this queue.
func (q *TimerQueue) CreateTimer(proc TimerFunc, obj any) *Timer {
	return &Timer{queue: q, proc: proc, obj: obj, index: -1}
}

// Len returns the number of armed timers.
func (q *TimerQueue) Len() int {
	return q.heap.Len()
}

// NearestDeadline returns the time until the earliest armed timer fires.
// ok is false when no timer is armed.
func (q *TimerQueue) NearestDeadline() (d time.Duration, ok bool) {
	if q.heap.Len() == 0 {
		return 0, false
	}
	d = q.heap[0].scheduled - q.elapsed
	if d < 0 {
		d = 0
	}
	return d, true
}

// Elapse moves the queue forward by elapsed without running callbacks; the
// next Advance fires whatever became due. It lets a caller account for time
// spent waiting before it runs other work that may arm new timers.
func (q *TimerQueue) Elapse(elapsed time.Duration) {
	if q.heap.Len() == 0 {
		q.elapsed = 0
		return
	}
	if elapsed > 0 {
		q.elapsed += elapsed
	}
}

// Advance moves the queue forward by elapsed and fires, in ascending
// deadline order, every timer that became due. Timers re-armed by a
// callback fire no earlier than the next Advance; a due timer killed by an
// earlier callback is skipped. It returns the number of callbacks run.
func (q *TimerQueue) Advance(elapsed time.Duration) int {
	if q.heap.Len() == 0 {
		q.elapsed = 0
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	q.elapsed += elapsed

	due := q.due[:0]
	for q.heap.Len() > 0 && q.heap[0].scheduled <= q.elapsed {
		t := heap.Pop(&q.heap).(*Timer)
		due = append(due, dueTimer{t: t, gen: t.gen})
	}

	fired := 0
	q.advancing = true
	for i := range due {
		t := due[i].t
		due[i].t = nil
		if t.gen != due[i].gen || !t.armed {
			continue
		}
		t.armed = false
		fired++
		if t.proc != nil {
			t.proc(t)
		}
	}
	q.advancing = false
	q.due = due[:0]

	if q.heap.Len() == 0 {
		q.elapsed = 0
	}
	return fired
}

// timerHeap implements heap.Interface over armed timers.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].scheduled != h[j].scheduled {
		return h[i].scheduled < h[j].scheduled
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
