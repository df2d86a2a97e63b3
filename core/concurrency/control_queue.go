// File: core/concurrency/control_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ControlQueue is a bounded FIFO of control messages. The backing ring
// buffer grows on demand, so the capacity bound is enforced here: Push fails
// once Len reaches Cap and never evicts. The queue is not synchronized; the
// owner guards every Push and Pop with its own mutex.

package concurrency

import "github.com/eapache/queue"

// DefaultControlQueueSize is used when no capacity is given.
const DefaultControlQueueSize = 100

// ControlQueue is a bounded, non-synchronized FIFO.
type ControlQueue[T any] struct {
	q        *queue.Queue
	capacity int
}

// NewControlQueue creates a queue holding at most capacity items.
// capacity <= 0 selects DefaultControlQueueSize.
func NewControlQueue[T any](capacity int) *ControlQueue[T] {
	if capacity <= 0 {
		capacity = DefaultControlQueueSize
	}
	return &ControlQueue[T]{
		q:        queue.New(),
		capacity: capacity,
	}
}

// Push appends item; returns false if the queue is full.
func (c *ControlQueue[T]) Push(item T) bool {
	if c.q.Length() >= c.capacity {
		return false
	}
	c.q.Add(item)
	return true
}

// Pop removes the oldest item; ok is false when the queue is empty.
func (c *ControlQueue[T]) Pop() (item T, ok bool) {
	if c.q.Length() == 0 {
		return item, false
	}
	return c.q.Remove().(T), true
}

// Peek returns the oldest item without removing it.
func (c *ControlQueue[T]) Peek() (item T, ok bool) {
	if c.q.Length() == 0 {
		return item, false
	}
	return c.q.Peek().(T), true
}

// Len returns the number of queued items.
func (c *ControlQueue[T]) Len() int {
	return c.q.Length()
}

// Cap returns the fixed capacity.
func (c *ControlQueue[T]) Cap() int {
	return c.capacity
}

// Empty reports whether nothing is queued.
func (c *ControlQueue[T]) Empty() bool {
	return c.q.Length() == 0
}
