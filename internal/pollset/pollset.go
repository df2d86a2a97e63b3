// File: internal/pollset/pollset.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package pollset provides the readiness multiplexer used by poller tasks:
// epoll + eventfd on Linux, kqueue + pipe on Darwin. Each set carries one
// extra wakeup source that other goroutines trigger through Wakeup.

package pollset

import (
	"sync"
	"time"

	"github.com/momentics/mrcp-reactor/api"
)

// registry tracks registered descriptors and enforces the capacity bound.
type registry struct {
	mu       sync.Mutex
	capacity int
	fds      map[int]api.IOEvents
	data     map[int]any
}

func newRegistry(capacity int) registry {
	return registry{
		capacity: capacity,
		fds:      make(map[int]api.IOEvents, capacity),
		data:     make(map[int]any, capacity),
	}
}

func (r *registry) add(fd int, events api.IOEvents, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	if len(r.fds) >= r.capacity {
		return api.ErrPollSetFull
	}
	r.fds[fd] = events
	r.data[fd] = data
	return nil
}

func (r *registry) remove(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; !ok {
		return api.ErrNotRegistered
	}
	delete(r.fds, fd)
	delete(r.data, fd)
	return nil
}

func (r *registry) lookup(fd int) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.fds[fd]
	return r.data[fd], ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fds)
}

// timeoutMillis converts a wait timeout to the millisecond argument of the
// poll syscalls, rounding up so a pending deadline is never undershot.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	const maxMs = int64(^uint32(0) >> 1)
	if int64(ms) > maxMs {
		return int(maxMs)
	}
	return int(ms)
}
