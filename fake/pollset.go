// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides deterministic test doubles for the reactor layers.
package fake

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/momentics/mrcp-reactor/api"
)

// WakeupFd is the descriptor reported with the wakeup pseudo-event.
const WakeupFd = -1

// PollSet is an in-memory api.PollSet. Readiness is injected by tests with
// Fire; Wakeup coalesces like an eventfd.
type PollSet struct {
	mu        sync.Mutex
	capacity  int
	fds       map[int]any
	pending   []api.Event
	woken     bool
	closed    bool
	failWaits int
	waitErr   error
	wakeupErr error
	out       []api.Event

	notify  chan struct{}
	Wakeups atomic.Int64
	Waits   atomic.Int64
}

// NewPollSet creates a fake poll set holding up to capacity descriptors.
func NewPollSet(capacity int) (*PollSet, error) {
	if capacity <= 0 {
		return nil, api.ErrInvalidArgument
	}
	return &PollSet{
		capacity: capacity,
		fds:      make(map[int]any),
		notify:   make(chan struct{}, 1),
	}, nil
}

func (p *PollSet) Add(fd int, events api.IOEvents, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return api.ErrPollSetClosed
	case fd < 0:
		return api.ErrInvalidArgument
	case len(p.fds) >= p.capacity:
		return api.ErrPollSetFull
	}
	if _, ok := p.fds[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	p.fds[fd] = data
	return nil
}

func (p *PollSet) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrPollSetClosed
	}
	if _, ok := p.fds[fd]; !ok {
		return api.ErrNotRegistered
	}
	delete(p.fds, fd)
	return nil
}

// Fire queues a readiness event for a registered descriptor and unblocks a
// pending Wait.
func (p *PollSet) Fire(fd int, events api.IOEvents) error {
	p.mu.Lock()
	data, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return api.ErrNotRegistered
	}
	p.pending = append(p.pending, api.Event{Fd: fd, Events: events, Data: data})
	p.mu.Unlock()
	p.kick()
	return nil
}

// FailNextWaits makes the next n calls to Wait return err.
func (p *PollSet) FailNextWaits(n int, err error) {
	p.mu.Lock()
	p.failWaits, p.waitErr = n, err
	p.mu.Unlock()
	p.kick()
}

// SetWakeupError makes Wakeup fail with err; nil restores normal behaviour.
func (p *PollSet) SetWakeupError(err error) {
	p.mu.Lock()
	p.wakeupErr = err
	p.mu.Unlock()
}

// Len returns the number of registered descriptors.
func (p *PollSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds)
}

// Closed reports whether Close was called.
func (p *PollSet) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *PollSet) Wait(timeout time.Duration) ([]api.Event, error) {
	p.Waits.Inc()
	var expired <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, api.ErrPollSetClosed
		}
		if p.failWaits > 0 {
			p.failWaits--
			err := p.waitErr
			p.mu.Unlock()
			return nil, err
		}
		p.out = p.out[:0]
		if p.woken {
			p.woken = false
			p.out = append(p.out, api.Event{Fd: WakeupFd, Events: api.EventRead})
		}
		p.out = append(p.out, p.pending...)
		p.pending = p.pending[:0]
		n := len(p.out)
		p.mu.Unlock()
		if n > 0 {
			return p.out, nil
		}

		select {
		case <-p.notify:
		case <-expired:
			return nil, api.ErrPollTimeout
		}
	}
}

func (p *PollSet) IsWakeup(ev api.Event) bool {
	return ev.Fd == WakeupFd
}

func (p *PollSet) Wakeup() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrPollSetClosed
	}
	if p.wakeupErr != nil {
		err := p.wakeupErr
		p.mu.Unlock()
		return err
	}
	p.woken = true
	p.mu.Unlock()
	p.Wakeups.Inc()
	p.kick()
	return nil
}

func (p *PollSet) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.kick()
	return nil
}

func (p *PollSet) kick() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Factory records every poll set it creates.
type Factory struct {
	mu   sync.Mutex
	sets []*PollSet
}

// New implements api.PollSetFactory.
func (f *Factory) New(capacity int) (api.PollSet, error) {
	ps, err := NewPollSet(capacity)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sets = append(f.sets, ps)
	f.mu.Unlock()
	return ps, nil
}

// Last returns the most recently created poll set, nil if none.
func (f *Factory) Last() *PollSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sets) == 0 {
		return nil
	}
	return f.sets[len(f.sets)-1]
}

// Created returns how many poll sets were made.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

// FailingFactory returns a factory that always fails with err.
func FailingFactory(err error) api.PollSetFactory {
	return func(int) (api.PollSet, error) { return nil, err }
}
