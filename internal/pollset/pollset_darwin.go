//go:build darwin
// +build darwin

// File: internal/pollset/pollset_darwin.go
// Author: momentics <momentics@gmail.com>
//
// Darwin kqueue(2) poll set with a non-blocking pipe as wakeup source.

package pollset

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/momentics/mrcp-reactor/api"
)

type kqueueSet struct {
	registry
	kq     int
	rfd    int // pipe read end, registered with kqueue
	wfd    int // pipe write end, written by Wakeup
	events []unix.Kevent_t
	ready  []api.Event
	closed atomic.Bool
}

// New creates a kqueue-based poll set holding up to capacity descriptors.
func New(capacity int) (api.PollSet, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", api.ErrInvalidArgument, capacity)
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		unix.Close(kq)
		return nil, fmt.Errorf("pipe: %w", err)
	}
	rfd, wfd := p[0], p[1]
	_ = unix.SetNonblock(rfd, true)
	_ = unix.SetNonblock(wfd, true)
	unix.CloseOnExec(rfd)
	unix.CloseOnExec(wfd)
	kev := unix.Kevent_t{Ident: uint64(rfd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(rfd)
		unix.Close(wfd)
		unix.Close(kq)
		return nil, fmt.Errorf("kevent add wakeup: %w", err)
	}
	// each descriptor may report a read and a write filter
	return &kqueueSet{
		registry: newRegistry(capacity),
		kq:       kq,
		rfd:      rfd,
		wfd:      wfd,
		events:   make([]unix.Kevent_t, 2*capacity+1),
		ready:    make([]api.Event, 0, 2*capacity+1),
	}, nil
}

func (p *kqueueSet) Add(fd int, events api.IOEvents, data any) error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	if err := p.registry.add(fd, events, data); err != nil {
		return err
	}
	changes := filters(fd, events, unix.EV_ADD)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		_ = p.registry.remove(fd)
		return fmt.Errorf("kevent add: %w", err)
	}
	return nil
}

func (p *kqueueSet) Remove(fd int) error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	p.registry.mu.Lock()
	events := p.registry.fds[fd]
	p.registry.mu.Unlock()
	if err := p.registry.remove(fd); err != nil {
		return err
	}
	changes := filters(fd, events, unix.EV_DELETE)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return fmt.Errorf("kevent delete: %w", err)
	}
	return nil
}

func (p *kqueueSet) Wait(timeout time.Duration) ([]api.Event, error) {
	if p.closed.Load() {
		return nil, api.ErrPollSetClosed
	}
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMillis(timeout)) * int64(time.Millisecond))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return p.ready[:0], nil
		}
		return nil, fmt.Errorf("kevent wait: %w", err)
	}
	if n == 0 && timeout >= 0 {
		return p.ready[:0], api.ErrPollTimeout
	}
	ready := p.ready[:0]
	for i := 0; i < n; i++ {
		raw := p.events[i]
		fd := int(raw.Ident)
		if fd == p.rfd {
			p.drainWakeup()
			ready = append(ready, api.Event{Fd: fd, Events: api.EventRead})
			continue
		}
		data, ok := p.registry.lookup(fd)
		if !ok {
			continue
		}
		var events api.IOEvents
		switch raw.Filter {
		case unix.EVFILT_READ:
			events |= api.EventRead
		case unix.EVFILT_WRITE:
			events |= api.EventWrite
		}
		if raw.Flags&unix.EV_EOF != 0 {
			events |= api.EventHangup
		}
		if raw.Flags&unix.EV_ERROR != 0 {
			events |= api.EventError
		}
		ready = append(ready, api.Event{Fd: fd, Events: events, Data: data})
	}
	p.ready = ready
	return ready, nil
}

func (p *kqueueSet) IsWakeup(ev api.Event) bool {
	return ev.Fd == p.rfd && ev.Data == nil
}

func (p *kqueueSet) Wakeup() error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	_, err := unix.Write(p.wfd, []byte{1})
	if err == unix.EAGAIN {
		// pipe full, a wakeup is already pending
		return nil
	}
	return err
}

func (p *kqueueSet) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.rfd)
	unix.Close(p.wfd)
	return unix.Close(p.kq)
}

func (p *kqueueSet) drainWakeup() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.rfd, buf[:]); err != nil {
			return
		}
	}
}

func filters(fd int, events api.IOEvents, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&api.EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&api.EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}
