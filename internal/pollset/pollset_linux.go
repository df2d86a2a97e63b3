//go:build linux
// +build linux

// File: internal/pollset/pollset_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) poll set with an eventfd wakeup source.

package pollset

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/momentics/mrcp-reactor/api"
)

type epollSet struct {
	registry
	epfd   int
	wfd    int // eventfd used for wakeup
	events []unix.EpollEvent
	ready  []api.Event
	closed atomic.Bool
}

// New creates an epoll-based poll set holding up to capacity descriptors.
func New(capacity int) (api.PollSet, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", api.ErrInvalidArgument, capacity)
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wfd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, ev); err != nil {
		unix.Close(wfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollSet{
		registry: newRegistry(capacity),
		epfd:     epfd,
		wfd:      wfd,
		events:   make([]unix.EpollEvent, capacity+1),
		ready:    make([]api.Event, 0, capacity+1),
	}, nil
}

func (p *epollSet) Add(fd int, events api.IOEvents, data any) error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	if err := p.registry.add(fd, events, data); err != nil {
		return err
	}
	ev := &unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		_ = p.registry.remove(fd)
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *epollSet) Remove(fd int) error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	if err := p.registry.remove(fd); err != nil {
		return err
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epollSet) Wait(timeout time.Duration) ([]api.Event, error) {
	if p.closed.Load() {
		return nil, api.ErrPollSetClosed
	}
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return p.ready[:0], nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	if n == 0 && timeout >= 0 {
		return p.ready[:0], api.ErrPollTimeout
	}
	ready := p.ready[:0]
	for i := 0; i < n; i++ {
		raw := p.events[i]
		fd := int(raw.Fd)
		if fd == p.wfd {
			// reset the counter before the caller drains its queue
			p.drainWakeup()
			ready = append(ready, api.Event{Fd: fd, Events: api.EventRead})
			continue
		}
		data, ok := p.registry.lookup(fd)
		if !ok {
			continue
		}
		ready = append(ready, api.Event{Fd: fd, Events: fromEpoll(raw.Events), Data: data})
	}
	p.ready = ready
	return ready, nil
}

func (p *epollSet) IsWakeup(ev api.Event) bool {
	return ev.Fd == p.wfd && ev.Data == nil
}

func (p *epollSet) Wakeup() error {
	if p.closed.Load() {
		return api.ErrPollSetClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wfd, buf[:])
	if err == unix.EAGAIN {
		// counter saturated, a wakeup is already pending
		return nil
	}
	return err
}

func (p *epollSet) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.wfd)
	return unix.Close(p.epfd)
}

func (p *epollSet) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wfd, buf[:]); err != nil {
			return
		}
	}
}

func toEpoll(events api.IOEvents) uint32 {
	var flags uint32
	if events&api.EventRead != 0 {
		flags |= unix.EPOLLIN
	}
	if events&api.EventWrite != 0 {
		flags |= unix.EPOLLOUT
	}
	return flags
}

func fromEpoll(flags uint32) api.IOEvents {
	var events api.IOEvents
	if flags&unix.EPOLLIN != 0 {
		events |= api.EventRead
	}
	if flags&unix.EPOLLOUT != 0 {
		events |= api.EventWrite
	}
	if flags&unix.EPOLLERR != 0 {
		events |= api.EventError
	}
	if flags&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= api.EventHangup
	}
	return events
}
