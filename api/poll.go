// Package api
// Author: momentics
//
// Readiness multiplexing contract consumed by the poller task.

package api

import "time"

// IOEvents is a bit set of readiness conditions.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

func (e IOEvents) String() string {
	if e == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if e&EventRead != 0 {
		add("read")
	}
	if e&EventWrite != 0 {
		add("write")
	}
	if e&EventError != 0 {
		add("error")
	}
	if e&EventHangup != 0 {
		add("hangup")
	}
	return s
}

// Event is one readiness notification returned by PollSet.Wait.
type Event struct {
	Fd     int      // descriptor that became ready
	Events IOEvents // ready conditions
	Data   any      // value supplied at Add time; nil for the wakeup event
}

// PollSet waits for readiness across registered descriptors plus one
// synthetic wakeup source.
//
// Wait, Add and Remove are meant for the owning reactor goroutine. Wakeup is
// safe from any goroutine.
type PollSet interface {
	// Add registers fd for the given conditions.
	Add(fd int, events IOEvents, data any) error

	// Remove unregisters fd.
	Remove(fd int) error

	// Wait blocks until at least one event is ready, the timeout expires or
	// Wakeup is called. timeout < 0 blocks indefinitely. A finite wait that
	// yields nothing returns ErrPollTimeout. The returned slice is reused by
	// the next call.
	Wait(timeout time.Duration) ([]Event, error)

	// IsWakeup reports whether ev is the synthetic wakeup event.
	IsWakeup(ev Event) bool

	// Wakeup forces a blocked Wait to return.
	Wakeup() error

	// Close releases the underlying descriptors.
	Close() error
}

// PollSetFactory creates a poll set able to hold capacity descriptors.
type PollSetFactory func(capacity int) (PollSet, error)
