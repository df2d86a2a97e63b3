// File: reactor/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "go.uber.org/atomic"

// Stats is a point-in-time view of a poller task.
type Stats struct {
	Signals        uint64 // messages queued and woken
	SignalFailures uint64 // signals that returned an error
	Dispatched     uint64 // messages popped and processed
	Readiness      uint64 // descriptor events handed to the handler
	TimersFired    uint64
	PollErrors     uint64 // transient wait failures
	PollTimeouts   uint64
	Dropped        uint64 // messages released unprocessed at loop exit
	Queued         int
	Running        bool
}

// Map flattens the snapshot for control.MetricsRegistry.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"signals":         s.Signals,
		"signal_failures": s.SignalFailures,
		"dispatched":      s.Dispatched,
		"readiness":       s.Readiness,
		"timers_fired":    s.TimersFired,
		"poll_errors":     s.PollErrors,
		"poll_timeouts":   s.PollTimeouts,
		"dropped":         s.Dropped,
		"queued":          s.Queued,
		"running":         s.Running,
	}
}

type counters struct {
	signals        atomic.Uint64
	signalFailures atomic.Uint64
	dispatched     atomic.Uint64
	readiness      atomic.Uint64
	timersFired    atomic.Uint64
	pollErrors     atomic.Uint64
	pollTimeouts   atomic.Uint64
	dropped        atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Signals:        c.signals.Load(),
		SignalFailures: c.signalFailures.Load(),
		Dispatched:     c.dispatched.Load(),
		Readiness:      c.readiness.Load(),
		TimersFired:    c.timersFired.Load(),
		PollErrors:     c.pollErrors.Load(),
		PollTimeouts:   c.pollTimeouts.Load(),
		Dropped:        c.dropped.Load(),
	}
}
