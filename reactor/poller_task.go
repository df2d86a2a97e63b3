// File: reactor/poller_task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PollerTask multiplexes three event sources on one goroutine: descriptor
// readiness from the poll set, control messages posted by other goroutines,
// and deadline timers. The poll set exists only while the loop runs.

package reactor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/core/concurrency"
	"github.com/momentics/mrcp-reactor/internal/logging"
	"github.com/momentics/mrcp-reactor/internal/task"
)

// SignalHandler receives readiness events for descriptors registered in the
// task's poll set. It runs on the task goroutine.
type SignalHandler[T any] func(obj T, ev api.Event)

// PollerTask is a reactor task carrying a user object of type T.
type PollerTask[T any] struct {
	base    *task.Task
	cfg     Config
	handler SignalHandler[T]
	obj     T
	log     *zap.Logger

	// life guards the poll set pointer; signal holds it shared so the
	// poll set cannot be closed under a wakeup.
	life    sync.RWMutex
	pollset api.PollSet

	// guard covers every push and pop on queue, nothing else.
	guard sync.Mutex
	queue *concurrency.ControlQueue[*api.Message]

	// touched by the task goroutine only
	timers *concurrency.TimerQueue

	stats counters
}

// New creates a poller task. handler receives readiness events, obj is
// handed back to it unchanged.
func New[T any](cfg Config, handler SignalHandler[T], obj T) (*PollerTask[T], error) {
	if handler == nil {
		return nil, api.WrapError(api.ErrCodeInvalidArgument, "reactor: nil signal handler", api.ErrInvalidArgument).
			WithContext("task", cfg.Name)
	}
	cfg = cfg.withDefaults()
	p := &PollerTask[T]{
		cfg:     cfg,
		handler: handler,
		obj:     obj,
		log:     logging.OrNop(cfg.Logger).Named(cfg.Name),
		queue:   concurrency.NewControlQueue[*api.Message](cfg.QueueCapacity),
		timers:  concurrency.NewTimerQueue(),
	}
	base, err := task.New(task.Config{
		Name:    cfg.Name,
		Pool:    cfg.MessagePool,
		Process: cfg.Process,
		Logger:  cfg.Logger,
	}, taskHooks[T]{p})
	if err != nil {
		return nil, err
	}
	p.base = base
	return p, nil
}

// Start launches the task goroutine and blocks until the poll set is
// created and the loop is about to wait, or until creation failed.
func (p *PollerTask[T]) Start() error {
	return p.base.Start()
}

// Terminate asks the loop to stop and waits for it. Terminating a task that
// is not running returns nil at once.
func (p *PollerTask[T]) Terminate() error {
	return p.base.Terminate(true)
}

// Destroy terminates the task if needed and releases its resources.
func (p *PollerTask[T]) Destroy() error {
	return p.base.Destroy()
}

// Name returns the task name.
func (p *PollerTask[T]) Name() string { return p.cfg.Name }

// Object returns the user object supplied at creation.
func (p *PollerTask[T]) Object() T { return p.obj }

// Logger returns the task logger.
func (p *PollerTask[T]) Logger() *zap.Logger { return p.log }

// Done is closed when the current run has returned.
func (p *PollerTask[T]) Done() <-chan struct{} { return p.base.Done() }

// Err returns the result of the last completed run.
func (p *PollerTask[T]) Err() error { return p.base.Err() }

// PollSet returns the live poll set, or nil outside the run loop.
// Registering descriptors is only safe from the task goroutine.
func (p *PollerTask[T]) PollSet() api.PollSet {
	p.life.RLock()
	defer p.life.RUnlock()
	return p.pollset
}

// CreateTimer creates a disarmed timer driven by this task. Arming, killing
// and firing happen on the task goroutine.
func (p *PollerTask[T]) CreateTimer(proc concurrency.TimerFunc, obj any) *concurrency.Timer {
	return p.timers.CreateTimer(proc, obj)
}

// MessageGet allocates a message from the task pool, nil when exhausted.
func (p *PollerTask[T]) MessageGet() *api.Message {
	return p.base.MessageGet()
}

// Signal posts msg to the task. The message belongs to the task afterwards:
// on api.ErrQueueFull or api.ErrNotRunning it has already been released.
// api.ErrWakeup means the message is queued but the loop may not notice it
// until its next wakeup.
func (p *PollerTask[T]) Signal(msg *api.Message) error {
	return p.base.Signal(msg)
}

// Post allocates a user message carrying subType and data and signals it.
func (p *PollerTask[T]) Post(subType int, data any) error {
	msg := p.base.MessageGet()
	if msg == nil {
		return api.WrapError(api.ErrCodeResourceExhausted, "reactor: post", api.ErrPoolExhausted).
			WithContext("task", p.cfg.Name)
	}
	msg.SubType = subType
	msg.Data = data
	return p.base.Signal(msg)
}

// Stats returns a snapshot of the task counters.
func (p *PollerTask[T]) Stats() Stats {
	p.guard.Lock()
	queued := p.queue.Len()
	p.guard.Unlock()
	s := p.stats.snapshot()
	s.Queued = queued
	s.Running = p.PollSet() != nil
	return s
}

// signal is the cross-goroutine entry: push under the guard, then wake
// the loop outside it. The wakeup is attempted even when the push failed
// so a stalled loop gets nudged into draining a full queue.
func (p *PollerTask[T]) signal(msg *api.Message) error {
	p.life.RLock()
	defer p.life.RUnlock()

	ps := p.pollset
	if ps == nil {
		p.stats.signalFailures.Inc()
		return api.WrapError(api.ErrCodeNotRunning, "reactor: signal", api.ErrNotRunning).
			WithContext("task", p.cfg.Name)
	}

	p.guard.Lock()
	queued := p.queue.Push(msg)
	p.guard.Unlock()

	werr := ps.Wakeup()
	switch {
	case !queued:
		p.stats.signalFailures.Inc()
		return api.WrapError(api.ErrCodeResourceExhausted, "reactor: signal", api.ErrQueueFull).
			WithContext("task", p.cfg.Name).
			WithContext("capacity", p.queue.Cap())
	case werr != nil:
		p.stats.signalFailures.Inc()
		p.log.Warn("failed to signal control message", zap.Error(werr))
		return api.WrapError(api.ErrCodeWakeup, "reactor: signal", errors.Join(api.ErrWakeup, werr)).
			WithContext("task", p.cfg.Name)
	}
	p.stats.signals.Inc()
	return nil
}

// run is the task goroutine body.
func (p *PollerTask[T]) run(t *task.Task) error {
	ps, err := p.cfg.NewPollSet(p.cfg.MaxPollSetSize)
	if err != nil {
		p.log.Warn("failed to create pollset", zap.Int("size", p.cfg.MaxPollSetSize), zap.Error(err))
		return api.WrapError(api.ErrCodeResourceExhausted, "reactor: create pollset", errors.Join(api.ErrPollSetCreate, err)).
			WithContext("task", p.cfg.Name)
	}
	p.life.Lock()
	p.pollset = ps
	p.life.Unlock()
	defer p.destroyPollSet()

	p.log.Info("poller task started", zap.Int("pollset_size", p.cfg.MaxPollSetSize))
	t.Ready()

	err = p.loop(t, ps)
	if err != nil && !errors.Is(err, api.ErrStop) {
		p.log.Warn("poller task stopped on processing error", zap.Error(err))
		return err
	}
	p.log.Info("poller task stopped")
	return nil
}

func (p *PollerTask[T]) loop(t *task.Task, ps api.PollSet) error {
	mark := p.cfg.Now()
	for {
		timeout := time.Duration(-1)
		d, armed := p.timers.NearestDeadline()
		if armed {
			timeout = d
		}
		p.log.Debug("wait for task messages", zap.Duration("timeout", timeout), zap.Bool("timer", armed))

		events, err := ps.Wait(timeout)
		now := p.cfg.Now()
		if armed {
			// account for the wait before dispatch can arm new timers
			p.timers.Elapse(now.Sub(mark))
		}
		mark = now
		switch {
		case err == nil:
		case errors.Is(err, api.ErrPollTimeout):
			p.stats.pollTimeouts.Inc()
		case errors.Is(err, api.ErrPollSetClosed):
			return err
		default:
			p.stats.pollErrors.Inc()
			p.log.Warn("failed to poll", zap.Error(err))
		}

		var stop error
		for _, ev := range events {
			if ps.IsWakeup(ev) {
				if stop = p.processWakeup(t); stop != nil {
					break
				}
				continue
			}
			p.stats.readiness.Inc()
			p.log.Debug("process readiness", zap.Int("fd", ev.Fd), zap.Stringer("events", ev.Events))
			p.handler(p.obj, ev)
		}
		if stop != nil {
			return stop
		}

		if armed {
			if n := p.timers.Advance(0); n > 0 {
				p.stats.timersFired.Add(uint64(n))
			}
		}
	}
}

// processWakeup pops until the queue is empty, one pop per lock, and
// dispatches outside the lock. It returns the first processing error.
func (p *PollerTask[T]) processWakeup(t *task.Task) error {
	var first error
	for {
		p.guard.Lock()
		msg, ok := p.queue.Pop()
		p.guard.Unlock()
		if !ok {
			return first
		}
		p.stats.dispatched.Inc()
		p.log.Debug("process control message", zap.Stringer("type", msg.Type), zap.Int("subtype", msg.SubType))
		if err := t.Process(msg); err != nil && first == nil {
			first = err
		}
	}
}

// destroyPollSet detaches and closes the poll set. Once it is detached no
// signal can queue, so whatever is left is released as dropped.
func (p *PollerTask[T]) destroyPollSet() {
	p.life.Lock()
	ps := p.pollset
	p.pollset = nil
	p.life.Unlock()

	p.releaseQueued()
	if ps == nil {
		return
	}
	if err := ps.Close(); err != nil {
		p.log.Warn("failed to close pollset", zap.Error(err))
	}
}

func (p *PollerTask[T]) releaseQueued() {
	for {
		p.guard.Lock()
		msg, ok := p.queue.Pop()
		p.guard.Unlock()
		if !ok {
			return
		}
		p.stats.dropped.Inc()
		p.base.Release(msg)
	}
}

// taskHooks plugs a PollerTask into the task base.
type taskHooks[T any] struct {
	p *PollerTask[T]
}

func (h taskHooks[T]) Run(t *task.Task) error        { return h.p.run(t) }
func (h taskHooks[T]) Signal(msg *api.Message) error { return h.p.signal(msg) }

func (h taskHooks[T]) OnDestroy() {
	h.p.releaseQueued()
	h.p.log.Debug("poller task destroyed", zap.Uint64("dropped", h.p.stats.dropped.Load()))
}
