// File: internal/task/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package task implements the active-object base shared by every task
// goroutine: start/terminate/destroy lifecycle, ready signalling, message
// allocation and core/user message routing. The behaviour specific to a
// task kind (its run loop, how messages reach it, teardown) is installed
// through Hooks.

package task

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/internal/logging"
	"github.com/momentics/mrcp-reactor/pool"
)

// State enumerates the lifecycle of a Task.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateTerminating
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Hooks is the hook table a task kind installs into the base.
type Hooks interface {
	// Run is the body of the task goroutine. It returns when the task stops.
	Run(t *Task) error
	// Signal delivers msg to the running task. It is called from any
	// goroutine and must not block.
	Signal(msg *api.Message) error
	// OnDestroy releases resources owned by the task kind.
	OnDestroy()
}

// Config holds construction parameters of a Task.
type Config struct {
	Name string
	// Pool allocates messages; a dynamic pool is used when nil.
	Pool pool.MessagePool
	// Process handles user messages on the task goroutine.
	Process api.ProcessFunc
	// AutoReady marks the task ready as soon as its goroutine starts.
	// Tasks that need setup before accepting messages disable it and
	// call Ready themselves.
	AutoReady bool
	Logger    *zap.Logger
}

// Task is the active-object base.
type Task struct {
	name      string
	hooks     Hooks
	pool      pool.MessagePool
	process   api.ProcessFunc
	autoReady bool
	log       *zap.Logger

	state atomic.Int32

	mu        sync.Mutex
	readyCh   chan struct{}
	readyOnce *sync.Once
	doneCh    chan struct{}
	runErr    error
}

// New creates an idle task bound to hooks.
func New(cfg Config, hooks Hooks) (*Task, error) {
	if hooks == nil {
		return nil, fmt.Errorf("task %q: %w: nil hooks", cfg.Name, api.ErrInvalidArgument)
	}
	if cfg.Pool == nil {
		cfg.Pool = pool.NewDynamicMessagePool()
	}
	if cfg.Name == "" {
		cfg.Name = "task"
	}
	t := &Task{
		name:      cfg.Name,
		hooks:     hooks,
		pool:      cfg.Pool,
		process:   cfg.Process,
		autoReady: cfg.AutoReady,
		log:       logging.OrNop(cfg.Logger).Named(cfg.Name),
		readyCh:   make(chan struct{}),
		readyOnce: &sync.Once{},
		doneCh:    make(chan struct{}),
	}
	close(t.doneCh) // not running yet
	return t, nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Logger returns the task's named logger.
func (t *Task) Logger() *zap.Logger { return t.log }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed when the current run has returned.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneCh
}

// Err returns the result of the last completed run.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runErr
}

// Start launches the task goroutine and blocks until the task is ready to
// receive messages or its run has ended. A run that ends before becoming
// ready yields its error.
func (t *Task) Start() error {
	t.mu.Lock()
	switch t.State() {
	case StateIdle:
	case StateDestroyed:
		t.mu.Unlock()
		return api.ErrTaskDestroyed
	default:
		t.mu.Unlock()
		return api.ErrAlreadyStarted
	}
	t.readyCh = make(chan struct{})
	t.readyOnce = &sync.Once{}
	t.doneCh = make(chan struct{})
	t.runErr = nil
	t.state.Store(int32(StateStarting))
	ready, done := t.readyCh, t.doneCh
	t.mu.Unlock()

	go t.run(done)

	select {
	case <-ready:
		return nil
	case <-done:
	}
	if err := t.Err(); err != nil {
		return err
	}
	select {
	case <-ready:
		return nil
	default:
		return fmt.Errorf("task %q: %w: exited before ready", t.name, api.ErrNotRunning)
	}
}

func (t *Task) run(done chan struct{}) {
	if t.autoReady {
		t.Ready()
	}
	err := t.hooks.Run(t)
	t.mu.Lock()
	t.runErr = err
	if t.State() != StateDestroyed {
		t.state.Store(int32(StateIdle))
	}
	t.mu.Unlock()
	if err != nil {
		t.log.Warn("task run failed", zap.Error(err))
	} else {
		t.log.Debug("task run completed")
	}
	close(done)
}

// Ready marks the task as ready to process messages and releases Start.
func (t *Task) Ready() {
	t.mu.Lock()
	once, ready := t.readyOnce, t.readyCh
	t.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	t.mu.Unlock()
	once.Do(func() { close(ready) })
}

// Terminate requests the task to stop by posting a core terminate request.
// With wait set it blocks until the run has returned. Terminating a task
// that is not running succeeds immediately.
func (t *Task) Terminate(wait bool) error {
	t.mu.Lock()
	if t.State() == StateStarting {
		ready, done := t.readyCh, t.doneCh
		t.mu.Unlock()
		select {
		case <-ready:
		case <-done:
		}
		t.mu.Lock()
	}
	done := t.doneCh
	switch t.State() {
	case StateRunning:
		t.state.Store(int32(StateTerminating))
		t.mu.Unlock()
	case StateTerminating:
		t.mu.Unlock()
		if wait {
			<-done
		}
		return nil
	default:
		t.mu.Unlock()
		return nil
	}

	// core messages bypass the pool so lifecycle requests get through
	// even when callers have exhausted it
	msg := &api.Message{Type: api.MessageCore, SubType: api.CoreTerminateRequest}

	if err := t.Signal(msg); err != nil {
		switch {
		case errors.Is(err, api.ErrNotRunning):
			// the loop is already on its way out
		case errors.Is(err, api.ErrWakeup):
			t.log.Warn("terminate request queued without wakeup", zap.Error(err))
			return err
		default:
			t.state.CompareAndSwap(int32(StateTerminating), int32(StateRunning))
			return fmt.Errorf("task %q: terminate: %w", t.name, err)
		}
	}
	if wait {
		<-done
	}
	return nil
}

// Destroy terminates the task if needed and runs the on-destroy hook once.
func (t *Task) Destroy() error {
	if t.State() == StateDestroyed {
		return nil
	}
	if err := t.Terminate(true); err != nil {
		return err
	}
	t.mu.Lock()
	if t.State() == StateDestroyed {
		t.mu.Unlock()
		return nil
	}
	t.state.Store(int32(StateDestroyed))
	t.mu.Unlock()
	t.hooks.OnDestroy()
	t.log.Debug("task destroyed")
	return nil
}

// MessageGet allocates a user message from the task's pool. It returns nil
// when a bounded pool is exhausted.
func (t *Task) MessageGet() *api.Message {
	return t.pool.Acquire()
}

// Release returns msg to the task's pool without processing it. Core
// messages are not pooled and are left to the GC.
func (t *Task) Release(msg *api.Message) {
	if msg != nil && msg.Type == api.MessageUser {
		t.pool.Release(msg)
	}
}

// Signal hands msg to the task through its Signal hook. When the message
// was not queued (any error other than ErrWakeup) it goes back to the pool.
func (t *Task) Signal(msg *api.Message) error {
	if msg == nil {
		return api.ErrInvalidArgument
	}
	err := t.hooks.Signal(msg)
	if err != nil && !errors.Is(err, api.ErrWakeup) {
		t.Release(msg)
	}
	return err
}

// Process routes msg on the task goroutine and releases it afterwards.
// A core terminate request yields api.ErrStop.
func (t *Task) Process(msg *api.Message) error {
	defer t.Release(msg)
	switch msg.Type {
	case api.MessageCore:
		if msg.SubType == api.CoreTerminateRequest {
			t.log.Debug("terminate requested")
			return api.ErrStop
		}
		return nil
	default:
		if t.process == nil {
			return nil
		}
		return t.process(msg)
	}
}
