// File: engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package engine hosts a resource engine on a poller task. Callers on any
// goroutine post channel operations; the task goroutine owns all channel
// state and answers through a Responder.

package engine

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/core/concurrency"
	"github.com/momentics/mrcp-reactor/internal/logging"
	"github.com/momentics/mrcp-reactor/reactor"
)

// DefaultRequestTimeout applies to START requests without a timeout.
const DefaultRequestTimeout = 5 * time.Second

// message sub types
const (
	msgOpenChannel = iota + 1
	msgCloseChannel
	msgRequestProcess
)

type requestEnvelope struct {
	channel string
	req     Request
}

// Config describes one engine.
type Config struct {
	Name           string
	Kind           Kind
	RequestTimeout time.Duration
	Reactor        reactor.Config // Name and Process are set by the engine
}

type channel struct {
	id     string
	timer  *concurrency.Timer
	active *Request
}

// Engine serves channels of one resource kind.
type Engine struct {
	name      string
	kind      Kind
	timeout   time.Duration
	responder Responder
	log       *zap.Logger
	task      *reactor.PollerTask[*Engine]

	channels map[string]*channel // task goroutine only
	open     atomic.Int64
}

// New creates an engine; Open starts it.
func New(cfg Config, responder Responder) (*Engine, error) {
	if responder == nil {
		return nil, fmt.Errorf("engine %q: %w: nil responder", cfg.Name, api.ErrInvalidArgument)
	}
	if cfg.Name == "" {
		cfg.Name = string(cfg.Kind)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("engine: %w: no name or kind", api.ErrInvalidArgument)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	e := &Engine{
		name:      cfg.Name,
		kind:      cfg.Kind,
		timeout:   cfg.RequestTimeout,
		responder: responder,
		log:       logging.OrNop(cfg.Reactor.Logger).Named(cfg.Name),
		channels:  make(map[string]*channel),
	}
	rc := cfg.Reactor
	rc.Name = cfg.Name + "-task"
	rc.Process = e.process
	task, err := reactor.New(rc, onReadiness, e)
	if err != nil {
		return nil, fmt.Errorf("engine %q: %w", cfg.Name, err)
	}
	e.task = task
	return e, nil
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Kind returns the resource kind.
func (e *Engine) Kind() Kind { return e.kind }

// Open starts the engine task.
func (e *Engine) Open() error {
	if err := e.task.Start(); err != nil {
		return fmt.Errorf("engine %q: open: %w", e.name, err)
	}
	e.log.Info("engine opened", zap.String("kind", string(e.kind)))
	return nil
}

// Close stops the engine task and releases it. Channels still open are
// dropped without completion events.
func (e *Engine) Close() error {
	if err := e.task.Destroy(); err != nil {
		return fmt.Errorf("engine %q: close: %w", e.name, err)
	}
	e.log.Info("engine closed")
	return nil
}

// OpenChannel asks the engine to open a channel; the answer arrives
// through Responder.ChannelOpened.
func (e *Engine) OpenChannel(id string) error {
	return e.task.Post(msgOpenChannel, id)
}

// CloseChannel asks the engine to close a channel.
func (e *Engine) CloseChannel(id string) error {
	return e.task.Post(msgCloseChannel, id)
}

// Process posts a request for a channel.
func (e *Engine) Process(id string, req Request) error {
	return e.task.Post(msgRequestProcess, requestEnvelope{channel: id, req: req})
}

// Channels returns the number of open channels.
func (e *Engine) Channels() int64 { return e.open.Load() }

// Stats returns the engine task counters.
func (e *Engine) Stats() reactor.Stats { return e.task.Stats() }

func (e *Engine) process(msg *api.Message) error {
	switch msg.SubType {
	case msgOpenChannel:
		e.openChannel(msg.Data.(string))
	case msgCloseChannel:
		e.closeChannel(msg.Data.(string))
	case msgRequestProcess:
		env := msg.Data.(requestEnvelope)
		e.dispatch(env.channel, env.req)
	default:
		e.log.Warn("unknown engine message", zap.Int("subtype", msg.SubType))
	}
	return nil
}

func (e *Engine) openChannel(id string) {
	if _, ok := e.channels[id]; ok {
		e.log.Warn("channel already open", zap.String("channel", id))
		e.responder.ChannelOpened(id, false)
		return
	}
	ch := &channel{id: id}
	ch.timer = e.task.CreateTimer(e.onTimeout, ch)
	e.channels[id] = ch
	e.open.Inc()
	e.log.Debug("channel opened", zap.String("channel", id))
	e.responder.ChannelOpened(id, true)
}

func (e *Engine) closeChannel(id string) {
	if ch, ok := e.channels[id]; ok {
		_ = ch.timer.Kill()
		ch.active = nil
		delete(e.channels, id)
		e.open.Dec()
		e.log.Debug("channel closed", zap.String("channel", id))
	}
	e.responder.ChannelClosed(id)
}

func (e *Engine) dispatch(id string, req Request) {
	ch, ok := e.channels[id]
	if !ok {
		e.log.Warn("request on unknown channel", zap.String("channel", id), zap.Stringer("method", req.Method))
		e.responder.Response(id, req, StatusFailed)
		return
	}
	switch req.Method {
	case MethodStart:
		e.start(ch, req)
	case MethodInput:
		e.input(ch, req)
	case MethodStop:
		e.stop(ch, req)
	default:
		e.responder.Response(id, req, StatusFailed)
	}
}

func (e *Engine) start(ch *channel, req Request) {
	if ch.active != nil {
		e.log.Warn("request already in progress",
			zap.String("channel", ch.id), zap.Uint64("active", ch.active.ID), zap.Uint64("request", req.ID))
		e.responder.Response(ch.id, req, StatusFailed)
		return
	}
	if req.Timeout <= 0 {
		req.Timeout = e.timeout
	}
	if err := ch.timer.Set(req.Timeout); err != nil {
		e.log.Warn("failed to arm request timer", zap.String("channel", ch.id), zap.Error(err))
		e.responder.Response(ch.id, req, StatusFailed)
		return
	}
	active := req
	ch.active = &active
	e.responder.Response(ch.id, req, StatusInProgress)
}

func (e *Engine) input(ch *channel, req Request) {
	if ch.active == nil {
		e.responder.Response(ch.id, req, StatusFailed)
		return
	}
	if req.Final {
		e.responder.Response(ch.id, req, StatusComplete)
		e.complete(ch, CauseSuccess)
		return
	}
	if err := ch.timer.Set(ch.active.Timeout); err != nil {
		// the previous deadline stays armed
		e.log.Warn("failed to restart request timer", zap.String("channel", ch.id), zap.Error(err))
		e.responder.Response(ch.id, req, StatusFailed)
		return
	}
	e.responder.Response(ch.id, req, StatusComplete)
}

func (e *Engine) stop(ch *channel, req Request) {
	e.responder.Response(ch.id, req, StatusComplete)
	if ch.active != nil {
		e.complete(ch, CauseStopped)
	}
}

func (e *Engine) complete(ch *channel, cause Cause) {
	_ = ch.timer.Kill()
	id := ch.active.ID
	ch.active = nil
	e.log.Debug("request complete", zap.String("channel", ch.id), zap.Uint64("request", id), zap.String("cause", string(cause)))
	e.responder.Complete(ch.id, id, cause)
}

func (e *Engine) onTimeout(t *concurrency.Timer) {
	ch := t.Object().(*channel)
	if ch.active == nil {
		return
	}
	id := ch.active.ID
	ch.active = nil
	e.log.Debug("request timed out", zap.String("channel", ch.id), zap.Uint64("request", id))
	e.responder.Complete(ch.id, id, CauseTimeout)
}

func onReadiness(e *Engine, ev api.Event) {
	e.log.Debug("unexpected readiness", zap.Int("fd", ev.Fd), zap.Stringer("events", ev.Events))
}
