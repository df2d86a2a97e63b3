// File: facade/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server aggregates the engines and the control surface behind one type.
// Each engine runs on its own poller task; configuration is validated
// through the control store and the log level follows reloads.

package facade

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/adapters"
	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/control"
	"github.com/momentics/mrcp-reactor/engine"
	"github.com/momentics/mrcp-reactor/internal/logging"
	"github.com/momentics/mrcp-reactor/reactor"
)

// Server is the main facade type.
type Server struct {
	cfg     *Config
	log     *zap.Logger
	level   *zap.AtomicLevel // nil when the logger came from Config
	control *adapters.ControlAdapter
	engines map[string]*engine.Engine
	order   []string

	mu      sync.Mutex // protects started
	started bool
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*Server)(nil)

// New builds the server and its engines. Nothing runs until Start.
func New(cfg *Config, responder engine.Responder) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	store, err := control.NewValidatedConfigStore(control.ServerSchema)
	if err != nil {
		return nil, fmt.Errorf("facade: %w", err)
	}
	if err := store.SetConfig(cfg.Values()); err != nil {
		return nil, fmt.Errorf("facade: invalid config: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		control: adapters.NewControlAdapter(store),
		engines: make(map[string]*engine.Engine, len(cfg.Engines)),
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger
	} else {
		l, lvl, err := logging.NewAtomic(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("facade: %w", err)
		}
		s.log, s.level = l, &lvl
	}

	for _, ec := range cfg.Engines {
		name := ec.name()
		if _, dup := s.engines[name]; dup {
			return nil, fmt.Errorf("facade: %w: duplicate engine %q", api.ErrInvalidArgument, name)
		}
		e, err := engine.New(engine.Config{
			Name:           name,
			Kind:           ec.Kind,
			RequestTimeout: ec.RequestTimeout,
			Reactor: reactor.Config{
				MaxPollSetSize: ec.PollSetSize,
				QueueCapacity:  ec.QueueCapacity,
				Logger:         s.log,
				NewPollSet:     cfg.NewPollSet,
			},
		}, responder)
		if err != nil {
			return nil, fmt.Errorf("facade: %w", err)
		}
		s.engines[e.Name()] = e
		s.order = append(s.order, e.Name())
		if cfg.EnableDebug {
			s.registerProbes(e)
		}
	}

	s.control.OnReload(s.applyLogLevel)
	return s, nil
}

func (s *Server) registerProbes(e *engine.Engine) {
	prefix := "engine." + e.Name()
	s.control.RegisterDebugProbe(prefix+".channels", func() any { return e.Channels() })
	s.control.RegisterDebugProbe(prefix+".running", func() any { return e.Stats().Running })
}

func (s *Server) applyLogLevel() {
	if s.level == nil {
		return
	}
	v, ok := s.control.Store().Get(control.KeyLogLevel)
	if !ok {
		return
	}
	name, _ := v.(string)
	lvl, err := logging.ParseLevel(name)
	if err != nil {
		return
	}
	if s.level.Level() != lvl {
		s.level.SetLevel(lvl)
		s.log.Info("log level changed", zap.Stringer("level", lvl))
	}
}

// Start opens every engine in configuration order. If one fails, those
// already opened are closed again. Subsequent calls have no effect.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	for i, name := range s.order {
		if err := s.engines[name].Open(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = s.engines[s.order[j]].Close()
			}
			return err
		}
	}
	s.started = true
	s.log.Info("server started", zap.Strings("engines", s.order))
	return nil
}

// Stop closes engines in reverse order. Calling Stop on a server that is
// not started is a no-op. A closed server cannot be started again.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		if err := s.engines[s.order[i]].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.started = false
	s.log.Info("server stopped")
	_ = s.log.Sync()
	return errors.Join(errs...)
}

// Shutdown implements api.GracefulShutdown by delegating to Stop().
func (s *Server) Shutdown() error {
	return s.Stop()
}

// Engine returns the engine with the given name.
func (s *Server) Engine(name string) (*engine.Engine, bool) {
	e, ok := s.engines[name]
	return e, ok
}

// Engines returns engine names in configuration order.
func (s *Server) Engines() []string {
	return append([]string(nil), s.order...)
}

// Control returns the Control interface for dynamic config and metrics.
func (s *Server) Control() api.Control {
	return s.control
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger {
	return s.log
}

// Stats publishes current engine counters when metrics are enabled and
// returns the merged metrics and debug view.
func (s *Server) Stats() map[string]any {
	if s.cfg.EnableMetrics {
		for _, name := range s.order {
			s.control.PublishMetrics("engine."+name, s.engines[name].Stats().Map())
		}
	}
	return s.control.Stats()
}
