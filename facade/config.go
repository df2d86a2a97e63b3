// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/control"
	"github.com/momentics/mrcp-reactor/core/concurrency"
	"github.com/momentics/mrcp-reactor/engine"
	"github.com/momentics/mrcp-reactor/reactor"
)

// EngineConfig describes one hosted engine.
type EngineConfig struct {
	Name           string        // defaults to the kind
	Kind           engine.Kind   // resource served
	PollSetSize    int           // descriptors the engine task can watch
	QueueCapacity  int           // control queue bound of the engine task
	RequestTimeout time.Duration // default START timeout
}

func (ec EngineConfig) name() string {
	if ec.Name != "" {
		return ec.Name
	}
	return string(ec.Kind)
}

// Config holds parameters immutable per run. Only the log level follows
// later updates made through Control.
type Config struct {
	LogLevel      string         // debug, info, warn or error
	Engines       []EngineConfig // engines, opened in this order
	EnableMetrics bool           // publish engine counters in Stats
	EnableDebug   bool           // register per-engine debug probes

	// Logger replaces the logger built from LogLevel.
	Logger *zap.Logger
	// NewPollSet overrides the platform poll set for every engine.
	NewPollSet api.PollSetFactory
}

// DefaultConfig returns default configuration values: one recognizer and
// one synthesizer with default task sizing.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Engines: []EngineConfig{
			{
				Kind:           engine.KindRecognizer,
				PollSetSize:    reactor.DefaultMaxPollSetSize,
				QueueCapacity:  concurrency.DefaultControlQueueSize,
				RequestTimeout: engine.DefaultRequestTimeout,
			},
			{
				Kind:           engine.KindSynthesizer,
				PollSetSize:    reactor.DefaultMaxPollSetSize,
				QueueCapacity:  concurrency.DefaultControlQueueSize,
				RequestTimeout: engine.DefaultRequestTimeout,
			},
		},
		EnableMetrics: true,
		EnableDebug:   true,
	}
}

// Values flattens the config into control store keys.
func (c *Config) Values() map[string]any {
	v := map[string]any{
		control.KeyMetricsEnabled: c.EnableMetrics,
		control.KeyDebugEnabled:   c.EnableDebug,
	}
	if c.LogLevel != "" {
		v[control.KeyLogLevel] = c.LogLevel
	}
	for _, ec := range c.Engines {
		name := ec.name()
		if ec.PollSetSize > 0 {
			v[control.EngineKey(name, control.FieldPollSetSize)] = ec.PollSetSize
		}
		if ec.QueueCapacity > 0 {
			v[control.EngineKey(name, control.FieldQueueCapacity)] = ec.QueueCapacity
		}
		if ec.RequestTimeout > 0 {
			v[control.EngineKey(name, control.FieldRequestTimeout)] = ec.RequestTimeout.Milliseconds()
		}
	}
	return v
}

// ConfigFromStore overlays the values held by store onto a copy of base
// (DefaultConfig when nil). Engines are taken from base; the store only
// tunes them.
func ConfigFromStore(store *control.ConfigStore, base *Config) (*Config, error) {
	if base == nil {
		base = DefaultConfig()
	}
	cfg := *base
	cfg.Engines = append([]EngineConfig(nil), base.Engines...)
	snap := store.GetSnapshot()

	if v, ok := snap[control.KeyLogLevel]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("facade: %s: want string, got %T", control.KeyLogLevel, v)
		}
		cfg.LogLevel = s
	}
	for key, dst := range map[string]*bool{
		control.KeyMetricsEnabled: &cfg.EnableMetrics,
		control.KeyDebugEnabled:   &cfg.EnableDebug,
	} {
		if v, ok := snap[key]; ok {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("facade: %s: want bool, got %T", key, v)
			}
			*dst = b
		}
	}

	for i := range cfg.Engines {
		ec := &cfg.Engines[i]
		name := ec.name()
		if err := readInt(snap, control.EngineKey(name, control.FieldPollSetSize), &ec.PollSetSize); err != nil {
			return nil, err
		}
		if err := readInt(snap, control.EngineKey(name, control.FieldQueueCapacity), &ec.QueueCapacity); err != nil {
			return nil, err
		}
		ms := -1
		if err := readInt(snap, control.EngineKey(name, control.FieldRequestTimeout), &ms); err != nil {
			return nil, err
		}
		if ms >= 0 {
			ec.RequestTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	return &cfg, nil
}

func readInt(snap map[string]any, key string, dst *int) error {
	v, ok := snap[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case float64:
		if n != float64(int(n)) {
			return fmt.Errorf("facade: %s: %v is not an integer", key, n)
		}
		*dst = int(n)
	default:
		return fmt.Errorf("facade: %s: want integer, got %T", key, v)
	}
	return nil
}
