// File: reactor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/core/concurrency"
	"github.com/momentics/mrcp-reactor/internal/pollset"
	"github.com/momentics/mrcp-reactor/pool"
)

// DefaultMaxPollSetSize is the descriptor capacity used when none is set.
const DefaultMaxPollSetSize = 64

// Config holds parameters fixed at poller task creation.
type Config struct {
	Name           string             // task name, used for logging
	MaxPollSetSize int                // descriptors the poll set can hold
	QueueCapacity  int                // control queue bound
	MessagePool    pool.MessagePool   // message allocator; dynamic when nil
	Process        api.ProcessFunc    // user message handler
	Logger         *zap.Logger        // nil disables logging
	NewPollSet     api.PollSetFactory // poll set constructor; platform default when nil
	Now            func() time.Time   // clock used to advance timers
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Name:           "poller-task",
		MaxPollSetSize: DefaultMaxPollSetSize,
		QueueCapacity:  concurrency.DefaultControlQueueSize,
		NewPollSet:     pollset.New,
		Now:            time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MaxPollSetSize <= 0 {
		c.MaxPollSetSize = d.MaxPollSetSize
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.NewPollSet == nil {
		c.NewPollSet = d.NewPollSet
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	if c.MessagePool == nil {
		c.MessagePool = pool.NewDynamicMessagePool()
	}
	return c
}
