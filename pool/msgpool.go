// File: pool/msgpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Message pools owned by tasks. A dynamic pool grows on demand; a static
// pool hands out at most a fixed number of messages at a time and reports
// exhaustion instead of allocating.

package pool

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/core/concurrency"
)

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool adapts sync.Pool to ObjectPool.
type SyncPool[T any] struct {
	pool sync.Pool
}

// NewSyncPool creates a SyncPool filled on demand by newFn.
func NewSyncPool[T any](newFn func() T) *SyncPool[T] {
	sp := &SyncPool[T]{}
	sp.pool.New = func() any { return newFn() }
	return sp
}

func (sp *SyncPool[T]) Get() T  { return sp.pool.Get().(T) }
func (sp *SyncPool[T]) Put(v T) { sp.pool.Put(v) }

// MessagePool allocates control messages for a task.
type MessagePool interface {
	// Acquire returns a reset message, or nil if the pool is exhausted.
	Acquire() *api.Message
	// Release hands a processed message back.
	Release(msg *api.Message)
	// InUse returns the number of messages acquired and not yet released.
	InUse() int64
}

// DynamicMessagePool is backed by sync.Pool and never runs dry.
type DynamicMessagePool struct {
	pool  ObjectPool[*api.Message]
	inUse atomic.Int64
}

// NewDynamicMessagePool creates a growable message pool.
func NewDynamicMessagePool() *DynamicMessagePool {
	return &DynamicMessagePool{
		pool: NewSyncPool(func() *api.Message { return &api.Message{Type: api.MessageUser} }),
	}
}

func (p *DynamicMessagePool) Acquire() *api.Message {
	msg := p.pool.Get()
	msg.Reset()
	p.inUse.Inc()
	return msg
}

func (p *DynamicMessagePool) Release(msg *api.Message) {
	if msg == nil {
		return
	}
	msg.Reset()
	p.inUse.Dec()
	p.pool.Put(msg)
}

func (p *DynamicMessagePool) InUse() int64 { return p.inUse.Load() }

// StaticMessagePool preallocates size messages kept on a lock-free free
// list.
type StaticMessagePool struct {
	free  *concurrency.RingBuffer[*api.Message]
	size  int64
	inUse atomic.Int64
}

// NewStaticMessagePool creates a pool of exactly size messages.
func NewStaticMessagePool(size int) *StaticMessagePool {
	if size <= 0 {
		size = 1
	}
	p := &StaticMessagePool{
		free: concurrency.NewRingBuffer[*api.Message](uint64(size)),
		size: int64(size),
	}
	for i := 0; i < size; i++ {
		p.free.Enqueue(&api.Message{Type: api.MessageUser})
	}
	return p
}

func (p *StaticMessagePool) Acquire() *api.Message {
	msg, ok := p.free.Dequeue()
	if !ok {
		return nil
	}
	msg.Reset()
	p.inUse.Inc()
	return msg
}

func (p *StaticMessagePool) Release(msg *api.Message) {
	if msg == nil {
		return
	}
	// more releases than acquires: not ours, let the GC have it
	if p.inUse.Dec() < 0 {
		p.inUse.Inc()
		return
	}
	msg.Reset()
	p.free.Enqueue(msg)
}

func (p *StaticMessagePool) InUse() int64 { return p.inUse.Load() }

// Size returns the number of messages the pool owns.
func (p *StaticMessagePool) Size() int64 { return p.size }
