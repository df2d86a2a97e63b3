package task

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/pool"
)

// chanHooks is a minimal consumer task: messages travel over a channel.
type chanHooks struct {
	inbox     chan *api.Message
	runErr    error
	signalErr error
	destroyed atomic.Int32
}

func newChanHooks() *chanHooks {
	return &chanHooks{inbox: make(chan *api.Message, 16)}
}

func (h *chanHooks) Run(t *Task) error {
	if h.runErr != nil {
		return h.runErr
	}
	for msg := range h.inbox {
		if err := t.Process(msg); err != nil {
			return nil
		}
	}
	return nil
}

func (h *chanHooks) Signal(msg *api.Message) error {
	if h.signalErr != nil {
		return h.signalErr
	}
	select {
	case h.inbox <- msg:
		return nil
	default:
		return api.ErrQueueFull
	}
}

func (h *chanHooks) OnDestroy() { h.destroyed.Inc() }

func TestTask_StartProcessTerminate(t *testing.T) {
	var mu sync.Mutex
	var got []int
	h := newChanHooks()
	tk, err := New(Config{
		Name:      "consumer",
		AutoReady: true,
		Process: func(msg *api.Message) error {
			mu.Lock()
			got = append(got, msg.SubType)
			mu.Unlock()
			return nil
		},
	}, h)
	require.NoError(t, err)
	require.NoError(t, tk.Start())
	assert.Equal(t, StateRunning, tk.State())
	assert.ErrorIs(t, tk.Start(), api.ErrAlreadyStarted)

	for i := 1; i <= 3; i++ {
		msg := tk.MessageGet()
		msg.SubType = i
		require.NoError(t, tk.Signal(msg))
	}
	require.NoError(t, tk.Terminate(true))
	assert.Equal(t, StateIdle, tk.State())

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, got)
	mu.Unlock()
}

func TestTask_TerminateIsIdempotent(t *testing.T) {
	tk, err := New(Config{AutoReady: true}, newChanHooks())
	require.NoError(t, err)

	require.NoError(t, tk.Terminate(true), "never started")
	require.NoError(t, tk.Start())
	require.NoError(t, tk.Terminate(true))

	done := make(chan error, 1)
	go func() { done <- tk.Terminate(true) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("terminate on a stopped task blocked")
	}
}

func TestTask_StartFailsBeforeReady(t *testing.T) {
	h := newChanHooks()
	h.runErr = errors.New("no resources")
	tk, err := New(Config{Name: "broken"}, h)
	require.NoError(t, err)

	err = tk.Start()
	require.Error(t, err)
	assert.Equal(t, h.runErr, err)
	assert.Equal(t, StateIdle, tk.State())
}

func TestTask_RunReturnsWithoutReady(t *testing.T) {
	h := newChanHooks()
	close(h.inbox)
	tk, err := New(Config{}, h)
	require.NoError(t, err)
	assert.ErrorIs(t, tk.Start(), api.ErrNotRunning)
}

func TestTask_DestroyRunsHookOnce(t *testing.T) {
	h := newChanHooks()
	tk, err := New(Config{AutoReady: true}, h)
	require.NoError(t, err)
	require.NoError(t, tk.Start())

	require.NoError(t, tk.Destroy())
	require.NoError(t, tk.Destroy())
	assert.EqualValues(t, 1, h.destroyed.Load())
	assert.Equal(t, StateDestroyed, tk.State())
	assert.ErrorIs(t, tk.Start(), api.ErrTaskDestroyed)
}

func TestTask_SignalFailureReleasesMessage(t *testing.T) {
	p := pool.NewStaticMessagePool(1)
	h := newChanHooks()
	h.signalErr = api.ErrQueueFull
	tk, err := New(Config{Pool: p}, h)
	require.NoError(t, err)

	msg := tk.MessageGet()
	require.NotNil(t, msg)
	assert.Nil(t, tk.MessageGet(), "pool of one is exhausted")

	assert.ErrorIs(t, tk.Signal(msg), api.ErrQueueFull)
	assert.EqualValues(t, 0, p.InUse())
	assert.NotNil(t, tk.MessageGet())
}

func TestTask_TerminateSurvivesExhaustedPool(t *testing.T) {
	p := pool.NewStaticMessagePool(1)
	tk, err := New(Config{Pool: p, AutoReady: true}, newChanHooks())
	require.NoError(t, err)
	require.NoError(t, tk.Start())

	require.NotNil(t, tk.MessageGet())
	require.NoError(t, tk.Terminate(true))
	assert.EqualValues(t, 1, p.InUse())
}

func TestTask_NilHooks(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
