package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/momentics/mrcp-reactor/api"
	"github.com/momentics/mrcp-reactor/core/concurrency"
	"github.com/momentics/mrcp-reactor/fake"
	"github.com/momentics/mrcp-reactor/reactor"
)

// eventLog turns responder callbacks into strings on a channel.
type eventLog struct {
	events chan string
}

func newEventLog() *eventLog { return &eventLog{events: make(chan string, 64)} }

func (l *eventLog) ChannelOpened(ch string, ok bool) { l.events <- fmt.Sprintf("open %s %v", ch, ok) }
func (l *eventLog) ChannelClosed(ch string)          { l.events <- "close " + ch }
func (l *eventLog) Response(ch string, req Request, st Status) {
	l.events <- fmt.Sprintf("response %s %d %s %s", ch, req.ID, req.Method, st)
}
func (l *eventLog) Complete(ch string, id uint64, cause Cause) {
	l.events <- fmt.Sprintf("complete %s %d %s", ch, id, cause)
}

func (l *eventLog) next(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-l.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no responder event")
		return ""
	}
}

func (l *eventLog) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		assert.Equal(t, w, l.next(t))
	}
}

func newEngine(t *testing.T, timeout time.Duration) (*Engine, *eventLog) {
	t.Helper()
	f := &fake.Factory{}
	log := newEventLog()
	e, err := New(Config{
		Kind:           KindRecognizer,
		RequestTimeout: timeout,
		Reactor:        reactor.Config{NewPollSet: f.New},
	}, log)
	require.NoError(t, err)
	require.NoError(t, e.Open())
	t.Cleanup(func() { _ = e.Close() })
	return e, log
}

func TestEngine_ChannelLifecycle(t *testing.T) {
	e, log := newEngine(t, time.Second)
	assert.Equal(t, "recognizer", e.Name())

	require.NoError(t, e.OpenChannel("ch1"))
	require.NoError(t, e.OpenChannel("ch1"))
	log.expect(t, "open ch1 true", "open ch1 false")
	assert.EqualValues(t, 1, e.Channels())

	require.NoError(t, e.CloseChannel("ch1"))
	log.expect(t, "close ch1")
	assert.EqualValues(t, 0, e.Channels())
}

func TestEngine_StartStop(t *testing.T) {
	e, log := newEngine(t, time.Minute)
	require.NoError(t, e.OpenChannel("c"))
	require.NoError(t, e.Process("c", Request{ID: 1, Method: MethodStart}))
	require.NoError(t, e.Process("c", Request{ID: 2, Method: MethodStart}))
	require.NoError(t, e.Process("c", Request{ID: 3, Method: MethodStop}))

	log.expect(t,
		"open c true",
		"response c 1 START IN-PROGRESS",
		"response c 2 START FAILED",
		"response c 3 STOP COMPLETE",
		"complete c 1 stopped",
	)
}

func TestEngine_TimeoutCompletesRequest(t *testing.T) {
	e, log := newEngine(t, time.Minute)
	require.NoError(t, e.OpenChannel("c"))
	require.NoError(t, e.Process("c", Request{ID: 7, Method: MethodStart, Timeout: 20 * time.Millisecond}))

	log.expect(t, "open c true", "response c 7 START IN-PROGRESS", "complete c 7 timeout")
	require.Eventually(t, func() bool { return e.Stats().TimersFired == 1 }, time.Second, time.Millisecond)

	// the channel accepts a new request once the previous one completed
	require.NoError(t, e.Process("c", Request{ID: 8, Method: MethodStart}))
	log.expect(t, "response c 8 START IN-PROGRESS")
}

func TestEngine_InputRestartsTimer(t *testing.T) {
	e, log := newEngine(t, time.Minute)
	require.NoError(t, e.OpenChannel("c"))
	require.NoError(t, e.Process("c", Request{ID: 1, Method: MethodStart, Timeout: 80 * time.Millisecond}))
	log.expect(t, "open c true", "response c 1 START IN-PROGRESS")

	started := time.Now()
	for i := 0; i < 3; i++ {
		time.Sleep(40 * time.Millisecond)
		require.NoError(t, e.Process("c", Request{ID: uint64(10 + i), Method: MethodInput}))
		log.expect(t, fmt.Sprintf("response c %d INPUT COMPLETE", 10+i))
	}
	log.expect(t, "complete c 1 timeout")
	assert.GreaterOrEqual(t, time.Since(started), 180*time.Millisecond)
}

func TestEngine_FinalInputSucceeds(t *testing.T) {
	e, log := newEngine(t, time.Minute)
	require.NoError(t, e.OpenChannel("c"))
	require.NoError(t, e.Process("c", Request{ID: 1, Method: MethodStart}))
	require.NoError(t, e.Process("c", Request{ID: 2, Method: MethodInput, Final: true}))
	require.NoError(t, e.Process("c", Request{ID: 3, Method: MethodInput}))

	log.expect(t,
		"open c true",
		"response c 1 START IN-PROGRESS",
		"response c 2 INPUT COMPLETE",
		"complete c 1 success",
		"response c 3 INPUT FAILED",
	)
}

func TestEngine_InputFailsWhenTimerCannotRestart(t *testing.T) {
	log := newEventLog()
	e := &Engine{responder: log, log: zap.NewNop(), channels: make(map[string]*channel)}
	timers := concurrency.NewTimerQueue()
	ch := &channel{id: "c", timer: timers.CreateTimer(nil, nil)}
	require.NoError(t, ch.timer.Set(time.Second))
	ch.active = &Request{ID: 1, Method: MethodStart, Timeout: -time.Second}

	e.input(ch, Request{ID: 2, Method: MethodInput})
	log.expect(t, "response c 2 INPUT FAILED")
	assert.NotNil(t, ch.active, "request stays in progress")
	d, ok := ch.timer.Remaining()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestEngine_UnknownChannelFails(t *testing.T) {
	e, log := newEngine(t, time.Minute)
	require.NoError(t, e.Process("nope", Request{ID: 1, Method: MethodStart}))
	log.expect(t, "response nope 1 START FAILED")
}

func TestEngine_CloseDropsActiveRequest(t *testing.T) {
	e, log := newEngine(t, 20*time.Millisecond)
	require.NoError(t, e.OpenChannel("c"))
	require.NoError(t, e.Process("c", Request{ID: 1, Method: MethodStart}))
	require.NoError(t, e.CloseChannel("c"))
	log.expect(t, "open c true", "response c 1 START IN-PROGRESS", "close c")

	select {
	case ev := <-log.events:
		t.Fatalf("unexpected event after close: %s", ev)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestEngine_PostAfterClose(t *testing.T) {
	e, _ := newEngine(t, time.Second)
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.OpenChannel("c"), api.ErrNotRunning)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Kind: KindSynthesizer}, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = New(Config{}, newEventLog())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}
