package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/mrcp-reactor/api"
)

const ms = time.Millisecond

func recordingTimer(q *TimerQueue, fired *[]string, name string) *Timer {
	return q.CreateTimer(func(t *Timer) {
		*fired = append(*fired, t.Object().(string))
	}, name)
}

func TestTimerQueue_FiresInDeadlineOrder(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	for _, tc := range []struct {
		name string
		d    time.Duration
	}{{"t50", 50 * ms}, {"t10", 10 * ms}, {"t30", 30 * ms}} {
		require.NoError(t, recordingTimer(q, &fired, tc.name).Set(tc.d))
	}

	d, ok := q.NearestDeadline()
	require.True(t, ok)
	assert.Equal(t, 10*ms, d)

	assert.Equal(t, 3, q.Advance(60*ms))
	assert.Equal(t, []string{"t10", "t30", "t50"}, fired)

	assert.Equal(t, 0, q.Advance(60*ms), "one-shot timers fire exactly once")
	_, ok = q.NearestDeadline()
	assert.False(t, ok)
}

func TestTimerQueue_PartialAdvance(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	require.NoError(t, recordingTimer(q, &fired, "a").Set(100*ms))
	require.NoError(t, recordingTimer(q, &fired, "b").Set(40*ms))

	assert.Equal(t, 0, q.Advance(25*ms))
	d, _ := q.NearestDeadline()
	assert.Equal(t, 15*ms, d)

	assert.Equal(t, 1, q.Advance(15*ms))
	assert.Equal(t, []string{"b"}, fired)
	d, _ = q.NearestDeadline()
	assert.Equal(t, 60*ms, d)

	assert.Equal(t, 1, q.Advance(70*ms))
	assert.Equal(t, []string{"b", "a"}, fired)
	assert.Equal(t, 0, q.Len())
}

func TestTimerQueue_EqualDeadlinesKeepArmingOrder(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	for _, name := range []string{"x", "y", "z"} {
		require.NoError(t, recordingTimer(q, &fired, name).Set(20*ms))
	}
	q.Advance(20 * ms)
	assert.Equal(t, []string{"x", "y", "z"}, fired)
}

func TestTimerQueue_Deterministic(t *testing.T) {
	run := func() []string {
		q := NewTimerQueue()
		var fired []string
		deadlines := map[string]time.Duration{"a": 35 * ms, "b": 5 * ms, "c": 70 * ms, "d": 35 * ms}
		for _, name := range []string{"a", "b", "c", "d"} {
			require.NoError(t, recordingTimer(q, &fired, name).Set(deadlines[name]))
		}
		for _, step := range []time.Duration{4 * ms, 1 * ms, 30 * ms, 20 * ms, 20 * ms} {
			q.Advance(step)
		}
		return fired
	}
	first := run()
	assert.Equal(t, []string{"b", "a", "d", "c"}, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, run())
	}
}

func TestTimer_KillAndRearm(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	a := recordingTimer(q, &fired, "a")
	b := recordingTimer(q, &fired, "b")
	require.NoError(t, a.Set(10*ms))
	require.NoError(t, b.Set(20*ms))

	require.NoError(t, a.Kill())
	assert.False(t, a.Armed())
	require.NoError(t, a.Kill(), "killing a disarmed timer is a no-op")

	require.NoError(t, b.Set(50*ms))
	q.Advance(30 * ms)
	assert.Empty(t, fired)

	rem, ok := b.Remaining()
	require.True(t, ok)
	assert.Equal(t, 20*ms, rem)

	q.Advance(20 * ms)
	assert.Equal(t, []string{"b"}, fired)
	assert.False(t, b.Armed())
}

func TestTimer_CallbackKillsLaterDueTimer(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	second := recordingTimer(q, &fired, "second")
	first := q.CreateTimer(func(t *Timer) {
		fired = append(fired, "first")
		_ = second.Kill()
	}, nil)
	require.NoError(t, first.Set(10*ms))
	require.NoError(t, second.Set(20*ms))

	assert.Equal(t, 1, q.Advance(30*ms))
	assert.Equal(t, []string{"first"}, fired)
}

func TestTimer_RearmFromCallbackWaitsForNextAdvance(t *testing.T) {
	q := NewTimerQueue()
	count := 0
	var tick *Timer
	tick = q.CreateTimer(func(t *Timer) {
		count++
		if count < 3 {
			_ = t.Set(0)
		}
	}, nil)
	require.NoError(t, tick.Set(10*ms))

	assert.Equal(t, 1, q.Advance(10*ms))
	assert.True(t, tick.Armed())
	assert.Equal(t, 1, q.Advance(0))
	assert.Equal(t, 1, q.Advance(0))
	assert.Equal(t, 0, q.Advance(time.Second))
	assert.Equal(t, 3, count)
}

func TestTimer_InvalidUse(t *testing.T) {
	q := NewTimerQueue()
	tm := q.CreateTimer(nil, nil)
	assert.ErrorIs(t, tm.Set(-time.Millisecond), api.ErrInvalidArgument)

	var detached Timer
	assert.ErrorIs(t, detached.Set(ms), api.ErrTimerDetached)
	assert.ErrorIs(t, detached.Kill(), api.ErrTimerDetached)
}

func TestTimerQueue_ElapseDefersFiring(t *testing.T) {
	q := NewTimerQueue()
	var fired []string
	require.NoError(t, recordingTimer(q, &fired, "wait").Set(100*ms))

	q.Elapse(90 * ms)
	// armed after the elapsed time was accounted: counts from now
	require.NoError(t, recordingTimer(q, &fired, "late").Set(20*ms))
	d, ok := q.NearestDeadline()
	require.True(t, ok)
	assert.Equal(t, 10*ms, d)

	q.Elapse(15 * ms)
	assert.Empty(t, fired)
	assert.Equal(t, 1, q.Advance(0))
	assert.Equal(t, []string{"wait"}, fired)

	assert.Equal(t, 1, q.Advance(5*ms))
	assert.Equal(t, []string{"wait", "late"}, fired)
}
