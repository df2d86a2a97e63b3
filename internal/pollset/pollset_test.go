//go:build linux || darwin

package pollset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/mrcp-reactor/api"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestPollSet_TimeoutWithoutEvents(t *testing.T) {
	ps, err := New(4)
	require.NoError(t, err)
	defer ps.Close()

	start := time.Now()
	events, err := ps.Wait(20 * time.Millisecond)
	assert.ErrorIs(t, err, api.ErrPollTimeout)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPollSet_WakeupUnblocksIndefiniteWait(t *testing.T) {
	ps, err := New(4)
	require.NoError(t, err)
	defer ps.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = ps.Wakeup()
	}()

	events, err := ps.Wait(-1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, ps.IsWakeup(events[0]))
}

func TestPollSet_WakeupsCoalesce(t *testing.T) {
	ps, err := New(4)
	require.NoError(t, err)
	defer ps.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, ps.Wakeup())
	}
	events, err := ps.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, ps.IsWakeup(events[0]))

	_, err = ps.Wait(10 * time.Millisecond)
	assert.ErrorIs(t, err, api.ErrPollTimeout, "wakeup source must be drained")
}

func TestPollSet_Readiness(t *testing.T) {
	ps, err := New(4)
	require.NoError(t, err)
	defer ps.Close()

	r, w := newPipe(t)
	require.NoError(t, ps.Add(r, api.EventRead, "pipe"))

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	events, err := ps.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, ps.IsWakeup(events[0]))
	assert.Equal(t, r, events[0].Fd)
	assert.Equal(t, "pipe", events[0].Data)
	assert.NotZero(t, events[0].Events&api.EventRead)

	require.NoError(t, ps.Remove(r))
	assert.ErrorIs(t, ps.Remove(r), api.ErrNotRegistered)
	_, err = ps.Wait(10 * time.Millisecond)
	assert.ErrorIs(t, err, api.ErrPollTimeout)
}

func TestPollSet_CapacityAndDuplicates(t *testing.T) {
	ps, err := New(1)
	require.NoError(t, err)
	defer ps.Close()

	r1, _ := newPipe(t)
	r2, _ := newPipe(t)
	require.NoError(t, ps.Add(r1, api.EventRead, nil))
	assert.ErrorIs(t, ps.Add(r1, api.EventRead, nil), api.ErrAlreadyRegistered)
	assert.ErrorIs(t, ps.Add(r2, api.EventRead, nil), api.ErrPollSetFull)
}

func TestPollSet_Closed(t *testing.T) {
	ps, err := New(2)
	require.NoError(t, err)
	require.NoError(t, ps.Close())
	require.NoError(t, ps.Close())

	assert.ErrorIs(t, ps.Wakeup(), api.ErrPollSetClosed)
	_, err = ps.Wait(0)
	assert.ErrorIs(t, err, api.ErrPollSetClosed)
}

func TestPollSet_InvalidCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, -1, timeoutMillis(-1))
	assert.Equal(t, 0, timeoutMillis(0))
	assert.Equal(t, 1, timeoutMillis(time.Microsecond))
	assert.Equal(t, 100, timeoutMillis(100*time.Millisecond))
	assert.Equal(t, 101, timeoutMillis(100*time.Millisecond+time.Nanosecond))
}
