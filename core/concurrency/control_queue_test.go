package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlQueue_FIFO(t *testing.T) {
	q := NewControlQueue[int](8)
	for i := 1; i <= 5; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, head)

	for i := 1; i <= 5; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.True(t, q.Empty())
}

func TestControlQueue_FullBoundary(t *testing.T) {
	q := NewControlQueue[string](3)
	require.True(t, q.Push("a"))
	require.True(t, q.Push("b"))
	require.True(t, q.Push("c"))

	assert.False(t, q.Push("d"), "push into a full queue must fail")
	assert.Equal(t, 3, q.Len())

	var got []string
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestControlQueue_WrapAround(t *testing.T) {
	q := NewControlQueue[int](4)
	next, want := 0, 0
	for round := 0; round < 50; round++ {
		for q.Push(next) {
			next++
		}
		assert.Equal(t, 4, q.Len())
		for i := 0; i < 3; i++ {
			v, ok := q.Pop()
			require.True(t, ok)
			require.Equal(t, want, v)
			want++
		}
	}
	assert.Equal(t, 4, q.Cap())
}

func TestControlQueue_DefaultCapacity(t *testing.T) {
	q := NewControlQueue[int](0)
	assert.Equal(t, DefaultControlQueueSize, q.Cap())
	for i := 0; i < DefaultControlQueueSize; i++ {
		require.True(t, q.Push(i))
	}
	assert.False(t, q.Push(-1))
}
