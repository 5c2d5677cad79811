package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingBuffer_ZeroCapacity(t *testing.T) {
	rb, err := NewRingBuffer[int](0)
	assert.ErrorIs(t, err, ErrZeroCapacity)
	assert.Nil(t, rb)

	_, err = NewRingBuffer[int](-3)
	assert.ErrorIs(t, err, ErrZeroCapacity)
}

func TestRingBuffer_KeepsLastValues(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 7, 21} {
		for _, extra := range []int{0, 1, 5, 40} {
			rb, err := NewRingBuffer[int](capacity)
			require.NoError(t, err)

			total := capacity + extra
			for i := 0; i < total; i++ {
				rb.Push(i)
			}

			assert.Equal(t, capacity, rb.Len(), "cap=%d extra=%d", capacity, extra)
			assert.True(t, rb.IsFull())

			want := make([]int, 0, capacity)
			for i := total - capacity; i < total; i++ {
				want = append(want, i)
			}
			assert.Equal(t, want, rb.Values(), "cap=%d extra=%d", capacity, extra)
		}
	}
}

func TestRingBuffer_PartiallyFilled(t *testing.T) {
	rb, err := NewRingBuffer[float64](5)
	require.NoError(t, err)

	assert.Empty(t, rb.Values())
	_, ok := rb.Last()
	assert.False(t, ok)

	rb.Push(1.5)
	rb.Push(2.5)

	assert.Equal(t, 2, rb.Len())
	assert.False(t, rb.IsFull())
	assert.Equal(t, 5, rb.Cap())
	assert.Equal(t, []float64{1.5, 2.5}, rb.Values())

	last, ok := rb.Last()
	require.True(t, ok)
	assert.Equal(t, 2.5, last)
}

func TestRingBuffer_SnapshotIsStable(t *testing.T) {
	rb, err := NewRingBuffer[int](3)
	require.NoError(t, err)

	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	snap := rb.Values()
	again := rb.Values()
	assert.Equal(t, snap, again)

	rb.Push(4)
	assert.Equal(t, []int{1, 2, 3}, snap)
	assert.Equal(t, []int{2, 3, 4}, rb.Values())

	last, _ := rb.Last()
	assert.Equal(t, 4, last)
}
