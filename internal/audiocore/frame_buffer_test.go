package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferExactSlices(t *testing.T) {
	t.Parallel()

	b, err := NewFrameBuffer(10, 2)
	require.NoError(t, err)

	require.NoError(t, b.Write([]int16{1, 1, 2, 2, 3, 3}))
	_, ok := b.Next(4)
	assert.False(t, ok, "partial chunks are never released")
	assert.Equal(t, 3, b.Len())

	require.NoError(t, b.Write([]int16{4, 4, 5, 5}))
	out, ok := b.Next(4)
	require.True(t, ok)
	assert.Equal(t, []int16{1, 1, 2, 2, 3, 3, 4, 4}, out)
	assert.Equal(t, 1, b.Len(), "remainder shifted to the start")

	require.NoError(t, b.Write([]int16{6, 6, 7, 7, 8, 8}))
	out, ok = b.Next(4)
	require.True(t, ok)
	assert.Equal(t, []int16{5, 5, 6, 6, 7, 7, 8, 8}, out)
	assert.Zero(t, b.Len())
}

func TestFrameBufferCapacity(t *testing.T) {
	t.Parallel()

	b, err := NewFrameBuffer(3, 1)
	require.NoError(t, err)

	require.NoError(t, b.Write([]int16{1, 2}))
	err = b.Write([]int16{3, 4})
	require.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, 2, b.Len(), "failed write leaves the buffer untouched")

	require.ErrorIs(t, mustBuffer(t, 4, 2).Write([]int16{1, 2, 3}), ErrInvalidChunkSize)

	_, err = NewFrameBuffer(0, 2)
	assert.Error(t, err)
}

func mustBuffer(t *testing.T, frames, channels int) *FrameBuffer {
	t.Helper()
	b, err := NewFrameBuffer(frames, channels)
	require.NoError(t, err)
	return b
}

// Feeding source chunks of one size through the buffer into a consumer of
// another size must neither drop, duplicate nor reorder samples.
func TestFrameBufferNoDataLoss(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, out int }{
		{480, 512},
		{512, 480},
		{160, 512},
		{1024, 256},
		{7, 3},
		{3, 7},
	}
	for _, c := range cases {
		b := mustBuffer(t, CapacityFor(c.in, c.out), 1)

		var fed, consumed []int16
		next := int16(0)
		for range 50 {
			chunk := make([]int16, c.in)
			for i := range chunk {
				chunk[i] = next
				next++
			}
			fed = append(fed, chunk...)
			require.NoError(t, b.Write(chunk))
			for {
				out, ok := b.Next(c.out)
				if !ok {
					break
				}
				require.Len(t, out, c.out)
				consumed = append(consumed, out...)
			}
			require.Less(t, b.Len(), c.out)
		}
		assert.Equal(t, fed[:len(consumed)], consumed, "in=%d out=%d", c.in, c.out)
		assert.Equal(t, len(fed)-len(consumed), b.Len())
	}
}
