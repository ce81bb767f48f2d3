package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBufferRejectsZeroCapacity(t *testing.T) {
	_, err := NewBuffer(4, 0)
	require.Error(t, err)
	var acqErr *Error
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, StatusInvalidBufferSize, acqErr.Code)
}

func vals(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestBufferDrainReturnsInsertionOrder(t *testing.T) {
	b, err := NewBuffer(2, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		b.Add(float64(i), vals(2, float64(i)*10))
	}

	require.Equal(t, 5, b.Len())

	ts := make([]float64, 5)
	data := make([]float64, 10)
	n := b.Drain(5, ts, data)

	require.Equal(t, 5, n)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, ts)
	assert.Equal(t, 0, b.Len())
}

func TestBufferOverwritePolicyIsWriterWins(t *testing.T) {
	b, err := NewBuffer(1, 4)
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		b.Add(float64(i), []float64{float64(i)})
	}

	require.Equal(t, 4, b.Len())

	ts := make([]float64, 10)
	data := make([]float64, 10)
	n := b.Drain(10, ts, data)

	require.Equal(t, 4, n)
	assert.Equal(t, []float64{7, 8, 9, 10}, ts[:4])
}

func TestBufferTailDoesNotMutateLen(t *testing.T) {
	b, err := NewBuffer(1, 5)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b.Add(float64(i), []float64{float64(i)})
	}

	ts := make([]float64, 3)
	data := make([]float64, 3)
	n := b.Tail(3, ts, data)

	require.Equal(t, 3, n)
	assert.Equal(t, []float64{2, 3, 4}, ts)
	assert.Equal(t, 5, b.Len(), "tail must not consume samples")

	// a subsequent Drain still sees everything, in order
	allTS := make([]float64, 5)
	allData := make([]float64, 5)
	n = b.Drain(5, allTS, allData)
	require.Equal(t, 5, n)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, allTS)
}

// TestBufferFIFOInvariant checks, for arbitrary insertion sequences and
// capacities, that len() == min(|s|, C) and a full drain returns exactly
// the last min(|s|, C) elements in order, regardless of insertion order
// or overflow.
func TestBufferFIFOInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "capacity")
		seq := rapid.SliceOfN(rapid.Float64Range(-1000, 1000), 0, 200).Draw(t, "seq")

		b, err := NewBuffer(1, capacity)
		require.NoError(t, err)

		for _, v := range seq {
			b.Add(v, []float64{v})
		}

		want := len(seq)
		if want > capacity {
			want = capacity
		}
		require.Equal(t, want, b.Len())

		ts := make([]float64, want)
		data := make([]float64, want)
		n := b.Drain(want, ts, data)
		require.Equal(t, want, n)

		expected := seq[len(seq)-want:]
		for i, v := range expected {
			assert.Equal(t, v, ts[i])
			assert.Equal(t, v, data[i])
		}
		require.Equal(t, 0, b.Len())
	})
}
