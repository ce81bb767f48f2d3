package streamsink

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriteCloser struct {
	*bytes.Buffer
	closed bool
}

func (n *nopWriteCloser) Close() error {
	n.closed = true
	return nil
}

func TestFileStreamerWritesFixedWidthRecords(t *testing.T) {
	buf := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := NewFileStreamer(buf)

	require.NoError(t, s.StreamData([]float64{1, 2, 3}, 100.5))
	require.NoError(t, s.StreamData([]float64{4, 5, 6}, 101.5))
	require.NoError(t, s.Close())

	assert.True(t, buf.closed)

	recordSize := 8 + 8*3
	assert.Equal(t, recordSize*2, buf.Len())

	data := buf.Bytes()
	ts0 := math.Float64frombits(binary.LittleEndian.Uint64(data[0:8]))
	assert.InDelta(t, 100.5, ts0, 1e-9)
	v0 := math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
	assert.InDelta(t, 1.0, v0, 1e-9)

	ts1 := math.Float64frombits(binary.LittleEndian.Uint64(data[recordSize : recordSize+8]))
	assert.InDelta(t, 101.5, ts1, 1e-9)
}

func TestFileStreamerRejectsChangingChannelCount(t *testing.T) {
	buf := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := NewFileStreamer(buf)

	require.NoError(t, s.StreamData([]float64{1, 2}, 1))
	err := s.StreamData([]float64{1, 2, 3}, 2)
	require.Error(t, err)
}
