// Package streamsink provides Streamer implementations: sinks that the
// acquisition session's reader loop fans decoded samples out to.
// FileStreamer buffers writes rather than hitting the OS on every sample;
// MulticastStreamer sends one datagram per sample.
package streamsink

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// FileStreamer appends one fixed-width binary record per sample to an
// underlying file: a little-endian float64 timestamp followed by
// len(channels) little-endian float64 values. Record width is fixed by
// the first StreamData call.
type FileStreamer struct {
	file       io.Closer
	w          *bufio.Writer
	recordSize int
	scratch    []byte
}

// NewFileStreamer wraps f in a buffered writer. f is closed by Close.
func NewFileStreamer(f io.WriteCloser) *FileStreamer {
	return &FileStreamer{
		file: f,
		w:    bufio.NewWriterSize(f, 64*1024),
	}
}

func (s *FileStreamer) StreamData(channels []float64, timestamp float64) error {
	if s.recordSize == 0 {
		s.recordSize = 8 + 8*len(channels)
		s.scratch = make([]byte, s.recordSize)
	}
	if 8+8*len(channels) != s.recordSize {
		return io.ErrShortWrite
	}

	binary.LittleEndian.PutUint64(s.scratch[0:8], math.Float64bits(timestamp))
	for i, v := range channels {
		off := 8 + 8*i
		binary.LittleEndian.PutUint64(s.scratch[off:off+8], math.Float64bits(v))
	}
	_, err := s.w.Write(s.scratch)
	return err
}

func (s *FileStreamer) Close() error {
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
