package streamsink

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

// MulticastStreamer relays each sample as one UDP datagram to a multicast
// group, using the same fixed-width record layout as FileStreamer: a
// single persistent connection, one write call per sample, no ACK wait.
type MulticastStreamer struct {
	conn       *net.UDPConn
	recordSize int
	scratch    []byte
}

// NewMulticastStreamer dials a UDP socket to addr (host:port of a
// multicast group) and returns a Streamer that writes one datagram per
// sample.
func NewMulticastStreamer(addr string) (*MulticastStreamer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast addr %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial multicast addr %s: %w", addr, err)
	}
	return &MulticastStreamer{conn: conn}, nil
}

func (s *MulticastStreamer) StreamData(channels []float64, timestamp float64) error {
	if s.recordSize == 0 {
		s.recordSize = 8 + 8*len(channels)
		s.scratch = make([]byte, s.recordSize)
	}
	if 8+8*len(channels) != s.recordSize {
		return fmt.Errorf("channel count changed mid-stream: got %d, want %d", len(channels), (s.recordSize-8)/8)
	}

	binary.LittleEndian.PutUint64(s.scratch[0:8], math.Float64bits(timestamp))
	for i, v := range channels {
		off := 8 + 8*i
		binary.LittleEndian.PutUint64(s.scratch[off:off+8], math.Float64bits(v))
	}
	_, err := s.conn.Write(s.scratch)
	return err
}

func (s *MulticastStreamer) Close() error {
	return s.conn.Close()
}
