package acquisition

import (
	"fmt"
	"net"
	"time"
)

// udpSocket implements Socket over a connected net.UDPConn, setting a
// fresh read/write deadline before every I/O call rather than relying on
// one connection-wide timeout.
type udpSocket struct {
	address string
	conn    *net.UDPConn
	timeout time.Duration
}

// newUDPSocket constructs a Socket bound to ip:DevicePort with the given
// per-call read/write deadline. Connect must be called before Send/Recv.
func newUDPSocket(ip string, timeout time.Duration) *udpSocket {
	return &udpSocket{
		address: fmt.Sprintf("%s:%d", ip, DevicePort),
		timeout: timeout,
	}
}

// desiredRecvBufferBytes gives the kernel headroom above the ~18KB/s a
// 250Hz stream of 19-sample, 1368B transactions produces, so a scheduling
// hiccup in the read loop doesn't cost dropped datagrams.
const desiredRecvBufferBytes = 4 << 20

func (s *udpSocket) Connect() error {
	addr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.address, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.address, err)
	}
	_ = tuneReceiveBuffer(conn, desiredRecvBufferBytes)
	s.conn = conn
	return nil
}

func (s *udpSocket) Send(b []byte) (int, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("socket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.Write(b)
}

func (s *udpSocket) Recv(b []byte) (int, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("socket not connected")
	}
	s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	return s.conn.Read(b)
}

func (s *udpSocket) SetTimeout(d time.Duration) error {
	s.timeout = d
	return nil
}

func (s *udpSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
