//go:build linux

package acquisition

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneReceiveBuffer enlarges the kernel's UDP receive buffer for conn so
// bursts of device output don't get dropped before the read loop can
// drain them. Best-effort: the device streams at a fixed, modest rate, so
// a failure here is not fatal.
func tuneReceiveBuffer(conn *net.UDPConn, bytes int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
	}); err != nil {
		return err
	}
	return sockErr
}
