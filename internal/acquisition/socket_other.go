//go:build !linux

package acquisition

import "net"

// tuneReceiveBuffer is a no-op outside Linux; SO_RCVBUF tuning via
// golang.org/x/sys/unix is Linux-specific in this codebase.
func tuneReceiveBuffer(conn *net.UDPConn, bytes int) error {
	return nil
}
