// Package simdevice is a test and development double for the headset: it
// binds a UDP socket and speaks the wire protocol well enough to drive the
// acquisition package's session state machine without real hardware.
package simdevice

import (
	"encoding/binary"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	packageSize     = 72
	numPackages     = 19
	transactionSize = numPackages * packageSize
)

// Device is a simulated Galea headset.
type Device struct {
	conn *net.UDPConn

	mu          sync.Mutex
	peer        *net.UDPAddr
	streaming   atomic.Bool
	rateHz      float64
	counter     atomic.Uint32
	stopStream  chan struct{}
	streamDone  chan struct{}
	closeOnce   sync.Once
	done        chan struct{}
}

// New binds a simulated device listening on ip:port and starts serving
// requests in a background goroutine.
func New(ip string, port int, rateHz float64) (*Device, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	d := &Device{
		conn:   conn,
		rateHz: rateHz,
		done:   make(chan struct{}),
	}
	go d.serve()
	return d, nil
}

// Addr returns the bound local address (useful when port 0 was requested).
func (d *Device) Addr() *net.UDPAddr {
	return d.conn.LocalAddr().(*net.UDPAddr)
}

// Close tears down the device and any in-flight stream.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.conn.Close()
	})
	return nil
}

func (d *Device) serve() {
	buf := make([]byte, 8192)
	for {
		n, peer, err := d.conn.ReadFromUDP(buf)
		select {
		case <-d.done:
			return
		default:
		}
		if err != nil {
			continue
		}
		d.handle(peer, append([]byte(nil), buf[:n]...))
	}
}

func (d *Device) handle(peer *net.UDPAddr, req []byte) {
	d.mu.Lock()
	d.peer = peer
	d.mu.Unlock()

	if len(req) == 0 {
		return
	}

	switch {
	case string(req) == "F4":
		// one dummy transaction in reply, for the delay probe
		d.conn.WriteToUDP(d.buildTransaction(1), peer)
	case string(req) == "b":
		d.startStreaming(peer)
	case string(req) == "s":
		d.stopStreaming()
	default:
		// "d", "~6", and any other configuration verb: ack with 'A'
		d.conn.WriteToUDP([]byte("A"), peer)
	}
}

func (d *Device) startStreaming(peer *net.UDPAddr) {
	if !d.streaming.CompareAndSwap(false, true) {
		return
	}
	d.stopStream = make(chan struct{})
	d.streamDone = make(chan struct{})

	go func() {
		defer close(d.streamDone)
		interval := time.Second
		if d.rateHz > 0 {
			interval = time.Duration(float64(time.Second) / d.rateHz)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stopStream:
				return
			case <-d.done:
				return
			case <-ticker.C:
				n := d.counter.Add(numPackages)
				d.conn.WriteToUDP(d.buildTransaction(n-numPackages+1), peer)
			}
		}
	}()
}

func (d *Device) stopStreaming() {
	if !d.streaming.CompareAndSwap(true, false) {
		return
	}
	close(d.stopStream)
	<-d.streamDone
}

// buildTransaction synthesizes one transaction whose NumPackages
// sub-packages carry sequential package counters starting at
// firstCounter, a constant device timestamp per sub-package (delta==0,
// so decoded timestamps equal the host's receive time), and fixed values
// on the remaining channels.
func (d *Device) buildTransaction(firstCounter uint32) []byte {
	out := make([]byte, transactionSize)
	for p := 0; p < numPackages; p++ {
		off := p * packageSize
		out[off] = byte(firstCounter + uint32(p))
		binary.LittleEndian.PutUint32(out[off+1:], math.Float32bits(1.23)) // EDA
		for i := 0; i < 16; i++ {
			v := int32(100 * (i + 1))
			eoff := off + 5 + 3*i
			out[eoff] = byte((v >> 16) & 0xFF)
			out[eoff+1] = byte((v >> 8) & 0xFF)
			out[eoff+2] = byte(v & 0xFF)
		}
		out[off+53] = 200 // battery
		binary.LittleEndian.PutUint16(out[off+54:], 3000) // temperature raw -> 30.00C
		binary.LittleEndian.PutUint32(out[off+56:], uint32(int32(111)))  // ppg red
		binary.LittleEndian.PutUint32(out[off+60:], uint32(int32(-222))) // ppg ir
		binary.LittleEndian.PutUint64(out[off+64:], math.Float64bits(1_000_000)) // device ts, constant
	}
	return out
}
