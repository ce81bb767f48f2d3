package acquisition

import (
	"sync"
	"sync/atomic"
	"time"
)

// processStart anchors monotonicSeconds; using time.Since keeps the value
// monotonic even if the wall clock is adjusted underneath the process.
var processStart = time.Now()

// syncTimeout bounds how long Start waits for the first transaction before
// giving up. A var, not a const, so tests can shrink it.
var syncTimeout = 5 * time.Second

func monotonicSeconds() float64 {
	return time.Since(processStart).Seconds()
}

// Snapshot is a read-only copy of session state for callers that want to
// poll status without taking the write path.
type Snapshot struct {
	State          State
	SyncState      SyncState
	TimeDelay      float64
	BufferLen      int
	BufferCapacity int
}

// Session is the C5 state machine: it owns the UDP socket, the reader
// goroutine, and the circular sample buffer, and drives the transitions
// of §4.5.
type Session struct {
	mu sync.Mutex

	state  State
	ip     string
	sock   Socket
	logger Logger

	buffer   *Buffer
	streamer Streamer

	receiveTimeout time.Duration

	keepAlive atomic.Bool
	timeDelay float64

	syncMu    sync.Mutex
	syncState SyncState
	syncOnce  sync.Once
	syncCh    chan struct{}

	readerWG sync.WaitGroup
}

// NewSession constructs an uninitialized session. logger may be nil, in
// which case logging is a no-op.
func NewSession(logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Session{
		state:          StateUninitialized,
		logger:         logger,
		receiveTimeout: 5 * time.Second,
	}
}

// SetReceiveTimeout overrides the per-call socket read/write deadline used
// from the next Prepare onward. A socket that is already connected keeps
// its current deadline until the next Stop, which derives its drain
// timeout from the new value and then resets the socket to it.
func (s *Session) SetReceiveTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.receiveTimeout = d
	s.mu.Unlock()
}

// Prepare opens the UDP endpoint, restores device defaults, and sets the
// 250Hz sample rate. Calling Prepare on an already-prepared session is a
// no-op that returns nil, mirroring the original board controller's
// "session already prepared" short-circuit.
func (s *Session) Prepare(ip string, protocol Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return nil
	}
	if protocol == ProtocolTCP {
		s.logger.Errorf("ip protocol is UDP for this device")
		return ErrInvalidArguments
	}
	if ip == "" {
		s.logger.Infof("using default IP address %s", DefaultIPAddress)
		ip = DefaultIPAddress
	}

	sock := newUDPSocket(ip, s.receiveTimeout)
	if err := sock.Connect(); err != nil {
		s.logger.Errorf("failed to init socket: %v", err)
		return wrapErr(StatusBoardNotReady, "failed to init socket", err)
	}
	s.sock = sock
	s.ip = ip

	if _, err := s.sendConfigLocked("d"); err != nil {
		s.logger.Errorf("failed to apply default settings: %v", err)
		sock.Close()
		s.sock = nil
		return wrapErr(StatusBoardNotReady, "failed to apply default settings", err)
	}
	if _, err := s.sendConfigLocked("~6"); err != nil {
		s.logger.Errorf("failed to apply default sampling rate: %v", err)
		sock.Close()
		s.sock = nil
		return wrapErr(StatusBoardNotReady, "failed to apply default sampling rate", err)
	}

	s.state = StatePrepared
	return nil
}

// Configure sends a configuration string to the device. While streaming,
// the send is fire-and-forget (an ACK would mingle with the sample
// stream); otherwise Configure waits for and interprets the ACK byte.
func (s *Session) Configure(conf string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return "", ErrBoardNotCreated
	}
	return s.sendConfigLocked(conf)
}

// sendConfigLocked assumes s.mu is held.
func (s *Session) sendConfigLocked(conf string) (string, error) {
	if s.sock == nil {
		return "", ErrBoardNotCreated
	}

	payload := []byte(conf)
	n, err := s.sock.Send(payload)
	if err != nil || n != len(payload) {
		return "", wrapErr(StatusBoardWriteError, "failed to send config to device", err)
	}

	if s.state == StateStreaming {
		return "", nil
	}

	buf := make([]byte, 8192)
	const maxAttempts = 25
	for attempt := 0; attempt < maxAttempts; attempt++ {
		n, err := s.sock.Recv(buf)
		if err != nil {
			return "", wrapErr(StatusBoardWriteError, "failed to recv config ack", err)
		}
		if n < TransactionSize {
			resp := string(buf[:n])
			switch resp[0] {
			case 'A':
				return resp, nil
			case 'I':
				s.logger.Errorf("invalid command: %q", conf)
				return resp, ErrInvalidArguments
			default:
				s.logger.Warnf("unknown ack byte received: %q", resp[0])
				return resp, nil
			}
		}
		// full-size data frame received while not streaming: rogue packet, retry
	}
	s.logger.Errorf("device is streaming data while it should not be")
	return "", wrapErr(StatusStreamAlreadyRunning, "device replied with data frames instead of an ack", nil)
}

// Start allocates the sample buffer, estimates the host/device delay,
// begins streaming, and blocks until the first transaction is decoded or
// a 5s deadline expires.
func (s *Session) Start(bufferSize int, streamer Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return ErrBoardNotCreated
	}
	if s.state == StateStreaming {
		s.logger.Errorf("streaming thread already running")
		return ErrStreamAlreadyRunning
	}
	if bufferSize <= 0 || bufferSize > MaxCaptureSamples {
		s.logger.Errorf("invalid buffer size: %d", bufferSize)
		return ErrInvalidBufferSize
	}

	buf, err := NewBuffer(NumChannels, bufferSize)
	if err != nil {
		return err
	}

	delay, err := estimateDelay(s.sock, time.Now)
	if err != nil {
		s.logger.Errorf("failed to calculate time delay: %v", err)
		return err
	}
	s.timeDelay = delay
	s.logger.Debugf("time delta: %f seconds", delay)

	s.buffer = buf
	s.streamer = streamer

	n, err := s.sock.Send([]byte("b"))
	if err != nil || n != 1 {
		s.buffer = nil
		s.streamer = nil
		return wrapErr(StatusBoardWriteError, "failed to send start-stream command", err)
	}

	s.syncMu.Lock()
	s.syncState = SyncPending
	s.syncMu.Unlock()
	s.syncOnce = sync.Once{}
	s.syncCh = make(chan struct{})

	s.keepAlive.Store(true)
	s.readerWG.Add(1)
	go s.readLoop()

	select {
	case <-s.syncCh:
		s.state = StateStreaming
		return nil
	case <-time.After(syncTimeout):
		s.logger.Errorf("no data received in 5sec, stopping thread")
		s.syncMu.Lock()
		s.syncState = SyncTimedOut
		s.syncMu.Unlock()
		// Transiently mark streaming so stopLocked's guard is satisfied,
		// matching the original board controller's is_streaming=true
		// before forcing a stop.
		s.state = StateStreaming
		if stopErr := s.stopLocked(); stopErr != nil {
			s.logger.Warnf("error while force-stopping after sync timeout: %v", stopErr)
		}
		return ErrSyncTimeout
	}
}

// Stop clears keep_alive, joins the reader, tears down the streamer, and
// drains the kernel's UDP receive queue so a subsequent start doesn't see
// stale datagrams.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// stopLocked assumes s.mu is held.
func (s *Session) stopLocked() error {
	if s.state != StateStreaming {
		return ErrStreamThreadNotRunning
	}

	s.keepAlive.Store(false)
	s.readerWG.Wait()

	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
	s.state = StatePrepared

	n, err := s.sock.Send([]byte("s"))
	if err != nil || n != 1 {
		return wrapErr(StatusBoardWriteError, "failed to send stop-stream command", err)
	}

	drainTimeout := s.receiveTimeout / 2
	if drainTimeout <= 0 {
		drainTimeout = s.receiveTimeout
	}
	s.sock.SetTimeout(drainTimeout)
	buf := make([]byte, TransactionSize)
	for attempt := 0; attempt < 25; attempt++ {
		if _, err := s.sock.Recv(buf); err != nil {
			break
		}
	}
	s.sock.SetTimeout(s.receiveTimeout)

	return nil
}

// Release tears down any active stream and closes the socket, returning
// the session to Uninitialized.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return nil
	}
	if s.state == StateStreaming {
		if err := s.stopLocked(); err != nil {
			s.logger.Warnf("error stopping stream during release: %v", err)
		}
	}
	s.state = StateUninitialized
	if s.sock != nil {
		s.sock.Close()
		s.sock = nil
	}
	s.buffer = nil
	return nil
}

// Snapshot returns a read-only copy of the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:     s.state,
		TimeDelay: s.timeDelay,
	}
	if s.buffer != nil {
		snap.BufferLen = s.buffer.Len()
		snap.BufferCapacity = s.buffer.Capacity()
	}
	s.mu.Unlock()

	s.syncMu.Lock()
	snap.SyncState = s.syncState
	s.syncMu.Unlock()

	return snap
}

// DrainSamples removes up to max oldest samples from the buffer.
func (s *Session) DrainSamples(max int) []Sample {
	buf := s.currentBuffer()
	if buf == nil || max <= 0 {
		return nil
	}
	ts := make([]float64, max)
	data := make([]float64, max*buf.NumChannels())
	n := buf.Drain(max, ts, data)
	return samplesFromFlat(ts, data, buf.NumChannels(), n)
}

// TailSamples non-destructively copies the most recent up-to-max samples.
func (s *Session) TailSamples(max int) []Sample {
	buf := s.currentBuffer()
	if buf == nil || max <= 0 {
		return nil
	}
	ts := make([]float64, max)
	data := make([]float64, max*buf.NumChannels())
	n := buf.Tail(max, ts, data)
	return samplesFromFlat(ts, data, buf.NumChannels(), n)
}

func (s *Session) currentBuffer() *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

func samplesFromFlat(ts []float64, data []float64, numCh, n int) []Sample {
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		out[i].Timestamp = ts[i]
		copy(out[i].Channels[:numCh], data[i*numCh:(i+1)*numCh])
	}
	return out
}
