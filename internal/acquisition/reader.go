package acquisition

import "time"

// readLoop is the C4 background task: receive, decode, dispatch to the
// streamer sink and the circular buffer, until keepAlive is cleared.
// Termination happens at the next recv boundary after Stop clears the
// flag — worst case one socket timeout later.
func (s *Session) readLoop() {
	defer s.readerWG.Done()

	buf := make([]byte, TransactionSize)
	samplesSinceLog := 0
	lastLog := time.Now()

	for s.keepAlive.Load() {
		n, err := s.sock.Recv(buf)
		recvTime := monotonicSeconds() - s.timeDelay

		if err != nil {
			s.logger.Debugf("reader recv error: %v", err)
			continue
		}
		if n != TransactionSize {
			if n > 0 {
				s.logger.Warnf("received %d bytes, expected a full transaction: %q", n, buf[:n])
			} else {
				s.logger.Debugf("unable to read %d bytes, read %d", TransactionSize, n)
			}
			continue
		}

		s.syncOnce.Do(func() {
			s.syncMu.Lock()
			s.syncState = SyncReady
			s.syncMu.Unlock()
			s.logger.Infof("received first transaction, streaming is started")
			close(s.syncCh)
		})

		samples := decodeTransaction(buf, recvTime)
		for i := range samples {
			samp := &samples[i]
			if s.streamer != nil {
				if err := s.streamer.StreamData(samp.Channels[:], samp.Timestamp); err != nil {
					s.logger.Warnf("streamer sink error: %v", err)
				}
			}
			s.buffer.Add(samp.Timestamp, samp.Channels[:])
		}

		samplesSinceLog += len(samples)
		if elapsed := time.Since(lastLog); elapsed >= time.Second {
			s.logger.Debugf("acquisition rate: %.1f samples/sec, buffer %d/%d",
				float64(samplesSinceLog)/elapsed.Seconds(), s.buffer.Len(), s.buffer.Capacity())
			samplesSinceLog = 0
			lastLog = time.Now()
		}
	}
}
