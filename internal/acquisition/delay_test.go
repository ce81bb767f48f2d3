package acquisition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbeSocket answers the "F4" latency probe with a configurable
// sequence of outcomes, one per probe attempt.
type fakeProbeSocket struct {
	outcomes []probeOutcome
	i        int
}

type probeOutcome struct {
	sendFail bool
	recvFail bool
	recvLen  int
}

func (f *fakeProbeSocket) Connect() error { return nil }

func (f *fakeProbeSocket) Send(b []byte) (int, error) {
	o := f.outcomes[f.i]
	if o.sendFail {
		// a failed send ends the probe without a Recv, so advance here
		f.i++
		return 0, errors.New("send failed")
	}
	return len(b), nil
}

func (f *fakeProbeSocket) Recv(b []byte) (int, error) {
	o := f.outcomes[f.i]
	f.i++
	if o.recvFail {
		return 0, errors.New("recv failed")
	}
	n := o.recvLen
	if n == 0 {
		n = TransactionSize
	}
	return n, nil
}

func (f *fakeProbeSocket) SetTimeout(time.Duration) error { return nil }
func (f *fakeProbeSocket) Close() error                   { return nil }

func allOK(n int) []probeOutcome {
	out := make([]probeOutcome, n)
	return out
}

func TestEstimateDelayComputesHalfRoundTripMean(t *testing.T) {
	sock := &fakeProbeSocket{outcomes: allOK(delayNumRepeats)}

	// each probe's started/done pair is 5ms apart -> mean round trip = 5ms
	// -> half round trip = 0.0025s
	base := time.Unix(0, 0)
	calls := 0
	now := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 5 * time.Millisecond)
	}

	delay, err := estimateDelay(sock, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, delay, 0.001)
}

func TestEstimateDelayTooManyFailuresIsBoardNotReady(t *testing.T) {
	outcomes := allOK(delayNumRepeats)
	outcomes[0].recvFail = true
	outcomes[1].sendFail = true

	sock := &fakeProbeSocket{outcomes: outcomes}
	_, err := estimateDelay(sock, time.Now)
	require.Error(t, err)

	var acqErr *Error
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, StatusBoardNotReady, acqErr.Code)
}

func TestEstimateDelayToleratesOneFailure(t *testing.T) {
	outcomes := allOK(delayNumRepeats)
	outcomes[2].recvFail = true

	sock := &fakeProbeSocket{outcomes: outcomes}
	_, err := estimateDelay(sock, time.Now)
	require.NoError(t, err)
}

func TestEstimateDelayWrongSizeReplyCountsAsFailure(t *testing.T) {
	outcomes := allOK(delayNumRepeats)
	outcomes[0].recvLen = TransactionSize - 1
	outcomes[1].recvLen = TransactionSize - 1

	sock := &fakeProbeSocket{outcomes: outcomes}
	_, err := estimateDelay(sock, time.Now)
	require.Error(t, err)
	var acqErr *Error
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, StatusBoardNotReady, acqErr.Code)
}
