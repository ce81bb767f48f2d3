package acquisition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novaxr/galea-driver/internal/acquisition"
	"github.com/novaxr/galea-driver/internal/simdevice"
)

// TestEndToEndPrepareStartStopDrain drives the full prepare/start/stop/drain
// scenario against a simulated device over a real loopback UDP socket: the
// closest approximation of the original board controller's documented
// prepare -> start_stream -> stop_stream -> get_current_board_data flow.
func TestEndToEndPrepareStartStopDrain(t *testing.T) {
	dev, err := simdevice.New("127.0.0.1", acquisition.DevicePort, 500)
	require.NoError(t, err)
	defer dev.Close()

	s := acquisition.NewSession(nil)
	defer s.Release()

	require.NoError(t, s.Prepare("127.0.0.1", acquisition.ProtocolUDP))
	require.NoError(t, s.Start(10, nil))

	// let several transactions (19 samples each) flow so the 10-sample
	// buffer wraps at least once, exercising the writer-wins overwrite
	// policy against live traffic.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Stop())

	samples := s.DrainSamples(10)
	require.Len(t, samples, 10)

	for i := 1; i < len(samples); i++ {
		prev := samples[i-1].Channels[acquisition.ChanPackageCounter]
		cur := samples[i].Channels[acquisition.ChanPackageCounter]
		require.NotEqual(t, prev, cur, "package counters must not repeat across consecutive samples")
	}

	last := samples[len(samples)-1]
	require.InDelta(t, 200.0, last.Channels[acquisition.ChanBattery], 1e-9)
	require.InDelta(t, 30.0, last.Channels[acquisition.ChanTemperatureC], 1e-9)
}
