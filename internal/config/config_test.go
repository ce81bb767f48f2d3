package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaxr/galea-driver/internal/acquisition"
)

func TestLoadFillsInMissingFieldsFromDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galea.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ip_address: 192.168.4.2
buffer_size: 1000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.4.2", cfg.IPAddress)
	assert.Equal(t, 1000, cfg.BufferSize)
	assert.Equal(t, "udp", cfg.IPProtocol, "unset fields keep the default")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadParsesStreamerSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "galea.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streamer:
  kind: file
  path: /tmp/capture.bin
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Streamer.Kind)
	assert.Equal(t, "/tmp/capture.bin", cfg.Streamer.Path)
}

func TestProtocol(t *testing.T) {
	cases := []struct {
		ipProtocol string
		want       acquisition.Protocol
		wantErr    bool
	}{
		{ipProtocol: "", want: acquisition.ProtocolUDP},
		{ipProtocol: "udp", want: acquisition.ProtocolUDP},
		{ipProtocol: "UDP", want: acquisition.ProtocolUDP},
		{ipProtocol: "tcp", want: acquisition.ProtocolTCP},
		{ipProtocol: "sctp", wantErr: true},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.IPProtocol = tc.ipProtocol
		got, err := cfg.Protocol()
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
