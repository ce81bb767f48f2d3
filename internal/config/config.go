// Package config loads galeactl's run configuration from a YAML file and
// lets command-line flags override individual fields.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/novaxr/galea-driver/internal/acquisition"
)

// Streamer selects which sink, if any, decoded samples are fanned out to.
type Streamer struct {
	Kind           string `yaml:"kind"` // "", "file", or "multicast"
	Path           string `yaml:"path"`
	MulticastAddr  string `yaml:"multicast_addr"`
}

// Log controls the logging package's verbosity and output shape.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Config is galeactl's full run configuration.
type Config struct {
	IPAddress             string   `yaml:"ip_address"`
	IPProtocol            string   `yaml:"ip_protocol"` // "udp" (only supported value)
	BufferSize            int      `yaml:"buffer_size"`
	ReceiveTimeoutSeconds float64  `yaml:"receive_timeout_seconds"`
	Streamer              Streamer `yaml:"streamer"`
	Log                   Log      `yaml:"log"`
}

// Protocol resolves IPProtocol into the acquisition.Protocol value Prepare
// expects, so the documented "prepare with TCP" rejection path is reachable
// from configuration, not just from direct API calls.
func (c Config) Protocol() (acquisition.Protocol, error) {
	switch strings.ToLower(c.IPProtocol) {
	case "", "udp":
		return acquisition.ProtocolUDP, nil
	case "tcp":
		return acquisition.ProtocolTCP, nil
	default:
		return 0, fmt.Errorf("unknown ip_protocol %q", c.IPProtocol)
	}
}

// Default returns the configuration Prepare/Start use when no file or
// flag overrides any given field.
func Default() Config {
	return Config{
		IPAddress:             "",
		IPProtocol:            "udp",
		BufferSize:            250 * 60, // one minute at the device's 250Hz default rate
		ReceiveTimeoutSeconds: 5,
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a YAML config file, starting from Default() so
// any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
