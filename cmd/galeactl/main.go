// Command galeactl drives one capture session against a Galea headset:
// prepare, start streaming, run for a fixed duration, then stop and print a
// status table that includes an approximate sample rate.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/novaxr/galea-driver/internal/acquisition"
	"github.com/novaxr/galea-driver/internal/config"
	"github.com/novaxr/galea-driver/internal/logging"
	"github.com/novaxr/galea-driver/internal/simdevice"
	"github.com/novaxr/galea-driver/internal/streamsink"
)

// simDeviceRateHz is the transaction rate the in-process simulated device
// streams at when --sim is given: the device's 250Hz default sample rate
// divided by the samples each transaction carries.
const simDeviceRateHz = 250.0 / acquisition.NumPackages

func main() {
	configFile := flag.StringP("config", "c", "", "YAML configuration file (optional; flags below override it)")
	ip := flag.StringP("ip", "i", "", "device IP address (default 192.168.4.1)")
	bufferSize := flag.IntP("buffer-size", "b", 0, "circular buffer capacity in samples (0: use config/default)")
	duration := flag.DurationP("duration", "d", 10*time.Second, "how long to stream before stopping")
	streamerKind := flag.String("streamer", "", "sink kind: file, multicast, or none (empty: use config/default)")
	streamerPath := flag.String("streamer-path", "", "file path (for --streamer=file) or host:port (for --streamer=multicast)")
	logLevel := flag.String("log-level", "", "debug, info, warn, or error (empty: use config/default)")
	sim := flag.Bool("sim", false, "dial an in-process simulated device instead of real hardware")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Prepares a device, streams for --duration, then reports a status table.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *ip != "" {
		cfg.IPAddress = *ip
	}
	if *bufferSize > 0 {
		cfg.BufferSize = *bufferSize
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *streamerKind != "" {
		cfg.Streamer.Kind = *streamerKind
	}
	if *streamerPath != "" {
		if cfg.Streamer.Kind == "multicast" {
			cfg.Streamer.MulticastAddr = *streamerPath
		} else {
			cfg.Streamer.Path = *streamerPath
		}
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	protocol, err := cfg.Protocol()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *sim {
		dev, err := simdevice.New("127.0.0.1", acquisition.DevicePort, simDeviceRateHz)
		if err != nil {
			log.Fatalf("start simulated device: %v", err)
		}
		defer dev.Close()
		cfg.IPAddress = "127.0.0.1"
		log.Printf("using simulated device at %s", dev.Addr())
	}

	session := acquisition.NewSession(logger)
	session.SetReceiveTimeout(time.Duration(cfg.ReceiveTimeoutSeconds * float64(time.Second)))
	defer session.Release()

	if err := session.Prepare(cfg.IPAddress, protocol); err != nil {
		log.Fatalf("prepare: %v", err)
	}

	var sink acquisition.Streamer
	if cfg.Streamer.Kind == "file" {
		f, err := os.Create(cfg.Streamer.Path)
		if err != nil {
			log.Fatalf("open streamer sink: %v", err)
		}
		sink = streamsink.NewFileStreamer(f)
	} else if cfg.Streamer.Kind == "multicast" {
		ms, err := streamsink.NewMulticastStreamer(cfg.Streamer.MulticastAddr)
		if err != nil {
			log.Fatalf("open multicast sink: %v", err)
		}
		sink = ms
	}

	if err := session.Start(cfg.BufferSize, sink); err != nil {
		log.Fatalf("start: %v", err)
	}

	fmt.Printf(">>> Streaming for %v ...\n", *duration)
	startedAt := time.Now()
	time.Sleep(*duration)

	if err := session.Stop(); err != nil {
		log.Fatalf("stop: %v", err)
	}
	elapsed := time.Since(startedAt)

	samples := session.TailSamples(cfg.BufferSize)
	printStatusTable(os.Stdout, session.Snapshot(), samples, elapsed)
}

func printStatusTable(w io.Writer, snap acquisition.Snapshot, tail []acquisition.Sample, elapsed time.Duration) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"State", snap.State.String()})
	table.Append([]string{"Sync", snap.SyncState.String()})
	table.Append([]string{"Time delay (ms)", fmt.Sprintf("%.3f", snap.TimeDelay*1000)})
	table.Append([]string{"Buffer", fmt.Sprintf("%d / %d", snap.BufferLen, snap.BufferCapacity)})
	table.Append([]string{"Duration", elapsed.String()})
	if len(tail) > 0 {
		rate := float64(snap.BufferLen) / elapsed.Seconds()
		table.Append([]string{"Approx. sample rate (Hz)", fmt.Sprintf("%.1f", rate)})
		table.Append([]string{"Last battery (%)", fmt.Sprintf("%.1f", tail[len(tail)-1].Channels[acquisition.ChanBattery])})
	}
	table.Render()
}
