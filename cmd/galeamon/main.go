// Command galeamon prepares and starts a streaming session, then serves
// its status over a websocket at /ws until interrupted.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/novaxr/galea-driver/internal/acquisition"
	"github.com/novaxr/galea-driver/internal/config"
	"github.com/novaxr/galea-driver/internal/logging"
	"github.com/novaxr/galea-driver/internal/monitor"
)

func main() {
	configFile := flag.StringP("config", "c", "", "YAML configuration file")
	ip := flag.StringP("ip", "i", "", "device IP address (default 192.168.4.1)")
	port := flag.IntP("port", "p", 8090, "HTTP port to serve /ws on")
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

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	protocol, err := cfg.Protocol()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	session := acquisition.NewSession(logger)
	session.SetReceiveTimeout(time.Duration(cfg.ReceiveTimeoutSeconds * float64(time.Second)))
	defer session.Release()

	if err := session.Prepare(cfg.IPAddress, protocol); err != nil {
		log.Fatalf("prepare: %v", err)
	}
	if err := session.Start(cfg.BufferSize, nil); err != nil {
		log.Fatalf("start: %v", err)
	}
	defer session.Stop()

	hub := monitor.NewHub(func() interface{} { return session.Snapshot() }, time.Second)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	http.HandleFunc("/ws", hub.ServeHTTP)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", *port)}
	go func() {
		log.Printf("galeamon listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")
}
