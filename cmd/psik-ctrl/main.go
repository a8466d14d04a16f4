// Command psik-ctrl runs the OpenFlow controller described by
// SPEC_FULL.md: it loads a YAML launch manifest, listens for switch
// connections, and dispatches PacketIn events to the bound role for
// each datapath.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ups100/psik-ctrl/config"
	"github.com/ups100/psik-ctrl/controller"
	"github.com/ups100/psik-ctrl/fabric"
	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/openflow"
)

func main() {
	manifestPath := flag.String("manifest", "psik-ctrl.yaml", "path to the fabric launch manifest")
	flag.Parse()

	ll := logging.Default("psik-ctrl")

	if err := run(*manifestPath, ll); err != nil {
		ll.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(manifestPath string, ll *logging.Logger) error {
	cfg, err := config.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	fab, err := fabric.New(cfg.FabricConfig)
	if err != nil {
		return fmt.Errorf("constructing fabric: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := fabric.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	fab.SetMetrics(metrics)

	comp := controller.New(controller.Config{
		MSSDPID: cfg.MSSDPID,
		MSSIP:   cfg.MSSIP,
		MCSDPID: cfg.MCSDPID,
		DCDPIDs: cfg.DCDPIDs,
		Fabric:  fab,
		Rng:     rand.New(rand.NewSource(randSeed())),
	})

	go serveMetrics(cfg.MetricsAddr, reg, ll)

	return listenAndServe(cfg.ListenAddr, comp, ll)
}

func serveMetrics(addr string, reg *prometheus.Registry, ll *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ll.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		ll.Errorf("metrics server: %v", err)
	}
}

// listenAndServe accepts switch connections, runs the OpenFlow
// handshake, binds each to its role via comp, and drives its read loop
// in its own goroutine — one goroutine per accepted connection, per
// SPEC_FULL §5.
func listenAndServe(addr string, comp *controller.Component, ll *logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer ln.Close()
	ll.Infof("listening on %s", addr)

	for {
		nc, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go handleConnection(nc, comp, ll)
	}
}

func randSeed() int64 { return time.Now().UnixNano() }

func handleConnection(nc net.Conn, comp *controller.Component, ll *logging.Logger) {
	conn := openflow.NewConn(nc, ll)
	dpid, err := conn.Handshake()
	if err != nil {
		ll.Errorf("handshake with %s: %v", nc.RemoteAddr(), err)
		conn.Close()
		return
	}

	sw, err := comp.OnConnectionUp(dpid, conn)
	if err != nil {
		ll.Errorf("binding dpid=%s: %v", dpid, err)
		conn.Close()
		return
	}
	if sw == nil {
		conn.Close()
		return
	}

	if err := comp.Serve(conn, sw); err != nil {
		ll.Errorf("connection dpid=%s ended: %v", dpid, err)
	}
}
