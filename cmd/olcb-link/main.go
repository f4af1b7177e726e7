// Command olcb-link runs a standalone OpenLCB (LCC) node: a CAN link
// layer (or, for backend=tcp, the TCP wire-format link layer) speaking
// alias allocation, datagram, and memory-configuration protocols, with
// every CAN frame additionally fanned out to a GridConnect-over-TCP hub
// so other tools (JMRI, openlcb-monitor, a second instance of this same
// binary) can observe and inject traffic on the same segment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/datagram"
	"github.com/kstaniek/go-openlcb-link/internal/memconfig"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
	"github.com/kstaniek/go-openlcb-link/internal/node"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
	"github.com/kstaniek/go-openlcb-link/internal/processor"
	"github.com/kstaniek/go-openlcb-link/internal/tcptransport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := setupLogger(cfg)
	logger.Info("starting", "version", version, "commit", commit, "backend", cfg.backend)

	id, err := nodeid.Parse(cfg.nodeID)
	if err != nil {
		logger.Error("invalid node-id", "node_id", cfg.nodeID, "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.InitBuildInfo(version, commit, date)
	metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
	startMetricsLogger(ctx, cfg.logMetricsInterval, logger)

	h := initHub(cfg)

	be, err := buildBackend(ctx, cfg, id, h, logger)
	if err != nil {
		logger.Error("backend_init_failed", "error", err)
		os.Exit(1)
	}
	defer be.close()

	localNode := node.New(id)
	localProc := processor.NewLocalNodeProcessor(be.layer, logger)
	store := node.NewStore(id)
	store.AddProcessor(processor.NewRemoteNodeProcessor(be.layer, logger))

	be.layer.RegisterMessageReceivedListener(func(m message.Message) {
		if err := localProc.Process(m, localNode); err != nil {
			logger.Warn("processor_dispatch_error", "error", err, "mti", m.MTI)
		}
		if err := store.InvokeProcessorsOnNodes(m); err != nil {
			logger.Warn("processor_dispatch_error", "error", err, "mti", m.MTI)
		}
	})

	dg := datagram.New(be.layer, logger)
	memconfig.New(dg, logger)

	if err := be.linkUp(); err != nil {
		logger.Error("link_up_failed", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := be.feedLoop(); err != nil {
			logger.Error("backend_feed_loop_exited", "error", err)
			stop()
		}
	}()

	var hubSrv *tcptransport.Server
	var mdnsCleanup func()
	if be.frameSink != nil {
		hubSrv = tcptransport.NewServer(
			tcptransport.WithHub(h),
			tcptransport.WithSend(be.frameSink),
			tcptransport.WithListenAddr(cfg.hubListenAddr),
			tcptransport.WithMaxClients(cfg.hubMaxClients),
			tcptransport.WithReadDeadline(cfg.hubReadDeadline),
			tcptransport.WithLogger(logger),
		)
		go func() {
			if err := hubSrv.Serve(ctx); err != nil {
				logger.Error("hub_server_exited", "error", err)
			}
		}()
		select {
		case <-hubSrv.Ready():
		case <-time.After(2 * time.Second):
		}

		mdnsCleanup, err = startMDNS(ctx, cfg, id, hubSrv.Addr(), logger)
		if err != nil {
			logger.Warn("mdns_start_failed", "error", err)
			mdnsCleanup = func() {}
		}
	} else {
		mdnsCleanup = func() {}
	}

	logger.Info("ready", "node_id", id.String())
	<-ctx.Done()
	logger.Info("shutting_down")

	mdnsCleanup()

	if hubSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := hubSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("hub_shutdown_error", "error", err)
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = metricsSrv.Shutdown(shutdownCtx)
	cancel()

	logger.Info("stopped")
}
