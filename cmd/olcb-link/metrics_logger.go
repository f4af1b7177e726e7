package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot at Info level so
// a frame-rate stall shows up in plain log output even without a
// Prometheus scraper attached.
func startMetricsLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s := metrics.Snap()
				logger.Info("metrics_snapshot",
					"serial_rx", s.SerialRx, "serial_tx", s.SerialTx,
					"socketcan_rx", s.SocketCANRx, "socketcan_tx", s.SocketCANTx,
					"tcp_rx", s.TCPRx, "tcp_tx", s.TCPTx,
					"hub_clients", s.HubClients, "hub_drops", s.HubDrops, "hub_kicks", s.HubKicks, "hub_rejects", s.HubRejects,
					"errors", s.Errors, "malformed", s.Malformed,
				)
			}
		}
	}()
}
