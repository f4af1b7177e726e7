package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/discovery"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// startMDNS advertises the hub's listen port (and, if mdns-browse is set,
// logs other discovered _openlcb-can._tcp peers) and returns a cleanup
// function to be called at shutdown.
func startMDNS(ctx context.Context, cfg appConfig, id nodeid.ID, hubAddr string, logger *slog.Logger) (func(), error) {
	if !cfg.mdnsEnable {
		return func() {}, nil
	}
	_, portStr, err := net.SplitHostPort(hubAddr)
	if err != nil {
		return nil, fmt.Errorf("mdns: split hub addr %q: %w", hubAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("mdns: parse hub port %q: %w", portStr, err)
	}
	instance := discovery.InstanceName(cfg.mdnsOrg, cfg.mdnsModel, id)
	cleanup, err := discovery.Register(ctx, instance, port, []string{"node=" + id.String()})
	if err != nil {
		return nil, fmt.Errorf("mdns: register: %w", err)
	}
	logger.Info("mdns_registered", "instance", instance, "port", port)

	if cfg.mdnsBrowse {
		go func() {
			found, err := discovery.Browse(ctx, 3*time.Second)
			if err != nil {
				logger.Warn("mdns_browse_error", "error", err)
				return
			}
			for _, f := range found {
				logger.Info("mdns_peer_found", "instance", f.Instance, "host", f.Host, "port", f.Port, "node_id", f.NodeID.String(), "has_id", f.HasID)
			}
		}()
	}
	return cleanup, nil
}
