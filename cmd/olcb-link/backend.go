package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/canlink"
	"github.com/kstaniek/go-openlcb-link/internal/hub"
	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
	"github.com/kstaniek/go-openlcb-link/internal/serialtransport"
	"github.com/kstaniek/go-openlcb-link/internal/socketcantransport"
	"github.com/kstaniek/go-openlcb-link/internal/tcplink"
)

// backend bundles the constructed link layer together with the
// CAN-frame send function GridConnect-over-TCP clients inject into
// (nil for backend=tcp, which carries no raw CAN frame representation),
// and a teardown func closing the physical transport.
type backend struct {
	layer     link.Layer
	frameSink func(canbus.Frame) error // for tcptransport.Server's SendFunc; nil if not CAN-frame based
	feedLoop  func() error             // blocking read loop; run in its own goroutine
	linkUp    func() error             // signals Link_Layer_Up; call only after listeners are registered
	close     func()
}

// buildBackend constructs the link layer for cfg.backend, wiring its
// physical transport to both the link layer and the shared hub so every
// GridConnect-over-TCP client observes the same segment.
func buildBackend(ctx context.Context, cfg appConfig, id nodeid.ID, h *hub.Hub, logger *slog.Logger) (*backend, error) {
	switch cfg.backend {
	case "serial":
		return buildSerialBackend(ctx, cfg, id, h, logger)
	case "socketcan":
		return buildSocketCANBackend(ctx, cfg, id, h, logger)
	case "tcp":
		return buildTCPBackend(ctx, cfg, id, logger)
	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.backend)
	}
}

func buildSerialBackend(ctx context.Context, cfg appConfig, id nodeid.ID, h *hub.Hub, logger *slog.Logger) (*backend, error) {
	sp, err := serialtransport.Open(cfg.serialDevice, cfg.serialBaud, cfg.serialReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("backend: open serial %s: %w", cfg.serialDevice, err)
	}
	txw := serialtransport.NewTXWriter(ctx, sp, cfg.hubBufSize)

	var cl *canlink.CanLink
	send := func(fr canbus.Frame) error {
		h.Broadcast(fr)
		return txw.SendFrame(fr)
	}
	cl = canlink.New(id, uint64(time.Now().UnixNano()), send, logger)

	feed := func() error {
		return serialtransport.ReadLoop(sp, func(fr canbus.Frame) error {
			h.Broadcast(fr)
			return cl.ReceiveFrame(fr)
		})
	}
	closeFn := func() {
		txw.Close()
		_ = sp.Close()
	}
	return &backend{
		layer:     cl,
		frameSink: cl.ReceiveFrame,
		feedLoop:  feed,
		linkUp:    cl.HandleLinkUp,
		close:     closeFn,
	}, nil
}

func buildSocketCANBackend(ctx context.Context, cfg appConfig, id nodeid.ID, h *hub.Hub, logger *slog.Logger) (*backend, error) {
	dev, err := socketcantransport.Open(cfg.socketcanIface)
	if err != nil {
		return nil, fmt.Errorf("backend: open socketcan %s: %w", cfg.socketcanIface, err)
	}
	txw := socketcantransport.NewTXWriter(ctx, dev, cfg.hubBufSize)

	var cl *canlink.CanLink
	send := func(fr canbus.Frame) error {
		h.Broadcast(fr)
		return txw.SendFrame(fr)
	}
	cl = canlink.New(id, uint64(time.Now().UnixNano()), send, logger)

	feed := func() error {
		return socketcantransport.ReadLoop(dev, func(fr canbus.Frame) error {
			h.Broadcast(fr)
			return cl.ReceiveFrame(fr)
		})
	}
	closeFn := func() {
		txw.Close()
		_ = dev.Close()
	}
	return &backend{
		layer:     cl,
		frameSink: cl.ReceiveFrame,
		feedLoop:  feed,
		linkUp:    cl.HandleLinkUp,
		close:     closeFn,
	}, nil
}

// buildTCPBackend dials a remote TCP wire-format peer (internal/tcplink),
// an entirely different wire format from the GridConnect-over-TCP hub
// served to local clients, so it carries no canbus.Frame sink.
func buildTCPBackend(ctx context.Context, cfg appConfig, id nodeid.ID, logger *slog.Logger) (*backend, error) {
	conn, err := net.Dial("tcp", cfg.tcpRemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("backend: dial tcp %s: %w", cfg.tcpRemoteAddr, err)
	}
	now := func() [6]byte {
		var ts [6]byte
		t := time.Now().UnixNano()
		for i := 5; i >= 0; i-- {
			ts[i] = byte(t)
			t >>= 8
		}
		return ts
	}
	send := func(buf []byte) error {
		_, err := conn.Write(buf)
		return err
	}
	tl := tcplink.New(id, now, send)

	feed := func() error {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if rerr := tl.ReceiveBytes(buf[:n]); rerr != nil {
					logger.Warn("tcplink_receive_error", "error", rerr)
				}
			}
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
	closeFn := func() { _ = conn.Close() }

	// TCPLink has no HandleLinkUp of its own; synthesize the signal every
	// other link layer emits so node processors initialize the same way.
	// Called by main() only after listeners are registered.
	linkUp := func() error {
		tl.Fire(message.New(mti.LinkLayerUp, id, nil))
		return nil
	}

	return &backend{
		layer:     tl,
		frameSink: nil,
		feedLoop:  feed,
		linkUp:    linkUp,
		close:     closeFn,
	}, nil
}
