//go:build linux

package socketcantransport

import (
	"github.com/kstaniek/go-openlcb-link/internal/can"
	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/logging"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
)

// Sink receives every frame read off the SocketCAN interface, typically
// canlink.CanLink.ReceiveFrame and/or hub.Hub.Broadcast.
type Sink func(canbus.Frame) error

// ReadLoop reads frames from dev until ReadFrame returns an error,
// dispatching each to sink. It returns the terminal read error.
func ReadLoop(dev Dev, sink Sink) error {
	for {
		var fr can.Frame
		if err := dev.ReadFrame(&fr); err != nil {
			metrics.IncError(metrics.ErrSocketCANRead)
			return err
		}
		metrics.IncSocketCANRx()
		if err := sink(toCANBus(fr)); err != nil {
			logging.L().Warn("socketcan_sink_error", "error", err)
		}
	}
}
