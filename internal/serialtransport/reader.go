package serialtransport

import (
	"errors"
	"io"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/gridconnect"
	"github.com/kstaniek/go-openlcb-link/internal/logging"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
)

// Sink receives every frame decoded off the serial port, typically
// canlink.CanLink.ReceiveFrame and/or hub.Hub.Broadcast.
type Sink func(canbus.Frame) error

// ReadLoop reads from sp until it returns an error (including io.EOF),
// feeding a gridconnect.Decoder and dispatching every decoded frame to
// sink. It returns the terminal read error.
func ReadLoop(sp Port, sink Sink) error {
	var dec gridconnect.Decoder
	buf := make([]byte, 512)
	for {
		n, err := sp.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				metrics.IncSerialRx()
				if sinkErr := sink(f); sinkErr != nil {
					logging.L().Warn("serial_sink_error", "error", sinkErr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			metrics.IncError(metrics.ErrSerialRead)
			return err
		}
	}
}
