// Package serialtransport wires a GridConnect-framed byte stream (a
// CAN-USB adapter, typically) to the link layer: encode outbound
// canbus.Frame values as GridConnect ASCII, decode inbound bytes the
// same way, feeding a canlink.CanLink on one end and a Port on the
// other.
package serialtransport

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens a serial port at the given baud rate. GridConnect-speaking
// CAN-USB adapters conventionally run at 115200 baud over USB-CDC, but
// the rate is caller-configured since it depends on the adapter.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
