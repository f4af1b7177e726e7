// Package gridconnect implements the ASCII GridConnect framing used over
// serial and TCP byte-stream transports: ":X<8 hex header>N<hex data
// pairs>;", optionally followed by a newline. Encode does not append the
// newline; the Decoder accepts frames with or without it.
package gridconnect

import (
	"fmt"
	"strconv"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
)

// Encode renders a frame in canonical uppercase GridConnect form.
func Encode(f canbus.Frame) string {
	out := fmt.Sprintf(":X%08XN", f.Header)
	for _, b := range f.Data {
		out += fmt.Sprintf("%02X", b)
	}
	return out + ";"
}

// Decoder accumulates bytes from a streaming transport and yields
// complete frames as they're recognized, matching the reference
// implementation's byte-by-byte scan for the ';' terminator and resync
// on malformed input.
type Decoder struct {
	buf []byte
}

// Write appends bytes to the decode buffer.
func (d *Decoder) Write(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next extracts and returns the next complete frame from the buffer, or
// ok=false if none is available yet. Bytes before the first unconsumed
// ':' are discarded as noise; a frame missing its header/body structure
// is dropped silently, same as scanning forward for the next valid
// start, so a single corrupted frame never wedges the stream.
func (d *Decoder) Next() (f canbus.Frame, ok bool) {
	for {
		start := indexByte(d.buf, ':')
		if start < 0 {
			d.buf = nil
			return canbus.Frame{}, false
		}
		end := indexByteFrom(d.buf, ';', start)
		if end < 0 {
			d.buf = d.buf[start:]
			return canbus.Frame{}, false
		}
		frame := d.buf[start : end+1]
		d.buf = d.buf[end+1:]

		parsed, parseOK := parseFrame(frame)
		if parseOK {
			return parsed, true
		}
		// malformed; drop it and keep scanning from the remaining buffer
	}
}

func parseFrame(frame []byte) (canbus.Frame, bool) {
	// ":X" + 8 hex header + "N" + data hex pairs + ";"
	if len(frame) < 11 || frame[1] != 'X' && frame[1] != 'x' {
		return canbus.Frame{}, false
	}
	header, err := strconv.ParseUint(string(frame[2:10]), 16, 32)
	if err != nil {
		return canbus.Frame{}, false
	}
	if frame[10] != 'N' && frame[10] != 'n' {
		return canbus.Frame{}, false
	}
	body := frame[11 : len(frame)-1]
	if len(body)%2 != 0 || len(body) > 16 {
		return canbus.Frame{}, false
	}
	data := make([]byte, len(body)/2)
	for i := range data {
		b, err := strconv.ParseUint(string(body[i*2:i*2+2]), 16, 8)
		if err != nil {
			return canbus.Frame{}, false
		}
		data[i] = byte(b)
	}
	return canbus.FromHeaderData(uint32(header), data), true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func indexByteFrom(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}
