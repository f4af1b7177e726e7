// Package tcplink implements the TCP wire-format link layer: messages
// framed with a flag byte, 3-byte length, gateway NodeID, and timestamp,
// as an alternative to the CAN link layer over a raw net.Conn.
package tcplink

import (
	"fmt"

	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

const headerLen = 17 // 2 flags + 3 length + 6 gateway NodeID + 6 timestamp

// First flags-byte values. A single-part message carries neither
// continuation bit (flagComplete, value 0x00); a message split across
// several parts sets flagFirst alone on the first part, both bits on
// each middle part, and flagLast alone on the last.
const (
	flagComplete = 0x00
	flagFirst    = 0x40
	flagLast     = 0x80
)

// Sender writes a complete wire-format message buffer.
type Sender func([]byte) error

// TCPLink is the TCP flavor of link.Layer.
type TCPLink struct {
	link.Listeners

	localNodeID nodeid.ID
	now         func() [6]byte

	accumBuf map[nodeid.ID][]byte
	send     Sender
}

// New returns a TCPLink for localNodeID. now supplies the 6-byte
// timestamp field for outbound messages (injected so tests and replay
// tooling don't depend on wall-clock time).
func New(localNodeID nodeid.ID, now func() [6]byte, send Sender) *TCPLink {
	return &TCPLink{
		localNodeID: localNodeID,
		now:         now,
		accumBuf:    make(map[nodeid.ID][]byte),
		send:        send,
	}
}

// LocalNodeID implements link.Layer.
func (t *TCPLink) LocalNodeID() nodeid.ID { return t.localNodeID }

// SendMessage implements link.Layer: builds and writes one complete
// wire-format frame (TCPLink does not segment outbound messages; the
// wire format has no per-frame size limit the way CAN does).
func (t *TCPLink) SendMessage(m message.Message) error {
	body := make([]byte, 0, 2+len(m.Data))
	mh := uint16(m.MTI)
	body = append(body, byte(mh>>8), byte(mh))
	body = append(body, t.localNodeID.Bytes()...)
	if m.MTI.AddressPresent() {
		body = append(body, m.Destination.Bytes()...)
	}
	body = append(body, m.Data...)

	length := len(body)
	ts := t.now()
	out := make([]byte, 0, headerLen+length)
	out = append(out, flagComplete, 0x00)
	out = append(out, byte(length>>16), byte(length>>8), byte(length))
	out = append(out, t.localNodeID.Bytes()...)
	out = append(out, ts[:]...)
	out = append(out, body...)
	return t.send(out)
}

// ReceiveBytes feeds a chunk of bytes read off the connection. It
// decodes as many complete length-prefixed parts as are available,
// assembling multi-part messages (flagged with the first/last
// continuation bits) before firing listeners, matching the reference
// implementation's accumulation keyed by gateway NodeID.
func (t *TCPLink) ReceiveBytes(data []byte) error {
	for len(data) > 0 {
		if len(data) < headerLen {
			return fmt.Errorf("tcplink: short header, %d bytes", len(data))
		}
		flags := data[0]
		length := int(data[2])<<16 | int(data[3])<<8 | int(data[4])
		if flags&0x80 == 0 && flags != flagComplete && flags&0x40 == 0 {
			// link-control traffic this layer doesn't interpret; ignore.
			data = data[headerLen+length:]
			continue
		}
		gateway := nodeid.FromBytes(data[5:11])
		if headerLen+length > len(data) {
			return fmt.Errorf("tcplink: truncated part, want %d bytes, have %d", headerLen+length, len(data)-headerLen)
		}
		part := data[headerLen : headerLen+length]
		data = data[headerLen+length:]

		if flags&0xC0 == 0 {
			if err := t.forward(part, gateway); err != nil {
				return err
			}
			continue
		}
		switch flags & 0xC0 {
		case flagFirst:
			t.accumBuf[gateway] = append([]byte(nil), part...)
		case flagFirst | flagLast: // middle part
			t.accumBuf[gateway] = append(t.accumBuf[gateway], part...)
		case flagLast:
			full := append(t.accumBuf[gateway], part...)
			delete(t.accumBuf, gateway)
			if err := t.forward(full, gateway); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *TCPLink) forward(body []byte, _ nodeid.ID) error {
	if len(body) < 8 {
		return fmt.Errorf("tcplink: message body too short: %d bytes", len(body))
	}
	code := uint16(body[0])<<8 | uint16(body[1])
	m, known := mti.FromUint16(code)
	source := nodeid.FromBytes(body[2:8])
	rest := body[8:]

	var msg message.Message
	if m.AddressPresent() {
		if len(rest) < 6 {
			return fmt.Errorf("tcplink: addressed message missing destination")
		}
		dest := nodeid.FromBytes(rest[:6])
		msg = message.NewAddressed(m, source, dest, rest[6:])
	} else {
		msg = message.New(m, source, rest)
	}
	if !known {
		msg.OriginalMTI = code
	}
	t.Fire(msg)
	return nil
}
