package canlink

import (
	"fmt"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
)

// SendMessage implements link.Layer: encode m as one or more CAN frames
// and hand each to the configured Sender, in order.
func (c *CanLink) SendMessage(m message.Message) error {
	c.mu.Lock()
	alias := c.localAlias
	c.mu.Unlock()

	if m.MTI == mti.Datagram {
		return c.sendDatagram(alias, m)
	}
	if m.MTI.AddressPresent() {
		return c.sendAddressed(alias, m)
	}
	return c.sendGlobal(alias, m)
}

func (c *CanLink) sendGlobal(alias uint16, m message.Message) error {
	header := 0x1000_0000 | uint32(frameTagData)<<24 | (uint32(m.MTI)&0xFFF)<<12 | uint32(alias)
	return c.send(canbus.FromHeaderData(header, m.Data))
}

func (c *CanLink) sendAddressed(alias uint16, m message.Message) error {
	destAlias, ok := c.aliasFor(m.Destination)
	if !ok {
		return fmt.Errorf("canlink: no known alias for destination %s", m.Destination)
	}
	header := 0x1000_0000 | uint32(frameTagData)<<24 | (uint32(m.MTI)&0xFFF)<<12 | uint32(alias)

	chunks := chunk(m.Data, 6)
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	for i, ch := range chunks {
		flags := segmentFlags(i, len(chunks))
		prefix16 := flags | destAlias
		prefix := []byte{byte(prefix16 >> 8), byte(prefix16)}
		data := append(prefix, ch...)
		if err := c.send(canbus.FromHeaderData(header, data)); err != nil {
			return fmt.Errorf("canlink: send addressed frame %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (c *CanLink) sendDatagram(alias uint16, m message.Message) error {
	destAlias, ok := c.aliasFor(m.Destination)
	if !ok {
		return fmt.Errorf("canlink: no known alias for destination %s", m.Destination)
	}

	chunks := chunk(m.Data, 8)
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	for i, ch := range chunks {
		tag := datagramTag(i, len(chunks))
		header := 0x1000_0000 | tag<<24 | uint32(destAlias)<<12 | uint32(alias)
		if err := c.send(canbus.FromHeaderData(header, ch)); err != nil {
			return fmt.Errorf("canlink: send datagram frame %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func segmentFlags(i, n int) uint16 {
	switch {
	case n == 1:
		return flagOnly
	case i == 0:
		return flagFirst
	case i == n-1:
		return flagLast
	default:
		return flagMiddle
	}
}

func datagramTag(i, n int) uint32 {
	switch {
	case n == 1:
		return tagDatagramOnly
	case i == 0:
		return tagDatagramFirst
	case i == n-1:
		return tagDatagramLast
	default:
		return tagDatagramMiddle
	}
}

func chunk(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var out [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
