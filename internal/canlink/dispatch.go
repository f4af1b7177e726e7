package canlink

import (
	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

func frameTag(header uint32) uint32 { return (header >> 24) & 0xF }

func (c *CanLink) handleReceivedData(f canbus.Frame) error {
	tag := frameTag(f.Header)
	if tag >= tagDatagramOnly && tag <= tagDatagramLast {
		return c.handleDatagramFrame(f, tag)
	}
	if tag == frameTagData {
		return c.handleMTIFrame(f)
	}
	return nil
}

// handleMTIFrame handles a single-frame global or addressed message: the
// header carries the MTI (bits 12-23) and the sender's alias (bits 0-11);
// addressed messages additionally carry a 2-byte destination-alias +
// segmentation-flag prefix at the front of the data payload.
func (c *CanLink) handleMTIFrame(f canbus.Frame) error {
	code := uint16((f.Header >> 12) & 0xFFF)
	m, known := mti.FromUint16(code)

	srcAlias := f.SourceAlias()
	source := c.sourceNodeID(srcAlias)

	if m == mti.VerifiedNodeID && len(f.Data) >= 6 {
		real := nodeid.FromBytes(f.Data[:6])
		c.adoptVerifiedNodeID(srcAlias, real)
		source = real
	}

	if !m.AddressPresent() {
		msg := message.New(m, source, f.Data)
		if !known {
			msg.OriginalMTI = code
		}
		return c.deliver(msg)
	}
	return c.handleAddressedFrame(m, known, code, source, srcAlias, f.Data)
}

func (c *CanLink) handleAddressedFrame(m mti.MTI, known bool, code uint16, source nodeid.ID, srcAlias uint16, data []byte) error {
	if len(data) < 2 {
		return nil
	}
	prefix := uint16(data[0])<<8 | uint16(data[1])
	flags := prefix & 0xF000
	destAlias := prefix & 0x0FFF
	payload := data[2:]

	c.mu.Lock()
	dest, destKnown := c.aliasToNode[destAlias]
	c.mu.Unlock()
	if !destKnown {
		dest = nodeid.FromInt(uint64(destAlias))
	}

	key := accumKey{mti: m, source: source, dest: dest}

	switch flags {
	case flagOnly:
		return c.deliverAddressed(m, known, code, source, dest, payload)
	case flagFirst:
		c.mu.Lock()
		c.accum[key] = append([]byte(nil), payload...)
		c.mu.Unlock()
		return nil
	case flagMiddle:
		c.mu.Lock()
		existing, live := c.accum[key]
		if live {
			c.accum[key] = append(existing, payload...)
		}
		c.mu.Unlock()
		if !live {
			c.dropOrphanFragment(m, source, dest)
		}
		return nil
	case flagLast:
		c.mu.Lock()
		existing, live := c.accum[key]
		var full []byte
		if live {
			full = append(existing, payload...)
			delete(c.accum, key)
		}
		c.mu.Unlock()
		if !live {
			c.dropOrphanFragment(m, source, dest)
			return nil
		}
		return c.deliverAddressed(m, known, code, source, dest, full)
	}
	return nil
}

// dropOrphanFragment logs and counts a non-start frame that arrived with
// no live accumulator for its key — a gap in a multi-frame assembly,
// dropped without desynchronizing any other in-flight assembly.
func (c *CanLink) dropOrphanFragment(m mti.MTI, source, dest nodeid.ID) {
	metrics.IncAssemblyDrop()
	c.log.Warn("canlink: dropping orphan continuation frame, no live assembly",
		"mti", m, "source", source, "dest", dest)
}

func (c *CanLink) deliverAddressed(m mti.MTI, known bool, code uint16, source, dest nodeid.ID, data []byte) error {
	msg := message.NewAddressed(m, source, dest, data)
	if !known {
		msg.OriginalMTI = code
	}
	return c.deliver(msg)
}

func (c *CanLink) handleDatagramFrame(f canbus.Frame, tag uint32) error {
	destAlias := uint16((f.Header >> 12) & 0xFFF)
	srcAlias := f.SourceAlias()
	source := c.sourceNodeID(srcAlias)

	c.mu.Lock()
	dest, destKnown := c.aliasToNode[destAlias]
	c.mu.Unlock()
	if !destKnown {
		dest = nodeid.FromInt(uint64(destAlias))
	}

	key := accumKey{mti: mti.Datagram, source: source, dest: dest}

	switch tag {
	case tagDatagramOnly:
		return c.deliverDatagram(source, dest, f.Data)
	case tagDatagramFirst:
		c.mu.Lock()
		c.accum[key] = append([]byte(nil), f.Data...)
		c.mu.Unlock()
		return nil
	case tagDatagramMiddle:
		c.mu.Lock()
		existing, live := c.accum[key]
		if live {
			c.accum[key] = append(existing, f.Data...)
		}
		c.mu.Unlock()
		if !live {
			c.dropOrphanFragment(mti.Datagram, source, dest)
		}
		return nil
	case tagDatagramLast:
		c.mu.Lock()
		existing, live := c.accum[key]
		var full []byte
		if live {
			full = append(existing, f.Data...)
			delete(c.accum, key)
		}
		c.mu.Unlock()
		if !live {
			c.dropOrphanFragment(mti.Datagram, source, dest)
			return nil
		}
		return c.deliverDatagram(source, dest, full)
	}
	return nil
}

func (c *CanLink) deliverDatagram(source, dest nodeid.ID, data []byte) error {
	return c.deliver(message.NewAddressed(mti.Datagram, source, dest, data))
}

func (c *CanLink) deliver(m message.Message) error {
	c.Fire(m)
	return nil
}
