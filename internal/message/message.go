// Package message holds the OpenLCB Message value type shared by every
// layer above the link layer.
package message

import (
	"fmt"

	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// Message is a single OpenLCB message: an MTI, a source NodeID, an
// optional destination NodeID, and a variable-length payload.
type Message struct {
	MTI         mti.MTI
	Source      nodeid.ID
	Destination nodeid.ID
	HasDest     bool
	Data        []byte

	// OriginalMTI carries the raw 16-bit code when MTI is mti.Unknown,
	// so an Optional_Interaction_Rejected reply can echo it. Zero when MTI
	// is recognized.
	OriginalMTI uint16
}

// New builds a global (unaddressed) message.
func New(m mti.MTI, source nodeid.ID, data []byte) Message {
	return Message{MTI: m, Source: source, Data: data}
}

// NewAddressed builds an addressed message.
func NewAddressed(m mti.MTI, source, dest nodeid.ID, data []byte) Message {
	return Message{MTI: m, Source: source, Destination: dest, HasDest: true, Data: data}
}

// IsGlobal reports whether this message has no destination.
func (m Message) IsGlobal() bool { return !m.HasDest }

// IsAddressed reports whether this message carries a destination.
func (m Message) IsAddressed() bool { return m.HasDest }

// Equal reports structural equality: same MTI, source, destination
// presence/value, and payload bytes.
func (m Message) Equal(o Message) bool {
	if m.MTI != o.MTI || m.Source != o.Source || m.HasDest != o.HasDest {
		return false
	}
	if m.HasDest && m.Destination != o.Destination {
		return false
	}
	if len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

func (m Message) String() string {
	if m.HasDest {
		return fmt.Sprintf("%s from %s to %s %v", m.MTI, m.Source, m.Destination, m.Data)
	}
	return fmt.Sprintf("%s from %s %v", m.MTI, m.Source, m.Data)
}
