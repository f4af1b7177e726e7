// Package processor implements the local-node and remote-node message
// processors: the state machines that answer OpenLCB protocol inquiries
// and track what's known about every other node observed on the link.
package processor

import (
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/node"
)

// checkSourceID reports whether msg originated from n.
func checkSourceID(msg message.Message, n *node.Node) bool {
	return n != nil && msg.Source == n.ID
}

// checkDestID reports whether msg is addressed to n. A global message is
// never "addressed to" anyone, matching the reference implementation.
func checkDestID(msg message.Message, n *node.Node) bool {
	return n != nil && msg.IsAddressed() && msg.Destination == n.ID
}
