// Package node holds the Node value, the event-produced/consumed store,
// and stores of known nodes (local and remote).
package node

import (
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
	"github.com/kstaniek/go-openlcb-link/internal/snip"
)

// State is a Node's link-level lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	if s == Initialized {
		return "Initialized"
	}
	return "Uninitialized"
}

// Node represents one OpenLCB node, local or remote. Identity and
// ordering are by NodeID alone; SNIP/PIP/state are mutable caches that
// get cleared whenever the node re-announces itself.
type Node struct {
	ID    nodeid.ID
	SNIP  *snip.SNIP
	PIP   mti.PIP
	State State

	Events *LocalEventStore
}

// New returns a freshly constructed, uninitialized Node with an empty
// SNIP buffer and event store.
func New(id nodeid.ID) *Node {
	return &Node{
		ID:     id,
		SNIP:   snip.New(),
		Events: NewLocalEventStore(),
	}
}

// Reset marks the node Uninitialized, keeping its identity and its
// cached PIP and SNIP data,
// matching the link-down/link-up handling in the reference
// implementation (as opposed to Initialization_Complete, which also
// clears the caches via ClearCaches).
func (n *Node) Reset() {
	n.State = Uninitialized
}

// ClearCaches drops the cached PIP and SNIP data, done when a node
// (re)announces Initialization_Complete.
func (n *Node) ClearCaches() {
	n.PIP = 0
	n.SNIP = snip.New()
}
