// Package canlink implements the OpenLCB CAN link layer: alias
// allocation and collision recovery, CAN-header/MTI translation, and
// the segmentation/reassembly of datagram and addressed messages across
// multiple CAN frames.
package canlink

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// aliasClaimWait is how long an alias claim waits after sending RID
// before declaring the alias uncontested and moving on to AMD/Permitted.
// A var (not a const) so tests can shorten it; sleepFn is the injection
// point, matching the teacher's backend_serial.go sleepFn pattern.
var aliasClaimWait = 200 * time.Millisecond

var sleepFn = time.Sleep

// addressed-message segment flags, carried in the high nibble of the
// 2-byte destination-alias prefix.
const (
	flagOnly   = 0x0000
	flagFirst  = 0x1000
	flagLast   = 0x2000
	flagMiddle = 0x3000
)

// datagram frame tags, carried in the header's frame-tag nibble.
const (
	tagDatagramOnly   = 0xA
	tagDatagramFirst  = 0xB
	tagDatagramMiddle = 0xC
	tagDatagramLast   = 0xD
)

const frameTagData = 0x9

type accumKey struct {
	mti    mti.MTI
	source nodeid.ID
	dest   nodeid.ID
}

// Sender is the boundary transport's write side: hand it a frame to put
// on the wire (or the GridConnect/SocketCAN byte stream feeding one).
type Sender func(canbus.Frame) error

// CanLink is the CAN flavor of link.Layer.
type CanLink struct {
	link.Listeners

	mu          sync.Mutex
	localNodeID nodeid.ID
	aliasSeed   uint64
	localAlias  uint16
	state       link.State

	aliasToNode map[uint16]nodeid.ID
	nodeToAlias map[nodeid.ID]uint16

	accum map[accumKey][]byte

	nextSynthetic uint64

	send Sender
	log  *slog.Logger
}

// New returns a CanLink for localNodeID, seeded for alias derivation with
// seed (typically derived from the NodeID itself). send is called for
// every outbound frame, including the handshake control frames.
func New(localNodeID nodeid.ID, seed uint64, send Sender, log *slog.Logger) *CanLink {
	if log == nil {
		log = slog.Default()
	}
	c := &CanLink{
		localNodeID: localNodeID,
		aliasSeed:   seed & mask48,
		aliasToNode: make(map[uint16]nodeid.ID),
		nodeToAlias: make(map[nodeid.ID]uint16),
		accum:       make(map[accumKey][]byte),
		send:        send,
		log:         log,
	}
	c.localAlias = createAlias12(c.aliasSeed)
	return c
}

// LocalNodeID implements link.Layer.
func (c *CanLink) LocalNodeID() nodeid.ID { return c.localNodeID }

// LocalAlias returns the currently held 12-bit alias, for tests and
// diagnostics.
func (c *CanLink) LocalAlias() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localAlias
}

// State returns the link's current connectivity state.
func (c *CanLink) State() link.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleLinkUp begins the alias allocation handshake: four CID frames,
// an RID, then (once nothing contests it) an AMD and an AME.
func (c *CanLink) HandleLinkUp() error {
	c.mu.Lock()
	c.state = link.Inhibited
	c.mu.Unlock()
	c.Fire(message.New(mti.LinkLayerUp, c.localNodeID, nil))
	return c.defineAndReserveAlias()
}

// HandleLinkDown marks the link inhibited and notifies listeners,
// without clearing the alias/node caches (matching the reference
// implementation's link-down handling, as opposed to a node's own
// Initialization_Complete which clears its caches).
func (c *CanLink) HandleLinkDown() {
	c.mu.Lock()
	c.state = link.Inhibited
	c.mu.Unlock()
	c.Fire(message.New(mti.LinkLayerDown, c.localNodeID, nil))
}

func (c *CanLink) defineAndReserveAlias() error {
	c.mu.Lock()
	alias := c.localAlias
	id := c.localNodeID
	c.mu.Unlock()

	for _, n := range []int{7, 6, 5, 4} {
		if err := c.send(canbus.FromAliasCID(n, id, alias)); err != nil {
			return fmt.Errorf("canlink: send CID%d: %w", n, err)
		}
	}
	if err := c.send(canbus.FromControlAliasData(uint32(canbus.RID), alias, nil)); err != nil {
		return fmt.Errorf("canlink: send RID: %w", err)
	}

	// Wait for the alias claim to go uncontested before declaring it ours
	// and moving to Permitted: a peer holding this alias replies with a
	// collision frame during this window, which reallocateAlias handles.
	sleepFn(aliasClaimWait)

	c.mu.Lock()
	if c.localAlias != alias {
		// Collided and already reallocated while we were waiting.
		c.mu.Unlock()
		return nil
	}
	c.state = link.Permitted
	c.aliasToNode[alias] = id
	c.nodeToAlias[id] = alias
	c.mu.Unlock()

	if err := c.send(canbus.FromControlAliasData(uint32(canbus.AMD), alias, id.Bytes())); err != nil {
		return fmt.Errorf("canlink: send AMD: %w", err)
	}
	if err := c.send(canbus.FromControlAliasData(uint32(canbus.AME), alias, nil)); err != nil {
		return fmt.Errorf("canlink: send AME: %w", err)
	}
	c.Fire(message.New(mti.InitializationComplete, id, nil))
	return nil
}

// reallocateAlias is called when an incoming frame collides with our
// currently held alias: withdraw it with an AMR, advance the seed, and
// retry the whole handshake with the new candidate.
func (c *CanLink) reallocateAlias() error {
	metrics.IncAliasCollision()
	c.mu.Lock()
	oldAlias := c.localAlias
	id := c.localNodeID
	delete(c.aliasToNode, oldAlias)
	delete(c.nodeToAlias, id)
	c.aliasSeed = incrementAlias48(c.aliasSeed)
	c.localAlias = createAlias12(c.aliasSeed)
	c.state = link.Inhibited
	c.mu.Unlock()

	if err := c.send(canbus.FromControlAliasData(uint32(canbus.AMR), oldAlias, id.Bytes())); err != nil {
		return fmt.Errorf("canlink: send AMR: %w", err)
	}
	return c.defineAndReserveAlias()
}

// ReceiveFrame is the transport's read side: feed it every frame that
// arrives off the wire.
func (c *CanLink) ReceiveFrame(f canbus.Frame) error {
	kind := canbus.DecodeControlFrameFormat(f.Header)
	if kind == canbus.Data {
		return c.handleReceivedData(f)
	}

	c.mu.Lock()
	collides := f.SourceAlias() == c.localAlias
	c.mu.Unlock()
	if collides {
		return c.reallocateAlias()
	}

	switch kind {
	case canbus.AMD:
		c.handleAMD(f)
	case canbus.AMR:
		c.handleAMR(f)
	}
	return nil
}

func (c *CanLink) handleAMD(f canbus.Frame) {
	if len(f.Data) < 6 {
		return
	}
	id := nodeid.FromBytes(f.Data[:6])
	alias := f.SourceAlias()
	c.mu.Lock()
	c.aliasToNode[alias] = id
	c.nodeToAlias[id] = alias
	c.mu.Unlock()
	c.Fire(message.New(mti.NewNodeSeen, id, nil))
}

func (c *CanLink) handleAMR(f canbus.Frame) {
	alias := f.SourceAlias()
	c.mu.Lock()
	if id, ok := c.aliasToNode[alias]; ok {
		delete(c.aliasToNode, alias)
		delete(c.nodeToAlias, id)
	}
	c.mu.Unlock()
}

// sourceNodeID resolves the sender alias to a NodeID, minting a
// synthetic placeholder if this is the first frame seen from it. A later
// AMD, or a Verified_NodeID reply carrying the real NodeID in its
// payload, replaces the mapping.
func (c *CanLink) sourceNodeID(alias uint16) nodeid.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.aliasToNode[alias]; ok {
		return id
	}
	c.nextSynthetic++
	id := nodeid.FromInt(0xFFFF_0000_0000 | c.nextSynthetic)
	c.aliasToNode[alias] = id
	c.nodeToAlias[id] = alias
	return id
}

func (c *CanLink) adoptVerifiedNodeID(alias uint16, real nodeid.ID) {
	c.mu.Lock()
	if old, ok := c.aliasToNode[alias]; ok {
		delete(c.nodeToAlias, old)
	}
	c.aliasToNode[alias] = real
	c.nodeToAlias[real] = alias
	c.mu.Unlock()
}

// LearnAlias records a known alias/NodeID pairing directly, for use when
// a transport already knows the mapping (e.g. from a prior session) and
// wants to seed it without waiting for an AMD frame.
func (c *CanLink) LearnAlias(id nodeid.ID, alias uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliasToNode[alias] = id
	c.nodeToAlias[id] = alias
}

func (c *CanLink) aliasFor(id nodeid.ID) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.nodeToAlias[id]
	return a, ok
}
