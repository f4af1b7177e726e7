package node

import (
	"sort"
	"sync"

	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
	"github.com/kstaniek/go-openlcb-link/internal/snip"
)

// Processor reacts to a Message, optionally in the context of a specific
// Node (nil when the message isn't about any single known node). This is
// the same shape the processor package's implementations satisfy; it's
// declared here, rather than imported, to avoid a dependency cycle since
// processor.Processor needs a *Store to do its job.
type Processor interface {
	Process(msg message.Message, n *Node) error
}

// Store indexes nodes by NodeID and additionally keeps a name-sorted
// view and a by-description lookup, matching the reference
// implementation's NodeStore beyond spec.md's NodeID-only requirement.
//
// A Store tracking remote nodes also needs to know the local NodeID, so
// that traffic the local node itself sent (or traffic carrying the
// reserved NodeID 0) never gets mistaken for a newly observed remote node.
type Store struct {
	mu          sync.RWMutex
	byID        map[nodeid.ID]*Node
	processors  []Processor
	localNodeID nodeid.ID
}

// NewStore returns an empty node store that treats localNodeID (and
// the reserved NodeID 0) as never eligible for
// new-remote-node creation.
func NewStore(localNodeID nodeid.ID) *Store {
	return &Store{byID: make(map[nodeid.ID]*Node), localNodeID: localNodeID}
}

// AddProcessor registers a processor to be invoked by
// InvokeProcessorsOnNodes for every subsequent matching message.
func (s *Store) AddProcessor(p Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors = append(s.processors, p)
}

// Store adds or replaces a node, indexed by its NodeID.
func (s *Store) Store(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[n.ID] = n
}

// IsPresent reports whether a node with this ID is known.
func (s *Store) IsPresent(id nodeid.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// ByID returns the node with the given ID, or nil if unknown.
func (s *Store) ByID(id nodeid.ID) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// ByDescription looks up a node by its SNIP user-provided description,
// supplementing the NodeID-only lookup spec.md requires; the reference
// implementation supports lookup by either.
func (s *Store) ByDescription(desc string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byID {
		if n.SNIP.Strings[snip.UserDescription] == desc {
			return n
		}
	}
	return nil
}

// Sorted returns every known node ordered by SNIP user name descending,
// matching the reference NodeStore's listing order (for UI consumption).
func (s *Store) Sorted() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SNIP.Strings[snip.UserName] > out[j].SNIP.Strings[snip.UserName]
	})
	return out
}

// checkForNewNode reports whether msg's source is a remote node this
// store hasn't seen yet: not the local node, not the reserved NodeID 0,
// and not already stored.
func (s *Store) checkForNewNode(msg message.Message) bool {
	if msg.Source == s.localNodeID || msg.Source.IsZero() {
		return false
	}
	_, known := s.byID[msg.Source]
	return !known
}

// createNewRemoteNode stores a fresh Node for msg.Source and fans out a
// synthetic New_Node_Seen message to every registered processor, passing
// only the new node — this must only be called once per node, right
// after checkForNewNode reports true, to avoid re-publishing.
func (s *Store) createNewRemoteNode(msg message.Message) *Node {
	n := New(msg.Source)
	s.byID[n.ID] = n
	procs := append([]Processor(nil), s.processors...)
	newNodeMsg := message.New(mti.NewNodeSeen, msg.Source, nil)
	for _, p := range procs {
		_ = p.Process(newNodeMsg, n)
	}
	return n
}

// InvokeProcessorsOnNodes runs every registered processor against the
// message, once per known node (so a global message such as
// Link_Layer_Up/Down reaches every tracked node, and each processor
// internally filters messages not addressed to, or sourced from, the
// node it's called with). If msg's source is an as-yet-unknown remote
// node, it is created first and a New_Node_Seen message is fanned out
// for it alone before the real message is dispatched to every node.
func (s *Store) InvokeProcessorsOnNodes(msg message.Message) error {
	s.mu.Lock()
	if s.checkForNewNode(msg) {
		s.createNewRemoteNode(msg)
	}
	nodes := make([]*Node, 0, len(s.byID))
	for _, n := range s.byID {
		nodes = append(nodes, n)
	}
	procs := append([]Processor(nil), s.processors...)
	s.mu.Unlock()

	for _, p := range procs {
		for _, n := range nodes {
			if err := p.Process(msg, n); err != nil {
				return err
			}
		}
	}
	return nil
}
