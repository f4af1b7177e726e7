package node

import "github.com/kstaniek/go-openlcb-link/internal/eventid"

// LocalEventStore tracks the EventIDs a node produces and consumes, for
// answering Identify_Producer/Identify_Consumer style inquiries.
type LocalEventStore struct {
	consumed map[eventid.ID]struct{}
	produced map[eventid.ID]struct{}
}

// NewLocalEventStore returns an empty store.
func NewLocalEventStore() *LocalEventStore {
	return &LocalEventStore{
		consumed: make(map[eventid.ID]struct{}),
		produced: make(map[eventid.ID]struct{}),
	}
}

// Consumes registers that this node consumes the given event.
func (s *LocalEventStore) Consumes(e eventid.ID) { s.consumed[e] = struct{}{} }

// IsConsumed reports whether this node consumes the given event.
func (s *LocalEventStore) IsConsumed(e eventid.ID) bool {
	_, ok := s.consumed[e]
	return ok
}

// Produces registers that this node produces the given event.
func (s *LocalEventStore) Produces(e eventid.ID) { s.produced[e] = struct{}{} }

// IsProduced reports whether this node produces the given event.
func (s *LocalEventStore) IsProduced(e eventid.ID) bool {
	_, ok := s.produced[e]
	return ok
}

// Consumed returns all consumed EventIDs, order unspecified.
func (s *LocalEventStore) Consumed() []eventid.ID {
	out := make([]eventid.ID, 0, len(s.consumed))
	for e := range s.consumed {
		out = append(out, e)
	}
	return out
}

// Produced returns all produced EventIDs, order unspecified.
func (s *LocalEventStore) Produced() []eventid.ID {
	out := make([]eventid.ID, 0, len(s.produced))
	for e := range s.produced {
		out = append(out, e)
	}
	return out
}
