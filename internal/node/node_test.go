package node

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/eventid"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

func TestClearCachesResetsSNIPAndPIP(t *testing.T) {
	id, _ := nodeid.Parse("05.01.01.01.03.01")
	n := New(id)
	n.PIP = mti.SimpleProtocolPIP
	n.SNIP.Strings[0] = "Acme"
	n.ClearCaches()
	if n.PIP != 0 {
		t.Error("expected PIP cleared")
	}
	if n.SNIP.Strings[0] != "" {
		t.Error("expected SNIP cleared")
	}
}

func TestLocalEventStore(t *testing.T) {
	s := NewLocalEventStore()
	e := eventid.FromInt(42)
	if s.IsConsumed(e) || s.IsProduced(e) {
		t.Fatal("new store should have no events")
	}
	s.Consumes(e)
	if !s.IsConsumed(e) {
		t.Error("expected consumed")
	}
	s.Produces(e)
	if !s.IsProduced(e) {
		t.Error("expected produced")
	}
}

func TestStoreByIDAndPresence(t *testing.T) {
	s := NewStore(nodeid.FromInt(0x999999999999))
	id, _ := nodeid.Parse("05.01.01.01.03.01")
	n := New(id)
	s.Store(n)
	if !s.IsPresent(id) {
		t.Error("expected present")
	}
	if s.ByID(id) != n {
		t.Error("expected same node back")
	}
}

func TestStoreByDescription(t *testing.T) {
	s := NewStore(nodeid.FromInt(0x999999999999))
	id, _ := nodeid.Parse("05.01.01.01.03.01")
	n := New(id)
	n.SNIP.Strings[5] = "front signal"
	s.Store(n)
	if s.ByDescription("front signal") != n {
		t.Error("expected lookup by description to find node")
	}
	if s.ByDescription("missing") != nil {
		t.Error("expected nil for unknown description")
	}
}

type recordingProcessor struct {
	calls int
}

func (p *recordingProcessor) Process(msg message.Message, n *Node) error {
	p.calls++
	return nil
}

func TestInvokeProcessorsOnNodesCreatesNewRemoteNode(t *testing.T) {
	s := NewStore(nodeid.FromInt(0x999999999999))
	p := &recordingProcessor{}
	s.AddProcessor(p)

	id, _ := nodeid.Parse("05.01.01.01.03.01")
	msg := message.New(mti.InitializationComplete, id, nil)
	if err := s.InvokeProcessorsOnNodes(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One call for the synthetic New_Node_Seen fired against the newly
	// created node, one for the real message dispatched to every known
	// node (here, just the one we created).
	if p.calls != 2 {
		t.Errorf("expected 2 calls, got %d", p.calls)
	}
	if !s.IsPresent(id) {
		t.Error("expected new remote node to be stored")
	}
}

func TestInvokeProcessorsOnNodesSkipsLocalAndZero(t *testing.T) {
	local := nodeid.FromInt(0x999999999999)
	s := NewStore(local)
	p := &recordingProcessor{}
	s.AddProcessor(p)

	if err := s.InvokeProcessorsOnNodes(message.New(mti.LinkLayerUp, local, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.IsPresent(local) {
		t.Error("local node must never be auto-stored as a remote node")
	}
	if err := s.InvokeProcessorsOnNodes(message.New(mti.LinkLayerDown, nodeid.FromInt(0), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.IsPresent(nodeid.FromInt(0)) {
		t.Error("NodeID 0 must never be auto-stored as a remote node")
	}
	if p.calls != 0 {
		t.Errorf("no nodes known yet, expected 0 calls, got %d", p.calls)
	}
}
