package memconfig

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/datagram"
	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

type fakeLink struct {
	link.Listeners
	local nodeid.ID
	sent  []message.Message
}

func (f *fakeLink) LocalNodeID() nodeid.ID { return f.local }
func (f *fakeLink) SendMessage(m message.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func newFixture() (*fakeLink, *datagram.Service, *Service, nodeid.ID) {
	fl := &fakeLink{local: nodeid.FromInt(0x010203040506)}
	dg := datagram.New(fl, nil)
	svc := New(dg, nil)
	peer := nodeid.FromInt(0xAABBCCDDEEFF)
	return fl, dg, svc, peer
}

// deliverDatagram simulates peer sending a Datagram message to the local
// node carrying data; the reply (OK/Rejected) it triggers is recorded in
// fl.sent.
func deliverDatagram(fl *fakeLink, peer nodeid.ID, data []byte) {
	fl.Fire(message.NewAddressed(mti.Datagram, peer, fl.local, data))
}

func TestRequestReadBuildsShortFormDatagram(t *testing.T) {
	fl, _, svc, peer := newFixture()

	var got []byte
	svc.RequestRead(&ReadMemo{
		NodeID: peer, Space: 0xFD, Address: 0, Size: 64,
		DataReply: func(m *ReadMemo) { got = m.Data },
	})

	if len(fl.sent) != 1 {
		t.Fatalf("want 1 datagram sent, got %d", len(fl.sent))
	}
	want := []byte{0x20, 0x41, 0, 0, 0, 0, 64}
	if string(fl.sent[0].Data) != string(want) {
		t.Fatalf("got %v, want %v", fl.sent[0].Data, want)
	}

	// Peer replies with the short-form read reply (command 0x51, offset 6).
	deliverDatagram(fl, peer, []byte{0x20, 0x51, 0, 0, 0, 0, 1, 2, 3, 4})
	if string(got) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("DataReply got %v, want [1 2 3 4]", got)
	}
}

func TestRequestReadLongFormIncludesSpaceByte(t *testing.T) {
	fl, _, svc, peer := newFixture()
	svc.RequestRead(&ReadMemo{NodeID: peer, Space: 0x01, Address: 0x100, Size: 8})

	want := []byte{0x20, 0x40, 0, 0, 0x01, 0x00, 0x01, 8}
	if string(fl.sent[0].Data) != string(want) {
		t.Fatalf("got %v, want %v", fl.sent[0].Data, want)
	}
}

func TestReadPipelineSerializesPerNode(t *testing.T) {
	fl, _, svc, peer := newFixture()

	var order []int
	svc.RequestRead(&ReadMemo{NodeID: peer, Space: 0xFD, Address: 0, Size: 1, DataReply: func(*ReadMemo) { order = append(order, 1) }})
	svc.RequestRead(&ReadMemo{NodeID: peer, Space: 0xFD, Address: 1, Size: 1, DataReply: func(*ReadMemo) { order = append(order, 2) }})

	if len(fl.sent) != 1 {
		t.Fatalf("want second read held back, got %d sent", len(fl.sent))
	}
	// Peer accepts the first request datagram, then sends its read reply.
	fl.Fire(message.NewAddressed(mti.DatagramReceivedOK, peer, fl.local, nil))
	deliverDatagram(fl, peer, []byte{0x20, 0x51, 0, 0, 0, 0, 0xAA})
	// sent: first read, our OK for the reply, second read
	if len(fl.sent) != 3 || fl.sent[2].MTI != mti.Datagram {
		t.Fatalf("want second read dispatched after first reply, got %v", fl.sent)
	}
	deliverDatagram(fl, peer, []byte{0x20, 0x51, 0, 0, 0, 1, 0xBB})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("want replies in FIFO order, got %v", order)
	}
}

func TestRequestWriteOKAndErrorReplies(t *testing.T) {
	fl, _, svc, peer := newFixture()

	var ok bool
	var rejectedPayload []byte
	svc.RequestWrite(&WriteMemo{
		NodeID: peer, Space: 0xFF, Address: 0, Data: []byte{1, 2, 3},
		OKReply:  func(*WriteMemo) { ok = true },
		Rejected: func(_ *WriteMemo, payload []byte) { rejectedPayload = payload },
	})

	want := []byte{0x20, 0x03, 0, 0, 0, 0, 1, 2, 3}
	if string(fl.sent[0].Data) != string(want) {
		t.Fatalf("got %v, want %v", fl.sent[0].Data, want)
	}

	deliverDatagram(fl, peer, []byte{0x20, 0x13})
	if !ok {
		t.Fatalf("want OKReply fired")
	}

	svc.RequestWrite(&WriteMemo{NodeID: peer, Space: 0xFF, Address: 0, Data: []byte{9}, Rejected: func(_ *WriteMemo, payload []byte) { rejectedPayload = payload }})
	deliverDatagram(fl, peer, []byte{0x20, 0x1B, 0x10, 0x42})
	rejectedCode := uint16(rejectedPayload[0])<<8 | uint16(rejectedPayload[1])
	if rejectedCode != 0x1042 {
		t.Fatalf("want rejected code 0x1042, got 0x%04X", rejectedCode)
	}
}

func TestRequestSpaceLengthPresentAndAbsent(t *testing.T) {
	fl, _, svc, peer := newFixture()

	var length int64 = -99
	svc.RequestSpaceLength(peer, 0xFD, func(l int64) { length = l })

	want := []byte{0x20, 0x84, 0xFD}
	if string(fl.sent[0].Data) != string(want) {
		t.Fatalf("got %v, want %v", fl.sent[0].Data, want)
	}

	deliverDatagram(fl, peer, []byte{0x20, 0x86, 0xFD, 0x00, 0x01, 0x00, 0x00})
	if length != 0x00010000 {
		t.Fatalf("want length 0x10000, got 0x%X", length)
	}

	svc.RequestSpaceLength(peer, 0xFE, func(l int64) { length = l })
	deliverDatagram(fl, peer, []byte{0x20, 0x87, 0xFE})
	if length != -1 {
		t.Fatalf("want -1 for absent space, got %d", length)
	}
}
