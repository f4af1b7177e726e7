package datagram

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// fakeLink is a minimal link.Layer that records every sent message and
// lets the test fire inbound ones.
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

func newFake() *fakeLink {
	return &fakeLink{local: nodeid.FromInt(0x010203040506)}
}

func TestSendDatagramSerializesPerDestination(t *testing.T) {
	fl := newFake()
	svc := New(fl, nil)
	dest := nodeid.FromInt(0xAABBCCDDEEFF)

	var okCount int
	okCb := func(byte) { okCount++ }

	svc.SendDatagram(dest, []byte{1}, okCb, nil)
	svc.SendDatagram(dest, []byte{2}, okCb, nil)
	svc.SendDatagram(dest, []byte{3}, okCb, nil)

	if len(fl.sent) != 1 {
		t.Fatalf("want 1 datagram on wire after 3 enqueues, got %d", len(fl.sent))
	}
	if fl.sent[0].Data[0] != 1 {
		t.Fatalf("want W1 first, got %v", fl.sent[0].Data)
	}

	// Simulate Datagram_Received_OK from dest.
	fl.Fire(message.NewAddressed(mti.DatagramReceivedOK, dest, fl.local, nil))
	if len(fl.sent) != 2 || fl.sent[1].Data[0] != 2 {
		t.Fatalf("want W2 dispatched after first OK, got %v", fl.sent)
	}

	fl.Fire(message.NewAddressed(mti.DatagramReceivedOK, dest, fl.local, nil))
	if len(fl.sent) != 3 || fl.sent[2].Data[0] != 3 {
		t.Fatalf("want W3 dispatched after second OK, got %v", fl.sent)
	}
	if okCount != 2 {
		t.Fatalf("want 2 OK callbacks fired so far, got %d", okCount)
	}

	fl.Fire(message.NewAddressed(mti.DatagramReceivedOK, dest, fl.local, nil))
	if okCount != 3 {
		t.Fatalf("want 3 OK callbacks fired, got %d", okCount)
	}
}

func TestInboundDatagramNoListenerRepliesNegative(t *testing.T) {
	fl := newFake()
	svc := New(fl, nil)
	source := nodeid.FromInt(0x0A0B0C0D0E0F)

	fl.Fire(message.NewAddressed(mti.Datagram, source, fl.local, []byte{0xFF, 0x01}))

	if len(fl.sent) != 1 {
		t.Fatalf("want 1 reply, got %d", len(fl.sent))
	}
	reply := fl.sent[0]
	if reply.MTI != mti.DatagramRejected {
		t.Fatalf("want Datagram_Rejected, got %s", reply.MTI)
	}
	code := uint16(reply.Data[0])<<8 | uint16(reply.Data[1])
	if code != ErrNotImplementedUnknownType {
		t.Fatalf("want error 0x%04X, got 0x%04X", ErrNotImplementedUnknownType, code)
	}
}

func TestInboundEmptyDatagramRepliesTooShort(t *testing.T) {
	fl := newFake()
	svc := New(fl, nil)
	svc.RegisterListener(func(ReadMemo) bool { return true }) // would accept anything nonempty
	source := nodeid.FromInt(0x0A0B0C0D0E0F)

	fl.Fire(message.NewAddressed(mti.Datagram, source, fl.local, nil))

	if len(fl.sent) != 1 {
		t.Fatalf("want 1 reply, got %d", len(fl.sent))
	}
	reply := fl.sent[0]
	code := uint16(reply.Data[0])<<8 | uint16(reply.Data[1])
	if code != ErrTooShort {
		t.Fatalf("want error 0x%04X, got 0x%04X", ErrTooShort, code)
	}
}

func TestListenerAcceptsAndRepliesPositive(t *testing.T) {
	fl := newFake()
	svc := New(fl, nil)
	source := nodeid.FromInt(0x0A0B0C0D0E0F)

	svc.RegisterListener(func(memo ReadMemo) bool {
		svc.ReplyPositive(memo.Source, 0)
		return true
	})

	fl.Fire(message.NewAddressed(mti.Datagram, source, fl.local, []byte{0x20, 0x41}))

	if len(fl.sent) != 1 || fl.sent[0].MTI != mti.DatagramReceivedOK {
		t.Fatalf("want a single positive reply, got %v", fl.sent)
	}
}

func TestLinkRestartedRetransmitsOutstanding(t *testing.T) {
	fl := newFake()
	svc := New(fl, nil)
	dest := nodeid.FromInt(0xAABBCCDDEEFF)

	svc.SendDatagram(dest, []byte{9}, nil, nil)
	if len(fl.sent) != 1 {
		t.Fatalf("want 1 send, got %d", len(fl.sent))
	}

	fl.Fire(message.New(mti.LinkLayerRestarted, fl.local, nil))
	if len(fl.sent) != 2 {
		t.Fatalf("want retransmit after restart, got %d sends", len(fl.sent))
	}
	if !fl.sent[1].Equal(fl.sent[0]) {
		t.Fatalf("retransmit should be verbatim: %v != %v", fl.sent[1], fl.sent[0])
	}
}

func TestDecodeProtocol(t *testing.T) {
	cases := []struct {
		data []byte
		want ProtocolID
	}{
		{nil, Unrecognized},
		{[]byte{0x20, 1, 2}, Memory},
		{[]byte{0x99}, Unrecognized},
	}
	for _, c := range cases {
		if got := DecodeProtocol(c.data); got != c.want {
			t.Errorf("DecodeProtocol(%v) = %v, want %v", c.data, got, c.want)
		}
	}
}
