package canlink

import (
	"os"
	"testing"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// TestMain collapses aliasClaimWait to nothing so the handshake tests
// below don't each pay the real ≥200ms uncontested-alias wait.
func TestMain(m *testing.M) {
	aliasClaimWait = 0
	os.Exit(m.Run())
}

func newTestLink(t *testing.T) (*CanLink, *[]canbus.Frame) {
	t.Helper()
	var sent []canbus.Frame
	id, _ := nodeid.Parse("05.01.01.01.03.01")
	c := New(id, 0x0123_4567_89AB, func(f canbus.Frame) error {
		sent = append(sent, f)
		return nil
	}, nil)
	return c, &sent
}

func TestAliasMath(t *testing.T) {
	seed := uint64(0x0123_4567_89AB)
	alias := createAlias12(seed)
	if alias == 0 {
		t.Fatal("alias should never be zero")
	}
	next := incrementAlias48(seed)
	if next == seed {
		t.Fatal("increment should change the seed")
	}
	if next > mask48 {
		t.Fatalf("increment overflowed 48 bits: %#x", next)
	}
}

func TestHandleLinkUpSendsHandshakeSequence(t *testing.T) {
	c, sent := newTestLink(t)
	if err := c.HandleLinkUp(); err != nil {
		t.Fatalf("HandleLinkUp: %v", err)
	}
	frames := *sent
	// four CID frames, one RID, one AMD, one AME
	if len(frames) != 7 {
		t.Fatalf("expected 7 frames, got %d", len(frames))
	}
	for i := 0; i < 4; i++ {
		if canbus.DecodeControlFrameFormat(frames[i].Header) != canbus.CID {
			t.Errorf("frame %d: expected CID, got %v", i, canbus.DecodeControlFrameFormat(frames[i].Header))
		}
	}
	if canbus.DecodeControlFrameFormat(frames[4].Header) != canbus.RID {
		t.Error("frame 4: expected RID")
	}
	if canbus.DecodeControlFrameFormat(frames[5].Header) != canbus.AMD {
		t.Error("frame 5: expected AMD")
	}
	if canbus.DecodeControlFrameFormat(frames[6].Header) != canbus.AME {
		t.Error("frame 6: expected AME")
	}
}

func TestHandleLinkUpWaitsAfterRIDBeforeAMD(t *testing.T) {
	c, sent := newTestLink(t)

	var waited []struct {
		dur        int64
		framesSoFar int
	}
	orig := sleepFn
	sleepFn = func(d time.Duration) {
		waited = append(waited, struct {
			dur        int64
			framesSoFar int
		}{int64(d), len(*sent)})
	}
	defer func() { sleepFn = orig }()

	if err := c.HandleLinkUp(); err != nil {
		t.Fatalf("HandleLinkUp: %v", err)
	}
	if len(waited) != 1 {
		t.Fatalf("expected exactly one wait, got %d", len(waited))
	}
	if waited[0].dur != int64(aliasClaimWait) {
		t.Fatalf("expected wait of %s, got %s", aliasClaimWait, time.Duration(waited[0].dur))
	}
	// the wait must happen after RID (frame 4) and before AMD (frame 5)
	if waited[0].framesSoFar != 5 {
		t.Fatalf("expected the wait after RID+4 CIDs (5 frames sent), got %d frames sent at wait time", waited[0].framesSoFar)
	}
}

func TestAliasCollisionTriggersReallocation(t *testing.T) {
	c, sent := newTestLink(t)
	if err := c.HandleLinkUp(); err != nil {
		t.Fatalf("HandleLinkUp: %v", err)
	}
	before := c.LocalAlias()
	*sent = nil

	// simulate another node on the bus announcing the same alias via AMD
	collidingFrame := canbus.FromControlAliasData(uint32(canbus.AMD), before, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	if err := c.ReceiveFrame(collidingFrame); err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}

	after := c.LocalAlias()
	if after == before {
		t.Error("expected alias to change after collision")
	}

	frames := *sent
	if len(frames) == 0 || canbus.DecodeControlFrameFormat(frames[0].Header) != canbus.AMR {
		t.Fatalf("expected an AMR frame first, got %#v", frames)
	}
}

func TestReceiveGlobalMessage(t *testing.T) {
	c, _ := newTestLink(t)
	var got message.Message
	c.RegisterMessageReceivedListener(func(m message.Message) { got = m })

	peerAlias := uint16(0x222)
	header := uint32(0x1000_0000) | uint32(frameTagData)<<24 | (uint32(mti.VerifyNodeIDNumberGlobal)&0xFFF)<<12 | uint32(peerAlias)
	f := canbus.FromHeaderData(header, nil)
	if err := c.ReceiveFrame(f); err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	if got.MTI != mti.VerifyNodeIDNumberGlobal {
		t.Errorf("got MTI %v", got.MTI)
	}
	if !got.IsGlobal() {
		t.Error("expected global message")
	}
}

func TestDatagramThreeFrameAssembly(t *testing.T) {
	c, _ := newTestLink(t)
	var got message.Message
	var gotCount int
	c.RegisterMessageReceivedListener(func(m message.Message) {
		got = m
		gotCount++
	})

	localAlias := c.LocalAlias()
	peerAlias := uint16(0x333)
	peerID, _ := nodeid.Parse("05.01.01.01.03.02")
	c.LearnAlias(peerID, peerAlias)

	mkHeader := func(tag uint32) uint32 {
		return 0x1000_0000 | tag<<24 | uint32(localAlias)<<12 | uint32(peerAlias)
	}

	part1 := []byte{0x20, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	part2 := []byte{0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	part3 := []byte{0x10, 0x11}

	if err := c.ReceiveFrame(canbus.FromHeaderData(mkHeader(tagDatagramFirst), part1)); err != nil {
		t.Fatal(err)
	}
	if gotCount != 0 {
		t.Fatal("should not deliver before last frame")
	}
	if err := c.ReceiveFrame(canbus.FromHeaderData(mkHeader(tagDatagramMiddle), part2)); err != nil {
		t.Fatal(err)
	}
	if gotCount != 0 {
		t.Fatal("should not deliver before last frame")
	}
	if err := c.ReceiveFrame(canbus.FromHeaderData(mkHeader(tagDatagramLast), part3)); err != nil {
		t.Fatal(err)
	}
	if gotCount != 1 {
		t.Fatalf("expected exactly one delivery, got %d", gotCount)
	}
	if got.MTI != mti.Datagram {
		t.Errorf("expected Datagram MTI, got %v", got.MTI)
	}
	wantLen := len(part1) + len(part2) + len(part3)
	if len(got.Data) != wantLen {
		t.Fatalf("got %d bytes, want %d", len(got.Data), wantLen)
	}
}

func TestSendAddressedMessageSegmentsWhenOverSixBytes(t *testing.T) {
	c, sent := newTestLink(t)
	if err := c.HandleLinkUp(); err != nil {
		t.Fatal(err)
	}
	*sent = nil

	dest, _ := nodeid.Parse("05.01.01.01.03.09")
	c.LearnAlias(dest, 0x444)

	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	msg := message.NewAddressed(mti.IdentifyEventsAddressed, c.LocalNodeID(), dest, data)
	if err := c.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	frames := *sent
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames for 10 bytes at 6/frame, got %d", len(frames))
	}
	if len(frames[0].Data) != 8 || len(frames[1].Data) != 6 {
		t.Fatalf("unexpected frame data lengths: %d, %d", len(frames[0].Data), len(frames[1].Data))
	}
}

func TestSendDatagramSegmentsAtEightBytes(t *testing.T) {
	c, sent := newTestLink(t)
	if err := c.HandleLinkUp(); err != nil {
		t.Fatal(err)
	}
	*sent = nil

	dest, _ := nodeid.Parse("05.01.01.01.03.09")
	c.LearnAlias(dest, 0x555)

	data := make([]byte, 18)
	msg := message.NewAddressed(mti.Datagram, c.LocalNodeID(), dest, data)
	if err := c.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	frames := *sent
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames for 18 bytes at 8/frame, got %d", len(frames))
	}
	if frameTag(frames[0].Header) != tagDatagramFirst {
		t.Error("expected first frame tagged First")
	}
	if frameTag(frames[1].Header) != tagDatagramMiddle {
		t.Error("expected middle frame tagged Middle")
	}
	if frameTag(frames[2].Header) != tagDatagramLast {
		t.Error("expected last frame tagged Last")
	}
}
