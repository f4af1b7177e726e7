package mti

import "testing"

func TestPIPRoundTrip(t *testing.T) {
	p := SimpleProtocolPIP | DatagramProtocolPIP | MemoryConfigProtocolPIP
	b := p.ToBytes()
	p2 := FromBytes(b[:])
	if p != p2 {
		t.Errorf("round trip mismatch: %#x != %#x", p, p2)
	}
}

func TestPIPNames(t *testing.T) {
	p := SimpleProtocolPIP | DatagramProtocolPIP
	names := p.Names()
	if len(names) != 2 || names[0] != "Simple" || names[1] != "Datagram" {
		t.Errorf("got %v", names)
	}
}

func TestPIPFromShortBytes(t *testing.T) {
	p := FromBytes([]byte{0x80})
	if !p.Has(SimpleProtocolPIP) {
		t.Error("expected Simple bit set from single leading byte")
	}
}
