package gridconnect

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
)

func TestEncodeFormat(t *testing.T) {
	f := canbus.FromHeaderData(0x195B4123, []byte{0x01, 0x02, 0x03})
	got := Encode(f)
	want := ":X195B4123N010203;"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	f := canbus.FromHeaderData(0x195B4123, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x11})
	enc := Encode(f)

	d := &Decoder{}
	d.Write([]byte(enc))
	got, ok := d.Next()
	if !ok {
		t.Fatal("expected a decoded frame")
	}
	if got.Header != f.Header {
		t.Errorf("header: got %#x want %#x", got.Header, f.Header)
	}
	if len(got.Data) != len(f.Data) {
		t.Fatalf("data length: got %d want %d", len(got.Data), len(f.Data))
	}
	for i := range f.Data {
		if got.Data[i] != f.Data[i] {
			t.Errorf("data[%d]: got %#x want %#x", i, got.Data[i], f.Data[i])
		}
	}
}

func TestDecodeAcrossMultipleWrites(t *testing.T) {
	f := canbus.FromHeaderData(0x10000000, []byte{0x01})
	enc := Encode(f)

	d := &Decoder{}
	d.Write([]byte(enc[:5]))
	if _, ok := d.Next(); ok {
		t.Fatal("should not have a frame yet")
	}
	d.Write([]byte(enc[5:]))
	if _, ok := d.Next(); !ok {
		t.Fatal("expected frame after full write")
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	good := canbus.FromHeaderData(0x10000001, []byte{0x42})
	d := &Decoder{}
	d.Write([]byte(":Xbadheader;"))
	d.Write([]byte(Encode(good)))

	got, ok := d.Next()
	if !ok {
		t.Fatal("expected to recover a valid frame after a malformed one")
	}
	if got.Header != good.Header {
		t.Errorf("got %#x want %#x", got.Header, good.Header)
	}
}

func TestNoiseBeforeFrameIgnored(t *testing.T) {
	f := canbus.FromHeaderData(0x10000002, nil)
	d := &Decoder{}
	d.Write([]byte("garbage" + Encode(f)))
	got, ok := d.Next()
	if !ok || got.Header != f.Header {
		t.Fatalf("got %#v, %v", got, ok)
	}
}
