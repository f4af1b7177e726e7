package eventid

import "testing"

func TestFromArrayRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x0102030405060708, 0xFFFFFFFFFFFFFFFF} {
		e := FromInt(v)
		e2 := FromBytes(e.Bytes())
		if e != e2 {
			t.Errorf("round trip mismatch for %#x: %v != %v", v, e, e2)
		}
	}
}

func TestString(t *testing.T) {
	e := FromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	want := "01.02.03.04.05.06.07.08"
	if e.String() != want {
		t.Errorf("got %q want %q", e.String(), want)
	}
}
