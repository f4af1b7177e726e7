package nodeid

import "testing"

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"05.01.01.01.03.01",
		"00.00.00.00.00.15",
		"FF.FF.FF.FF.FF.FF",
		"00.00.00.00.00.00",
	}
	for _, s := range cases {
		id, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		id2, err := Parse(id.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", id.String(), err)
		}
		if id != id2 {
			t.Errorf("round trip mismatch: %v != %v", id, id2)
		}
	}
}

func TestParseAcceptsShortHexPairs(t *testing.T) {
	id, err := Parse("5.1.1.1.3.1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want, _ := Parse("05.01.01.01.03.01")
	if id != want {
		t.Errorf("got %v want %v", id, want)
	}
}

func TestParseRejectsWrongPartCount(t *testing.T) {
	if _, err := Parse("01.02.03"); err == nil {
		t.Error("expected error for short nodeid string")
	}
}

func TestFromBytesToArray(t *testing.T) {
	id := FromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	arr := id.ToArray()
	want := [6]byte{1, 2, 3, 4, 5, 6}
	if arr != want {
		t.Errorf("got %v want %v", arr, want)
	}
}

func TestIsZero(t *testing.T) {
	if !FromInt(0).IsZero() {
		t.Error("0 should be zero")
	}
	if FromInt(1).IsZero() {
		t.Error("1 should not be zero")
	}
}
