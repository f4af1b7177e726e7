package snip

import "testing"

func TestUpdateRoundTrip(t *testing.T) {
	s := New()
	s.Strings = [6]string{"Acme", "Widget", "1.0", "2.0", "MyName", "MyDescription"}
	s.UpdateSnipDataFromStrings()

	s2 := New()
	s2.Data = s.Data
	s2.UpdateStringsFromSnipData()

	if s2.Strings != s.Strings {
		t.Errorf("got %v want %v", s2.Strings, s.Strings)
	}
}

func TestVersionBytes(t *testing.T) {
	s := New()
	s.UpdateSnipDataFromStrings()
	if s.Data[0] != 4 {
		t.Errorf("expected version byte 4 at offset 0, got %d", s.Data[0])
	}
}

func TestTruncatesOverlongField(t *testing.T) {
	s := New()
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	s.Strings[MfgName] = string(long)
	s.UpdateSnipDataFromStrings()
	s.UpdateStringsFromSnipData()
	if len(s.Strings[MfgName]) != maxLen[MfgName] {
		t.Errorf("got length %d want %d", len(s.Strings[MfgName]), maxLen[MfgName])
	}
}

func TestAddDataAndReturnStrings(t *testing.T) {
	s := New()
	s.Strings = [6]string{"Acme", "Widget", "1.0", "2.0", "MyName", "MyDescription"}
	s.UpdateSnipDataFromStrings()

	full := s.ReturnStrings()

	s2 := New()
	s2.AddData(0, full)
	s2.UpdateStringsFromSnipData()
	if s2.Strings != s.Strings {
		t.Errorf("got %v want %v", s2.Strings, s.Strings)
	}
}

func TestAddDataOutOfBoundsDropped(t *testing.T) {
	s := New()
	s.AddData(bufSize, []byte{1, 2, 3})
}
