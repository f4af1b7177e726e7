package message

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

func TestIsGlobalVsAddressed(t *testing.T) {
	src, _ := nodeid.Parse("05.01.01.01.03.01")
	g := New(mti.VerifyNodeIDNumberGlobal, src, nil)
	if !g.IsGlobal() || g.IsAddressed() {
		t.Error("expected global message")
	}

	dst, _ := nodeid.Parse("05.01.01.01.03.02")
	a := NewAddressed(mti.VerifyNodeIDNumberAddressed, src, dst, nil)
	if a.IsGlobal() || !a.IsAddressed() {
		t.Error("expected addressed message")
	}
}

func TestEqual(t *testing.T) {
	src, _ := nodeid.Parse("05.01.01.01.03.01")
	m1 := New(mti.InitializationComplete, src, []byte{1, 2, 3})
	m2 := New(mti.InitializationComplete, src, []byte{1, 2, 3})
	if !m1.Equal(m2) {
		t.Error("expected equal")
	}
	m3 := New(mti.InitializationComplete, src, []byte{1, 2, 4})
	if m1.Equal(m3) {
		t.Error("expected not equal on data mismatch")
	}
}

func TestEqualRequiresSameDestination(t *testing.T) {
	src, _ := nodeid.Parse("05.01.01.01.03.01")
	d1, _ := nodeid.Parse("05.01.01.01.03.02")
	d2, _ := nodeid.Parse("05.01.01.01.03.03")
	m1 := NewAddressed(mti.VerifyNodeIDNumberAddressed, src, d1, nil)
	m2 := NewAddressed(mti.VerifyNodeIDNumberAddressed, src, d2, nil)
	if m1.Equal(m2) {
		t.Error("expected not equal on destination mismatch")
	}
}
