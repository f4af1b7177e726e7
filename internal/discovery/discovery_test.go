package discovery

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

func TestIDFromServiceName(t *testing.T) {
	id, err := nodeid.Parse("02.01.57.00.04.9C")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []string{
		"pythonopenlcb_02015700049C._openlcb-can._tcp.local.",
		"bobjacobsen_pythonopenlcb_02015700049C._openlcb-can._tcp.local.",
	}
	for _, name := range cases {
		got, ok := IDFromServiceName(name)
		if !ok {
			t.Fatalf("%q: expected a NodeID to be found", name)
		}
		if got != id {
			t.Fatalf("%q: got %s, want %s", name, got, id)
		}
	}
}

func TestIDFromServiceName_NoMatch(t *testing.T) {
	if _, ok := IDFromServiceName("random._openlcb-can._tcp.local."); ok {
		t.Fatalf("expected no NodeID to be found")
	}
}

func TestInstanceName(t *testing.T) {
	id := nodeid.FromInt(0x02015700049C)
	got := InstanceName("bobjacobsen", "pythonopenlcb", id)
	want := "bobjacobsen_pythonopenlcb_02015700049C"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
