package link

import (
	"testing"

	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

func TestListenersFireInOrder(t *testing.T) {
	var ls Listeners
	var order []int
	ls.Register(func(m message.Message) { order = append(order, 1) })
	ls.Register(func(m message.Message) { order = append(order, 2) })

	id, _ := nodeid.Parse("05.01.01.01.03.01")
	ls.Fire(message.New(mti.LinkLayerUp, id, nil))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("got %v", order)
	}
}

func TestStateString(t *testing.T) {
	if Permitted.String() != "Permitted" {
		t.Error("unexpected String()")
	}
}
