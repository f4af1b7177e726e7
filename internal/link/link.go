// Package link defines the shared LinkLayer contract implemented by the
// CAN and TCP link layers: message send/receive plumbing plus listener
// notification on link state changes.
package link

import (
	"sync"

	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// State is a link layer's connectivity state, independent of any single
// node's initialization state.
type State int

const (
	Initial State = iota
	Inhibited
	Permitted
)

func (s State) String() string {
	switch s {
	case Inhibited:
		return "Inhibited"
	case Permitted:
		return "Permitted"
	default:
		return "Initial"
	}
}

// Listener receives every Message the link layer produces, including the
// internal Link_Layer_Up/Down/Restarted/Quiesce signalling messages.
type Listener func(message.Message)

// Layer is the capability every link layer implementation exposes to the
// processors above it: send a message, and be told who to call when one
// arrives.
type Layer interface {
	SendMessage(m message.Message) error
	RegisterMessageReceivedListener(l Listener)
	LocalNodeID() nodeid.ID
}

// Listeners is embeddable shared plumbing for fan-out notification, used
// by both internal/canlink and internal/tcplink.
type Listeners struct {
	mu   sync.RWMutex
	list []Listener
}

// Register adds a listener.
func (ls *Listeners) Register(l Listener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.list = append(ls.list, l)
}

// RegisterMessageReceivedListener satisfies Layer for embedders: it is
// the name callers (datagram/memconfig/processor services) register
// against.
func (ls *Listeners) RegisterMessageReceivedListener(l Listener) {
	ls.Register(l)
}

// Fire calls every registered listener with m, in registration order.
func (ls *Listeners) Fire(m message.Message) {
	ls.mu.RLock()
	snapshot := append([]Listener(nil), ls.list...)
	ls.mu.RUnlock()
	for _, l := range snapshot {
		l(m)
	}
}
