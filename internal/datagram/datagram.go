// Package datagram implements the OpenLCB datagram service: per-peer
// single-outstanding-datagram serialization, at-most-one reply discipline
// for inbound datagrams, and retry-on-restart for outstanding writes.
package datagram

import (
	"log/slog"
	"sync"

	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// Negative-reply error codes.
const (
	ErrNotImplementedUnknownType = 0x1042
	ErrTooShort                  = 0x1041
)

// ProtocolID identifies the first-byte sub-protocol tag of a datagram
// payload, matching the reference implementation's DatagramService.ProtocolID
// enum values.
type ProtocolID int

const (
	Unrecognized ProtocolID = iota
	LogRequest
	LogReply
	Memory
	RemoteButton
	Display
	TrainControl
)

var protocolByte = map[byte]ProtocolID{
	0x01: LogRequest,
	0x02: LogReply,
	0x20: Memory,
	0x21: RemoteButton,
	0x28: Display,
	0x30: TrainControl,
}

// DecodeProtocol inspects the first payload byte to classify the
// sub-protocol; an empty payload is Unrecognized.
func DecodeProtocol(data []byte) ProtocolID {
	if len(data) == 0 {
		return Unrecognized
	}
	if p, ok := protocolByte[data[0]]; ok {
		return p
	}
	return Unrecognized
}

// WriteMemo is a single outstanding outbound datagram.
type WriteMemo struct {
	Dest     nodeid.ID
	Data     []byte
	OK       func(flags byte)
	Rejected func(errorCode uint16)
}

// ReadMemo is a single inbound datagram awaiting exactly one reply.
type ReadMemo struct {
	Source nodeid.ID
	Data   []byte
}

// Listener is invoked for every inbound datagram in registration order; it
// returns true if it handled (and replied to) the datagram.
type Listener func(memo ReadMemo) bool

// Service implements the datagram request/response protocol over a
// link.Layer.
type Service struct {
	linkLayer link.Layer
	log       *slog.Logger

	mu        sync.Mutex
	queues    map[nodeid.ID][]*WriteMemo
	inflight  map[nodeid.ID]*WriteMemo
	listeners []Listener
	quiesced  bool
}

// New returns a Service that sends/receives datagrams over l.
func New(l link.Layer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		linkLayer: l,
		log:       log,
		queues:    make(map[nodeid.ID][]*WriteMemo),
		inflight:  make(map[nodeid.ID]*WriteMemo),
	}
	l.RegisterMessageReceivedListener(s.handleMessage)
	return s
}

// RegisterListener adds a datagram listener, called in registration order
// for every inbound datagram until one reports it handled the datagram.
func (s *Service) RegisterListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SendDatagram enqueues a write to dest. If no write is currently
// outstanding for dest, it is dispatched immediately; otherwise it waits
// in FIFO order behind the current one.
func (s *Service) SendDatagram(dest nodeid.ID, data []byte, ok func(byte), rejected func(uint16)) {
	memo := &WriteMemo{Dest: dest, Data: data, OK: ok, Rejected: rejected}
	s.mu.Lock()
	_, busy := s.inflight[dest]
	if busy {
		s.queues[dest] = append(s.queues[dest], memo)
		s.mu.Unlock()
		return
	}
	s.inflight[dest] = memo
	s.mu.Unlock()
	s.dispatch(memo)
}

func (s *Service) dispatch(memo *WriteMemo) {
	m := message.NewAddressed(mti.Datagram, s.linkLayer.LocalNodeID(), memo.Dest, memo.Data)
	if err := s.linkLayer.SendMessage(m); err != nil {
		s.log.Warn("datagram: send failed", "dest", memo.Dest, "error", err)
	}
}

// advance pops the just-completed memo for dest and dispatches the next
// queued write, if any.
func (s *Service) advance(dest nodeid.ID) {
	s.mu.Lock()
	delete(s.inflight, dest)
	var next *WriteMemo
	if q := s.queues[dest]; len(q) > 0 {
		next = q[0]
		s.queues[dest] = q[1:]
		s.inflight[dest] = next
	}
	s.mu.Unlock()
	if next != nil {
		s.dispatch(next)
	}
}

// HandleLinkRestarted retransmits the outstanding write (if any) for every
// destination verbatim, matching the reference implementation's
// Link_Layer_Restarted handling.
func (s *Service) HandleLinkRestarted() {
	s.mu.Lock()
	outstanding := make([]*WriteMemo, 0, len(s.inflight))
	for _, memo := range s.inflight {
		outstanding = append(outstanding, memo)
	}
	s.mu.Unlock()
	for _, memo := range outstanding {
		metrics.IncDatagramRetry()
		s.dispatch(memo)
	}
}

// HandleLinkQuiesce marks the service quiesced. Observable only; it does
// not interrupt any in-flight retransmission.
func (s *Service) HandleLinkQuiesce() {
	s.mu.Lock()
	s.quiesced = true
	s.mu.Unlock()
}

// Quiesced reports whether Link_Layer_Quiesce has been observed.
func (s *Service) Quiesced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiesced
}

func (s *Service) handleMessage(m message.Message) {
	switch m.MTI {
	case mti.LinkLayerRestarted:
		s.HandleLinkRestarted()
	case mti.LinkLayerQuiesce:
		s.HandleLinkQuiesce()
	case mti.Datagram, mti.DatagramReceivedOK, mti.DatagramRejected:
		if m.IsGlobal() || m.Destination != s.linkLayer.LocalNodeID() {
			return
		}
		switch m.MTI {
		case mti.Datagram:
			s.handleInboundDatagram(m)
		case mti.DatagramReceivedOK:
			s.handleOK(m)
		case mti.DatagramRejected:
			s.handleRejected(m)
		}
	}
}

func (s *Service) handleInboundDatagram(m message.Message) {
	memo := ReadMemo{Source: m.Source, Data: m.Data}

	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if len(memo.Data) == 0 {
		s.replyNegative(m.Source, ErrTooShort)
		return
	}

	for _, l := range listeners {
		if l(memo) {
			return
		}
	}
	s.replyNegative(m.Source, ErrNotImplementedUnknownType)
}

// ReplyPositive sends Datagram_Received_OK to source. A non-zero flags
// value is sent as the 1-byte reply-pending flags field; flags 0
// ("received, no further reply pending") sends the reply with no payload.
func (s *Service) ReplyPositive(source nodeid.ID, flags byte) {
	data := []byte{flags}
	if flags == 0 {
		data = nil
	}
	m := message.NewAddressed(mti.DatagramReceivedOK, s.linkLayer.LocalNodeID(), source, data)
	if err := s.linkLayer.SendMessage(m); err != nil {
		s.log.Warn("datagram: positive reply failed", "dest", source, "error", err)
	}
}

// ReplyNegative sends Datagram_Rejected with the given 2-byte error code.
func (s *Service) ReplyNegative(source nodeid.ID, errorCode uint16) {
	s.replyNegative(source, errorCode)
}

func (s *Service) replyNegative(source nodeid.ID, errorCode uint16) {
	data := []byte{byte(errorCode >> 8), byte(errorCode)}
	m := message.NewAddressed(mti.DatagramRejected, s.linkLayer.LocalNodeID(), source, data)
	if err := s.linkLayer.SendMessage(m); err != nil {
		s.log.Warn("datagram: negative reply failed", "dest", source, "error", err)
	}
}

func (s *Service) handleOK(m message.Message) {
	s.mu.Lock()
	memo, ok := s.inflight[m.Source]
	s.mu.Unlock()
	if !ok {
		return
	}
	var flags byte
	if len(m.Data) > 0 {
		flags = m.Data[0]
	}
	if memo.OK != nil {
		memo.OK(flags)
	}
	s.advance(m.Source)
}

func (s *Service) handleRejected(m message.Message) {
	s.mu.Lock()
	memo, ok := s.inflight[m.Source]
	s.mu.Unlock()
	if !ok {
		return
	}
	var code uint16
	if len(m.Data) >= 2 {
		code = uint16(m.Data[0])<<8 | uint16(m.Data[1])
	}
	if memo.Rejected != nil {
		memo.Rejected(code)
	}
	s.advance(m.Source)
}
