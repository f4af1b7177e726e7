package processor

import (
	"log/slog"

	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/node"
	"github.com/kstaniek/go-openlcb-link/internal/nodeid"
)

// LocalNodeProcessor answers protocol inquiries addressed to (or global
// for) the one node this application implements. It carries no state of
// its own; everything it touches lives on the *node.Node passed to
// Process, so a single instance could in principle serve several local
// nodes. Grounded on original_source/openlcb/localnodeprocessor.py.
type LocalNodeProcessor struct {
	linkLayer link.Layer
	log       *slog.Logger
}

// NewLocalNodeProcessor returns a processor that replies over l.
func NewLocalNodeProcessor(l link.Layer, log *slog.Logger) *LocalNodeProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &LocalNodeProcessor{linkLayer: l, log: log}
}

// Process implements node.Processor for the local node n.
func (p *LocalNodeProcessor) Process(msg message.Message, n *node.Node) error {
	if n == nil || !(checkDestID(msg, n) || msg.IsGlobal()) {
		return nil // not to us
	}

	switch msg.MTI {
	case mti.LinkLayerUp:
		p.linkUp(n)
	case mti.LinkLayerDown:
		n.Reset()
	case mti.VerifyNodeIDNumberGlobal:
		p.verifyNodeIDNumberGlobal(msg, n)
	case mti.VerifyNodeIDNumberAddressed:
		p.verifyNodeIDNumberAddressed(msg, n)
	case mti.ProtocolSupportInquiry:
		p.protocolSupportInquiry(msg, n)
	case mti.ProtocolSupportReply, mti.SimpleNodeIdentInfoReply:
		// not relevant here; these are remote-node-processor concerns.
	case mti.TractionControlCommand, mti.TractionControlReply:
		// traction control is out of scope for this stack.
	case mti.Datagram, mti.DatagramRejected, mti.DatagramReceivedOK:
		// handled by the datagram service, not here.
	case mti.SimpleNodeIdentInfoRequest:
		p.simpleNodeIdentInfoRequest(msg, n)
	case mti.IdentifyEventsAddressed:
		// we declare no events; no reply necessary.
	case mti.TerminateDueToError, mti.OptionalInteractionRejected:
		p.log.Info("processor: received error notification", "message", msg)
	default:
		p.unrecognizedMTI(msg, n)
	}
	return nil
}

func (p *LocalNodeProcessor) linkUp(n *node.Node) {
	n.State = node.Initialized
	msg := message.New(mti.InitializationComplete, n.ID, n.ID.Bytes())
	p.send(msg)
}

func (p *LocalNodeProcessor) verifyNodeIDNumberGlobal(msg message.Message, n *node.Node) {
	if len(msg.Data) != 0 && nodeid.FromBytes(msg.Data) != n.ID {
		return // not to us
	}
	reply := message.NewAddressed(mti.VerifiedNodeID, n.ID, msg.Source, n.ID.Bytes())
	p.send(reply)
}

func (p *LocalNodeProcessor) verifyNodeIDNumberAddressed(msg message.Message, n *node.Node) {
	reply := message.NewAddressed(mti.VerifiedNodeID, n.ID, msg.Source, n.ID.Bytes())
	p.send(reply)
}

func (p *LocalNodeProcessor) protocolSupportInquiry(msg message.Message, n *node.Node) {
	pipBytes := n.PIP.ToBytes()
	reply := message.NewAddressed(mti.ProtocolSupportReply, n.ID, msg.Source, pipBytes[:])
	p.send(reply)
}

func (p *LocalNodeProcessor) simpleNodeIdentInfoRequest(msg message.Message, n *node.Node) {
	reply := message.NewAddressed(mti.SimpleNodeIdentInfoReply, n.ID, msg.Source, n.SNIP.ReturnStrings())
	p.send(reply)
}

// unrecognizedMTI replies Optional_Interaction_Rejected for any addressed
// message we don't otherwise handle; unrecognized global messages are
// silently ignored.
func (p *LocalNodeProcessor) unrecognizedMTI(msg message.Message, n *node.Node) {
	var originalMTI uint16
	var addressed bool
	if msg.MTI == mti.Unknown {
		originalMTI = msg.OriginalMTI
		addressed = originalMTI&0x0008 != 0
	} else {
		originalMTI = uint16(msg.MTI)
		addressed = msg.MTI.AddressPresent()
	}
	if !addressed {
		return
	}
	p.log.Info("processor: unexpected message, sending Optional_Interaction_Rejected", "message", msg)
	data := []byte{0x10, 0x43, byte(originalMTI >> 8), byte(originalMTI)}
	reply := message.NewAddressed(mti.OptionalInteractionRejected, n.ID, msg.Source, data)
	p.send(reply)
}

func (p *LocalNodeProcessor) send(m message.Message) {
	if err := p.linkLayer.SendMessage(m); err != nil {
		p.log.Warn("processor: send failed", "message", m, "error", err)
	}
}
