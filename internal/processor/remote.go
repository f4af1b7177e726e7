package processor

import (
	"log/slog"

	"github.com/kstaniek/go-openlcb-link/internal/eventid"
	"github.com/kstaniek/go-openlcb-link/internal/link"
	"github.com/kstaniek/go-openlcb-link/internal/message"
	"github.com/kstaniek/go-openlcb-link/internal/mti"
	"github.com/kstaniek/go-openlcb-link/internal/node"
	"github.com/kstaniek/go-openlcb-link/internal/snip"
)

// RemoteNodeProcessor builds and maintains the image of a remote node from
// observed traffic: link state, PIP, SNIP, and produced/consumed events.
// It deliberately does not track memory/CDI contents. Grounded on
// original_source/openlcb/remotenodeprocessor.py.
type RemoteNodeProcessor struct {
	linkLayer link.Layer
	log       *slog.Logger
}

// NewRemoteNodeProcessor returns a processor that solicits peer info over l.
func NewRemoteNodeProcessor(l link.Layer, log *slog.Logger) *RemoteNodeProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &RemoteNodeProcessor{linkLayer: l, log: log}
}

// Process implements node.Processor for the remote node n.
func (p *RemoteNodeProcessor) Process(msg message.Message, n *node.Node) error {
	if n == nil {
		return nil
	}
	fromNode := checkSourceID(msg, n)
	toNode := checkDestID(msg, n)
	if !(msg.MTI.IsGlobal() || fromNode || toNode) {
		return nil // not relevant to this node
	}

	// Anything at all from the node we're tracking means it must be
	// initialized, even if we came late and missed its Initialization_Complete.
	if fromNode {
		n.State = node.Initialized
	}

	switch msg.MTI {
	case mti.InitializationComplete, mti.InitializationCompleteSimple:
		p.initializationComplete(fromNode, n)
	case mti.ProtocolSupportReply:
		p.protocolSupportReply(fromNode, msg, n)
	case mti.LinkLayerUp, mti.LinkLayerDown:
		n.State = node.Uninitialized // affects everybody; caches are probably still good
	case mti.SimpleNodeIdentInfoRequest:
		p.simpleNodeIdentInfoRequest(toNode, n)
	case mti.SimpleNodeIdentInfoReply:
		p.simpleNodeIdentInfoReply(fromNode, msg, n)
	case mti.ProducerIdentifiedActive, mti.ProducerIdentifiedInactive,
		mti.ProducerIdentifiedUnknown, mti.ProducerConsumerEventReport:
		p.producedEventIndicated(fromNode, msg, n)
	case mti.ConsumerIdentifiedActive, mti.ConsumerIdentifiedInactive,
		mti.ConsumerIdentifiedUnknown:
		p.consumedEventIndicated(fromNode, msg, n)
	case mti.NewNodeSeen:
		p.newNodeSeen(n)
	}
	return nil
}

func (p *RemoteNodeProcessor) initializationComplete(fromNode bool, n *node.Node) {
	if !fromNode {
		return
	}
	n.State = node.Initialized
	n.ClearCaches() // may have changed while the node was offline
}

func (p *RemoteNodeProcessor) newNodeSeen(n *node.Node) {
	local := p.linkLayer.LocalNodeID()
	p.send(message.NewAddressed(mti.ProtocolSupportInquiry, local, n.ID, nil))
	// requested eagerly so UIs can show node names; could be deferred on
	// large networks.
	p.send(message.NewAddressed(mti.SimpleNodeIdentInfoRequest, local, n.ID, nil))
	p.send(message.NewAddressed(mti.IdentifyEventsAddressed, local, n.ID, nil))
}

func (p *RemoteNodeProcessor) protocolSupportReply(fromNode bool, msg message.Message, n *node.Node) {
	if !fromNode {
		return
	}
	n.PIP = mti.FromBytes(msg.Data)
}

func (p *RemoteNodeProcessor) simpleNodeIdentInfoRequest(toNode bool, n *node.Node) {
	if !toNode {
		return
	}
	// overlapping SNIP activity is otherwise confusing: clear and restart
	// accumulation for the reply we're about to solicit.
	n.SNIP = snip.New()
}

func (p *RemoteNodeProcessor) simpleNodeIdentInfoReply(fromNode bool, msg message.Message, n *node.Node) {
	if !fromNode || len(msg.Data) <= 2 {
		return
	}
	n.SNIP.Append(msg.Data)
	n.SNIP.UpdateStringsFromSnipData()
}

func (p *RemoteNodeProcessor) producedEventIndicated(fromNode bool, msg message.Message, n *node.Node) {
	if !fromNode {
		return
	}
	n.Events.Produces(eventid.FromBytes(msg.Data))
}

func (p *RemoteNodeProcessor) consumedEventIndicated(fromNode bool, msg message.Message, n *node.Node) {
	if !fromNode {
		return
	}
	n.Events.Consumes(eventid.FromBytes(msg.Data))
}

func (p *RemoteNodeProcessor) send(m message.Message) {
	if err := p.linkLayer.SendMessage(m); err != nil {
		p.log.Warn("processor: send failed", "message", m, "error", err)
	}
}
