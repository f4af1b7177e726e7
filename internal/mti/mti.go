// Package mti defines the OpenLCB Message Type Indicator codes and the
// Protocol Identification Protocol (PIP) bitfield.
package mti

import "fmt"

// MTI is a 16-bit Message Type Indicator. Values mirror the OpenLCB
// standard; the internal Link_Layer_* and New_Node_Seen values are not
// present on the wire and exist only for signalling between the link
// layer and the upper layers.
type MTI uint16

const (
	InitializationComplete       MTI = 0x0100
	InitializationCompleteSimple MTI = 0x0101
	VerifyNodeIDNumberAddressed  MTI = 0x0488
	VerifyNodeIDNumberGlobal     MTI = 0x0490
	VerifiedNodeID               MTI = 0x0170
	VerifiedNodeIDSimple         MTI = 0x0171
	OptionalInteractionRejected  MTI = 0x0068
	TerminateDueToError          MTI = 0x00A8

	ProtocolSupportInquiry MTI = 0x0828
	ProtocolSupportReply   MTI = 0x0668

	IdentifyConsumer           MTI = 0x08F4
	ConsumerRangeIdentified    MTI = 0x04A4
	ConsumerIdentifiedUnknown  MTI = 0x04C7
	ConsumerIdentifiedActive   MTI = 0x04C4
	ConsumerIdentifiedInactive MTI = 0x04C5
	IdentifyProducer           MTI = 0x0914
	ProducerRangeIdentified    MTI = 0x0524
	ProducerIdentifiedUnknown  MTI = 0x0547
	ProducerIdentifiedActive   MTI = 0x0544
	ProducerIdentifiedInactive MTI = 0x0545
	IdentifyEventsAddressed    MTI = 0x0968
	IdentifyEventsGlobal       MTI = 0x0970
	LearnEvent                 MTI = 0x0594
	ProducerConsumerEventReport MTI = 0x05B4

	SimpleNodeIdentInfoRequest MTI = 0x0DE8
	SimpleNodeIdentInfoReply   MTI = 0x0A08

	RemoteButtonRequest MTI = 0x0948
	RemoteButtonReply   MTI = 0x0549

	TractionControlCommand MTI = 0x05EB
	TractionControlReply   MTI = 0x01E9

	Datagram           MTI = 0x1C48
	DatagramReceivedOK MTI = 0x0A28
	DatagramRejected   MTI = 0x0A48

	// Unknown is the sentinel for an unrecognized 16-bit code. The
	// original 16-bit value is NOT recoverable from the MTI alone; callers
	// that need it carry it alongside (see message.Message.OriginalMTI).
	Unknown MTI = 0x0008

	// Internal signalling values; never on the wire.
	LinkLayerUp        MTI = 0x2000
	LinkLayerQuiesce   MTI = 0x2010
	LinkLayerRestarted MTI = 0x2020
	LinkLayerDown      MTI = 0x2030

	NewNodeSeen MTI = 0x2048
)

var names = map[MTI]string{
	InitializationComplete:       "Initialization_Complete",
	InitializationCompleteSimple: "Initialization_Complete_Simple",
	VerifyNodeIDNumberAddressed:  "Verify_NodeID_Number_Addressed",
	VerifyNodeIDNumberGlobal:     "Verify_NodeID_Number_Global",
	VerifiedNodeID:               "Verified_NodeID",
	VerifiedNodeIDSimple:         "Verified_NodeID_Simple",
	OptionalInteractionRejected:  "Optional_Interaction_Rejected",
	TerminateDueToError:          "Terminate_Due_To_Error",
	ProtocolSupportInquiry:       "Protocol_Support_Inquiry",
	ProtocolSupportReply:         "Protocol_Support_Reply",
	IdentifyConsumer:             "Identify_Consumer",
	ConsumerRangeIdentified:      "Consumer_Range_Identified",
	ConsumerIdentifiedUnknown:    "Consumer_Identified_Unknown",
	ConsumerIdentifiedActive:     "Consumer_Identified_Active",
	ConsumerIdentifiedInactive:   "Consumer_Identified_Inactive",
	IdentifyProducer:             "Identify_Producer",
	ProducerRangeIdentified:      "Producer_Range_Identified",
	ProducerIdentifiedUnknown:    "Producer_Identified_Unknown",
	ProducerIdentifiedActive:     "Producer_Identified_Active",
	ProducerIdentifiedInactive:   "Producer_Identified_Inactive",
	IdentifyEventsAddressed:      "Identify_Events_Addressed",
	IdentifyEventsGlobal:         "Identify_Events_Global",
	LearnEvent:                   "Learn_Event",
	ProducerConsumerEventReport:  "Producer_Consumer_Event_Report",
	SimpleNodeIdentInfoRequest:   "Simple_Node_Ident_Info_Request",
	SimpleNodeIdentInfoReply:     "Simple_Node_Ident_Info_Reply",
	RemoteButtonRequest:          "Remote_Button_Request",
	RemoteButtonReply:            "Remote_Button_Reply",
	TractionControlCommand:       "Traction_Control_Command",
	TractionControlReply:         "Traction_Control_Reply",
	Datagram:                     "Datagram",
	DatagramReceivedOK:           "Datagram_Received_OK",
	DatagramRejected:             "Datagram_Rejected",
	Unknown:                      "Unknown",
	LinkLayerUp:                  "Link_Layer_Up",
	LinkLayerQuiesce:             "Link_Layer_Quiesce",
	LinkLayerRestarted:           "Link_Layer_Restarted",
	LinkLayerDown:                "Link_Layer_Down",
	NewNodeSeen:                  "New_Node_Seen",
}

// String returns the canonical OpenLCB name, or a hex fallback for a code
// this package doesn't recognize (which should only happen for a raw
// numeric value, never for the Unknown sentinel itself).
func (m MTI) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("MTI(0x%04X)", uint16(m))
}

// Priority returns the 2-bit priority field.
func (m MTI) Priority() int { return int(m&0x0C00) >> 10 }

// AddressPresent reports whether this MTI carries a destination NodeID.
func (m MTI) AddressPresent() bool { return m&0x0008 != 0 }

// EventIDPresent reports whether this MTI's payload is an EventID.
func (m MTI) EventIDPresent() bool { return m&0x0004 != 0 }

// SimpleProtocol reports the "simple" variant bit.
func (m MTI) SimpleProtocol() bool { return m&0x0010 != 0 }

// IsGlobal reports whether this MTI is global (not addressed).
func (m MTI) IsGlobal() bool { return m&0x0008 == 0 }

// FromUint16 maps a raw 16-bit code to a known MTI, or (Unknown, false) if
// the code isn't recognized. Callers that need to report the offending
// code (e.g. to build an Optional_Interaction_Rejected reply) must keep
// the raw value themselves; it is not recoverable from Unknown.
func FromUint16(v uint16) (MTI, bool) {
	m := MTI(v)
	if _, ok := names[m]; ok && m != Unknown {
		return m, true
	}
	if v == uint16(Unknown) {
		return Unknown, true
	}
	return Unknown, false
}
