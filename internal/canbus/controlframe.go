package canbus

// ControlFrame identifies the CAN-level control codes used by the alias
// allocation handshake and datagram/addressed-message framing, plus a
// handful of internal-only values (LinkUp and friends) used to signal
// state changes between the link layer and its listeners; these never
// appear on the wire.
type ControlFrame uint32

const (
	RID  ControlFrame = 0x0700
	AMD  ControlFrame = 0x0701
	AME  ControlFrame = 0x0702
	AMR  ControlFrame = 0x0703
	EIR0 ControlFrame = 0x0710
	EIR1 ControlFrame = 0x0711
	EIR2 ControlFrame = 0x0712
	EIR3 ControlFrame = 0x0713

	CID  ControlFrame = 0x4000
	Data ControlFrame = 0x18000

	// Internal only; never on the wire.
	LinkUp        ControlFrame = 0x20000
	LinkRestarted ControlFrame = 0x20001
	LinkCollision ControlFrame = 0x20002
	LinkError     ControlFrame = 0x20003
	LinkDown      ControlFrame = 0x20004
	UnknownFormat ControlFrame = 0x21000
)

// DecodeControlFrameFormat classifies a 29-bit header. Frames with bit
// 0x08000000 set are data frames (caller should read the MTI out of the
// header directly, not via this function). Frames with bit 0x04000000
// set are CID frames. Everything else is matched against the known
// control codes in bits 12 and up, masked to the range the codes above
// occupy; an unrecognized value maps to UnknownFormat.
func DecodeControlFrameFormat(header uint32) ControlFrame {
	if header&0x0800_0000 != 0 {
		return Data
	}
	if header&0x0400_0000 != 0 {
		return CID
	}
	code := ControlFrame((header >> 12) & 0x2FFFF)
	switch code {
	case RID, AMD, AME, AMR, EIR0, EIR1, EIR2, EIR3:
		return code
	default:
		return UnknownFormat
	}
}
