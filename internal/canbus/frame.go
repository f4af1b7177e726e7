// Package canbus holds the 29-bit-header CAN frame representation used
// by the OpenLCB CAN link layer, independent of any particular wire
// encoding (GridConnect, SocketCAN, cannelloni).
package canbus

import "github.com/kstaniek/go-openlcb-link/internal/nodeid"

// Frame is one CAN frame: a 29-bit extended header and up to 8 data
// bytes.
type Frame struct {
	Header uint32
	Data   []byte
}

// FromAliasCID builds a CID (Check ID) frame: the nth 12-bit field of id,
// MSB-first (n in 4..7, the OpenLCB CID numbering), shifted into the
// frame-type position with the sender's candidate alias in the low 12
// bits and the "frame, not RTR" bit (0x10000000) set.
func FromAliasCID(n int, id nodeid.ID, alias uint16) Frame {
	nodeCode := (uint64(id) >> uint((n-4)*12)) & 0xFFF
	header := (uint32(n)<<12|uint32(nodeCode))<<12 | uint32(alias&0xFFF) | 0x1000_0000
	return Frame{Header: header}
}

// FromHeaderData builds a frame directly from a 29-bit header and data
// bytes, used once the header has already been computed (e.g. by the CAN
// link layer's data-frame path).
func FromHeaderData(header uint32, data []byte) Frame {
	return Frame{Header: header, Data: data}
}

// FromControlAliasData builds a control frame (RID/AMD/AME/AMR/etc): the
// control code occupies bits 12 and up, the sender's alias the low 12
// bits, with the "frame, not RTR" bit set.
func FromControlAliasData(control uint32, alias uint16, data []byte) Frame {
	header := (control << 12) | uint32(alias&0xFFF) | 0x1000_0000
	return Frame{Header: header, Data: data}
}

// SourceAlias returns the low 12 bits of the header, the sending node's
// alias for every CAN-link frame type (data, control, and CID alike).
func (f Frame) SourceAlias() uint16 { return uint16(f.Header & 0xFFF) }
