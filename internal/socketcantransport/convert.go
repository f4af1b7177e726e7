package socketcantransport

import "github.com/kstaniek/go-openlcb-link/internal/can"
import "github.com/kstaniek/go-openlcb-link/internal/canbus"

// toCANBus strips the SocketCAN EFF/RTR/ERR flag bits, leaving the bare
// 29-bit header canbus.Frame expects.
func toCANBus(fr can.Frame) canbus.Frame {
	data := make([]byte, fr.Len)
	copy(data, fr.Data[:fr.Len])
	return canbus.Frame{Header: fr.CANID & can.CAN_EFF_MASK, Data: data}
}

// fromCANBus sets the extended-frame flag SocketCAN requires for a
// 29-bit OpenLCB header.
func fromCANBus(f canbus.Frame) can.Frame {
	var fr can.Frame
	fr.CANID = (f.Header & can.CAN_EFF_MASK) | can.CAN_EFF_FLAG
	fr.Len = uint8(len(f.Data))
	copy(fr.Data[:], f.Data)
	return fr
}
