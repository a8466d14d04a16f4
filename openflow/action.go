package openflow

import "encoding/binary"

// An Action is a single ofp_action_header-prefixed action, as carried in
// a FlowMod's or PacketOut's action list. This controller only ever
// needs to emit "output to port N", so Action is a concrete struct
// rather than an interface hierarchy; set-field/enqueue/vendor actions
// have no caller here.
type Action struct {
	Type   ActionType
	Port   uint16
	MaxLen uint16 // only meaningful for OutputAction to PortController
}

// Output constructs an action that sends the packet out port.
func Output(port uint16) Action {
	return Action{Type: ActionTypeOutput, Port: port, MaxLen: 0xffff}
}

const actionLen = 8

func marshalActions(actions []Action) []byte {
	b := make([]byte, 0, len(actions)*actionLen)
	for _, a := range actions {
		var ab [actionLen]byte
		binary.BigEndian.PutUint16(ab[0:2], uint16(a.Type))
		binary.BigEndian.PutUint16(ab[2:4], actionLen)
		binary.BigEndian.PutUint16(ab[4:6], a.Port)
		binary.BigEndian.PutUint16(ab[6:8], a.MaxLen)
		b = append(b, ab[:]...)
	}
	return b
}
