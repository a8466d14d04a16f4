package openflow

import (
	"encoding/binary"
	"fmt"
)

// Hello carries no body in OpenFlow 1.0.
type Hello struct{}

// EchoRequest/EchoReply carry an opaque payload that must be echoed
// back verbatim; this controller never sends a non-empty one, but
// preserves whatever a switch sends.
type EchoRequest struct{ Data []byte }
type EchoReply struct{ Data []byte }

// FeaturesRequest carries no body.
type FeaturesRequest struct{}

// FeaturesReply is the fixed-length part of ofp_switch_features; only
// DatapathID is used by the controller. The port descriptions that
// follow are not decoded; this controller does not track port hardware
// state.
type FeaturesReply struct {
	DatapathID   uint64
	NumBuffers   uint32
	NumTables    uint8
	Capabilities uint32
	Actions      uint32
}

// PacketIn is ofp_packet_in.
type PacketIn struct {
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   PacketInReason
	Data     []byte
}

// PacketOut is ofp_packet_out. Exactly one of BufferID (valid, i.e. not
// NoBuffer) or Data should be set, matching the OpenFlow 1.0 contract:
// a buffered packet is referenced by id, an injected one is carried
// in-line.
type PacketOut struct {
	BufferID uint32
	InPort   uint16
	Actions  []Action
	Data     []byte
}

// FlowMod is ofp_flow_mod.
type FlowMod struct {
	Match       Match
	Cookie      uint64
	Command     FlowModCommand
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint16
	Flags       uint16
	Actions     []Action
}

// Envelope is a decoded OpenFlow message: the header fields plus one of
// the payload types above in Body.
type Envelope struct {
	Type Type
	Xid  uint32
	Body interface{}
}

// EncodeHello encodes a Hello message.
func EncodeHello(xid uint32) []byte {
	return header(TypeHello, xid, nil)
}

// EncodeEchoRequest encodes an EchoRequest message.
func EncodeEchoRequest(xid uint32, data []byte) []byte {
	return header(TypeEchoRequest, xid, data)
}

// EncodeEchoReply encodes an EchoReply message.
func EncodeEchoReply(xid uint32, data []byte) []byte {
	return header(TypeEchoReply, xid, data)
}

// EncodeFeaturesRequest encodes a FeaturesRequest message.
func EncodeFeaturesRequest(xid uint32) []byte {
	return header(TypeFeaturesRequest, xid, nil)
}

// EncodePacketOut encodes a PacketOut message.
func EncodePacketOut(xid uint32, m PacketOut) []byte {
	actions := marshalActions(m.Actions)

	body := make([]byte, 8+len(actions)+len(m.Data))
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint16(body[4:6], m.InPort)
	binary.BigEndian.PutUint16(body[6:8], uint16(len(actions)))
	copy(body[8:], actions)
	copy(body[8+len(actions):], m.Data)

	return header(TypePacketOut, xid, body)
}

// EncodeFlowMod encodes a FlowMod message.
func EncodeFlowMod(xid uint32, m FlowMod) []byte {
	actions := marshalActions(m.Actions)

	body := make([]byte, matchLen+24+len(actions))
	copy(body[0:matchLen], m.Match.marshal())
	off := matchLen
	binary.BigEndian.PutUint64(body[off:off+8], m.Cookie)
	off += 8
	binary.BigEndian.PutUint16(body[off:off+2], uint16(m.Command))
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.IdleTimeout)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.HardTimeout)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.Priority)
	off += 2
	binary.BigEndian.PutUint32(body[off:off+4], m.BufferID)
	off += 4
	binary.BigEndian.PutUint16(body[off:off+2], m.OutPort)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.Flags)
	off += 2
	copy(body[off:], actions)

	return header(TypeFlowMod, xid, body)
}

// header prepends an 8-byte ofp_header to body.
func header(t Type, xid uint32, body []byte) []byte {
	msg := make([]byte, headerLen+len(body))
	msg[0] = Version
	msg[1] = uint8(t)
	binary.BigEndian.PutUint16(msg[2:4], uint16(len(msg)))
	binary.BigEndian.PutUint32(msg[4:8], xid)
	copy(msg[headerLen:], body)
	return msg
}

// decodeBody parses a message body given its type, returning the typed
// payload for Envelope.Body.
func decodeBody(t Type, body []byte) (interface{}, error) {
	switch t {
	case TypeHello:
		return Hello{}, nil
	case TypeEchoRequest:
		return EchoRequest{Data: append([]byte(nil), body...)}, nil
	case TypeEchoReply:
		return EchoReply{Data: append([]byte(nil), body...)}, nil
	case TypeFeaturesRequest:
		return FeaturesRequest{}, nil
	case TypeFeaturesReply:
		return decodeFeaturesReply(body)
	case TypePacketIn:
		return decodePacketIn(body)
	default:
		return nil, fmt.Errorf("openflow: unsupported incoming message type %s", t)
	}
}

func decodeFeaturesReply(b []byte) (FeaturesReply, error) {
	if len(b) < 24 {
		return FeaturesReply{}, fmt.Errorf("openflow: short features reply: %d bytes", len(b))
	}
	return FeaturesReply{
		DatapathID:   binary.BigEndian.Uint64(b[0:8]),
		NumBuffers:   binary.BigEndian.Uint32(b[8:12]),
		NumTables:    b[12],
		Capabilities: binary.BigEndian.Uint32(b[16:20]),
		Actions:      binary.BigEndian.Uint32(b[20:24]),
	}, nil
}

func decodePacketIn(b []byte) (PacketIn, error) {
	if len(b) < 10 {
		return PacketIn{}, fmt.Errorf("openflow: short packet-in: %d bytes", len(b))
	}
	return PacketIn{
		BufferID: binary.BigEndian.Uint32(b[0:4]),
		TotalLen: binary.BigEndian.Uint16(b[4:6]),
		InPort:   binary.BigEndian.Uint16(b[6:8]),
		Reason:   PacketInReason(b[8]),
		// b[9] pad
		Data: append([]byte(nil), b[10:]...),
	}, nil
}
