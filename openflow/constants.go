// Package openflow is a minimal vendored OpenFlow 1.0 wire codec: just
// enough of the header, PacketIn/PacketOut/FlowMod/Hello/Echo/Features
// messages, plus the match and output-action structures, to run the
// control plane described by the fabric this controller serves. It does
// not attempt to be a general-purpose OpenFlow library.
package openflow

// Message types (ofp_type), OpenFlow 1.0 (wire version 0x01).
const (
	TypeHello Type = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeVendor
	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig
	TypePacketIn
	TypeFlowRemoved
	TypePortStatus
	TypePacketOut
	TypeFlowMod
	TypePortMod
	TypeStatsRequest
	TypeStatsReply
	TypeBarrierRequest
	TypeBarrierReply
	TypeQueueGetConfigRequest
	TypeQueueGetConfigReply
)

// Type is an OpenFlow message type (ofp_type).
type Type uint8

func (t Type) String() string {
	names := [...]string{
		"HELLO", "ERROR", "ECHO_REQUEST", "ECHO_REPLY", "VENDOR",
		"FEATURES_REQUEST", "FEATURES_REPLY", "GET_CONFIG_REQUEST",
		"GET_CONFIG_REPLY", "SET_CONFIG", "PACKET_IN", "FLOW_REMOVED",
		"PORT_STATUS", "PACKET_OUT", "FLOW_MOD", "PORT_MOD",
		"STATS_REQUEST", "STATS_REPLY", "BARRIER_REQUEST",
		"BARRIER_REPLY", "QUEUE_GET_CONFIG_REQUEST", "QUEUE_GET_CONFIG_REPLY",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "UNKNOWN"
}

// Version is the OpenFlow wire version this codec speaks.
const Version uint8 = 0x01

// headerLen is the length in bytes of ofp_header.
const headerLen = 8

// Reserved port numbers (ofp_port).
const (
	PortMax        uint16 = 0xff00
	PortInPort     uint16 = 0xfff8
	PortTable      uint16 = 0xfff9
	PortNormal     uint16 = 0xfffa
	PortFlood      uint16 = 0xfffb
	PortAll        uint16 = 0xfffc
	PortController uint16 = 0xfffd
	PortLocal      uint16 = 0xfffe
	PortNone       uint16 = 0xffff
)

// NoBuffer is the sentinel buffer id meaning "the packet is included
// in-line, not held in a switch buffer".
const NoBuffer uint32 = 0xffffffff

// Action types (ofp_action_type). Only OUTPUT is needed by this
// controller; the rest are listed for completeness of the vendored
// constant block, mirroring how the pack's own OpenFlow constant file
// (cherryd's openflow/constants.go) enumerates the full set even when a
// given controller only emits a few of them.
const (
	ActionTypeOutput ActionType = iota
	ActionTypeSetVLANVID
	ActionTypeSetVLANPCP
	ActionTypeStripVLAN
	ActionTypeSetDLSrc
	ActionTypeSetDLDst
	ActionTypeSetNWSrc
	ActionTypeSetNWDst
	ActionTypeSetNWTos
	ActionTypeSetTPSrc
	ActionTypeSetTPDst
	ActionTypeEnqueue
	ActionTypeVendor ActionType = 0xffff
)

// ActionType is an ofp_action_type.
type ActionType uint16

// FlowMod commands (ofp_flow_mod_command).
const (
	FlowModAdd FlowModCommand = iota
	FlowModModify
	FlowModModifyStrict
	FlowModDelete
	FlowModDeleteStrict
)

// FlowModCommand is an ofp_flow_mod_command.
type FlowModCommand uint16

// FlowMod flags (ofp_flow_mod_flags).
const (
	FlowModFlagSendFlowRem uint16 = 1 << 0
	FlowModFlagCheckOverlap uint16 = 1 << 1
	FlowModFlagEmergency    uint16 = 1 << 2
)

// PacketIn reasons (ofp_packet_in_reason).
const (
	ReasonNoMatch PacketInReason = iota
	ReasonAction
)

// PacketInReason is an ofp_packet_in_reason.
type PacketInReason uint8

// Match wildcard bits (ofp_flow_wildcards). Single-bit fields have
// exported names; the nw_src/nw_dst prefix-length fields are 6-bit
// masks kept unexported and set through Match's NWSrcBits/NWDstBits.
const (
	WildcardInPort  uint32 = 1 << 0
	WildcardDLVLAN  uint32 = 1 << 1
	WildcardDLSrc   uint32 = 1 << 2
	WildcardDLDst   uint32 = 1 << 3
	WildcardDLType  uint32 = 1 << 4
	WildcardNWProto uint32 = 1 << 5
	WildcardTPSrc   uint32 = 1 << 6
	WildcardTPDst   uint32 = 1 << 7

	wildcardNWSrcShift = 8
	wildcardNWDstShift = 14
	wildcardNWSrcMask  uint32 = 0x3f << wildcardNWSrcShift
	wildcardNWDstMask  uint32 = 0x3f << wildcardNWDstShift

	WildcardDLVLANPCP uint32 = 1 << 20
	WildcardNWTos     uint32 = 1 << 21

	// WildcardAll matches everything (used for the DNS-intercept flow
	// whose match is built field by field rather than from a packet).
	WildcardAll uint32 = (1 << 22) - 1
)
