package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Frame is the minimal parse of an Ethernet frame this fabric cares
// about: the L2 addressing plus, when present, the IPv4/UDP headers
// carried inside it. Fields are zero when the corresponding layer is
// absent (IsIPv4/IsUDP report which are meaningful).
type Frame struct {
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
	// EtherType is layers.EthernetType, kept as uint16 so this package
	// has no callers reaching into gopacket/layers directly.
	EtherType uint16

	IsIPv4  bool
	SrcIP   net.IP
	DstIP   net.IP
	NWProto uint8

	IsUDP   bool
	SrcPort uint16
	DstPort uint16

	// Payload is the innermost layer's payload — the UDP payload when
	// IsUDP, the IPv4 payload otherwise.
	Payload []byte
}

// Multicast reports whether dst is a multicast (including broadcast)
// Ethernet address, per spec §4.2's flood policy.
func (f Frame) Multicast() bool {
	return len(f.DstMAC) > 0 && f.DstMAC[0]&0x01 == 1
}

// ParseFrame decodes an Ethernet frame, walking into IPv4/UDP if
// present. It never errors on an unrecognized payload — the upper
// layers are simply left absent, which is how the controller tells
// "not our business" apart from a malformed frame (spec §7 treats only
// parseable-but-invalid payloads as malformed, not unknown
// ethertypes).
func ParseFrame(raw []byte) Frame {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.NoCopy)

	f := Frame{}
	if el, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		f.SrcMAC = append(net.HardwareAddr(nil), el.SrcMAC...)
		f.DstMAC = append(net.HardwareAddr(nil), el.DstMAC...)
		f.EtherType = uint16(el.EthernetType)
	}

	if il, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		f.IsIPv4 = true
		f.SrcIP = append(net.IP(nil), il.SrcIP...)
		f.DstIP = append(net.IP(nil), il.DstIP...)
		f.NWProto = uint8(il.Protocol)
		f.Payload = il.Payload
	}

	if ul, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		f.IsUDP = true
		f.SrcPort = uint16(ul.SrcPort)
		f.DstPort = uint16(ul.DstPort)
		f.Payload = ul.Payload
	}

	return f
}
