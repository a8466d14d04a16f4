package packet

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// ParsedARP is the subset of an ARP packet this fabric inspects.
type ParsedARP struct {
	Operation     uint16
	SenderHW      net.HardwareAddr
	SenderProto   net.IP
	TargetHW      net.HardwareAddr
	TargetProto   net.IP
}

// IsRequest reports whether the ARP operation is a request.
func (p ParsedARP) IsRequest() bool { return p.Operation == uint16(layers.ARPRequest) }

// ParseARP extracts an ARP payload from an Ethernet frame, returning
// ok=false if the frame carries no ARP layer.
func ParseARP(frame []byte) (eth layers.Ethernet, arp ParsedARP, ok bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if ethLayer == nil || arpLayer == nil {
		return layers.Ethernet{}, ParsedARP{}, false
	}

	e := *ethLayer.(*layers.Ethernet)
	a := arpLayer.(*layers.ARP)

	return e, ParsedARP{
		Operation:   a.Operation,
		SenderHW:    net.HardwareAddr(append([]byte(nil), a.SourceHwAddress...)),
		SenderProto: net.IP(append([]byte(nil), a.SourceProtAddress...)),
		TargetHW:    net.HardwareAddr(append([]byte(nil), a.DstHwAddress...)),
		TargetProto: net.IP(append([]byte(nil), a.DstProtAddress...)),
	}, true
}

// BuildARPReply crafts an ARP reply frame: sender = (myMAC, myIP),
// target = the requester's (hw, proto) pair echoed back, per spec §4.3.
func BuildARPReply(myMAC net.HardwareAddr, myIP net.IP, req ParsedARP) ([]byte, error) {
	if len(myMAC) != 6 {
		return nil, fmt.Errorf("packet: BuildARPReply: myMAC must be 6 bytes, got %d", len(myMAC))
	}

	eth := &layers.Ethernet{
		SrcMAC:       myMAC,
		DstMAC:       req.SenderHW,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   myMAC,
		SourceProtAddress: myIP.To4(),
		DstHwAddress:      req.SenderHW,
		DstProtAddress:    req.SenderProto.To4(),
	}

	return serialize(eth, arp)
}
