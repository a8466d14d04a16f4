package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// BuildUDPReply wraps payload in UDP/IPv4/Ethernet, echoing the
// requester's MAC/IP as destination and the requester's source port as
// destination port, with the controller's own (myMAC, myIP) as source
// and srcPort as the UDP source port — the shared transport-framing
// half of the packet-crafting contract in spec §4.1. DNS replies and
// any other UDP-borne reply this fabric ever sends go through this one
// path.
func BuildUDPReply(myMAC net.HardwareAddr, myIP net.IP, srcPort uint16, req Request, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       myMAC,
		DstMAC:       req.SrcMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    myIP.To4(),
		DstIP:    req.SrcIP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(req.SrcPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	return serialize(eth, ip, udp, gopacket.Payload(payload))
}
