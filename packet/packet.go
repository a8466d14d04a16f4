// Package packet builds the well-formed Ethernet frames (carrying ARP,
// IPv4/UDP, or IPv4/UDP/DNS payloads) that the switch roles inject back
// onto the wire. Every builder here is side-effect free: it returns the
// serialized frame bytes and never touches a connection.
package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// EtherARP and EtherIPv4 are the Ethertypes this fabric ever crafts.
const (
	EtherARP  = layers.EthernetTypeARP
	EtherIPv4 = layers.EthernetTypeIPv4
)

// serializeOpts is shared by every builder in this package: checksums
// are always recomputed (crafted replies never carry a pre-existing,
// possibly stale checksum) and length fields are always recomputed from
// the layers' contents.
var serializeOpts = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// Request captures the fields of an inbound frame that a crafted reply
// must echo, per the packet-crafting contract (spec §4.1): the
// requester's MAC/IP and the transport identifiers that tie the reply
// to the original query.
type Request struct {
	SrcMAC net.HardwareAddr
	SrcIP  net.IP
	SrcPort uint16
}

// serialize runs gopacket's layered serializer over l, returning the
// finished wire bytes.
func serialize(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, l...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
