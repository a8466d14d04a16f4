package ofswitch

import (
	"net"

	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/openflow"
	"github.com/ups100/psik-ctrl/packet"
)

// ARPVisible is a Learning switch that additionally owns an (IP, MAC)
// identity and answers ARP requests for that IP, per spec.md §4.3. It
// must be reachable at its anycast IP without any real host behind it,
// so it fabricates its own L2 presence.
type ARPVisible struct {
	Learning *Learning

	MyIP  net.IP
	MyMAC net.HardwareAddr

	ll *logging.Logger
}

// NewARPVisible wraps learning, deriving MyMAC from the switch's own
// DPID (spec §3's "dpid AND 0x0000_FFFF_FFFF_FFFF" rule) and taking
// MyIP from the caller.
func NewARPVisible(learning *Learning, myIP net.IP) *ARPVisible {
	return &ARPVisible{
		Learning: learning,
		MyIP:     myIP,
		MyMAC:    learning.Identity.DPID.MAC(),
		ll:       defaultLogger(learning.Identity.Name),
	}
}

// BindConnection delegates to the embedded Learning switch.
func (a *ARPVisible) BindConnection(conn *openflow.Conn) error {
	return a.Learning.BindConnection(conn)
}

// OnPacketIn special-cases an ARP REQUEST targeting MyIP and falls
// through to Learning otherwise, per spec §4.3.
func (a *ARPVisible) OnPacketIn(pin openflow.PacketIn) {
	_, arp, ok := packet.ParseARP(pin.Data)
	if ok && arp.IsRequest() && arp.TargetProto.Equal(a.MyIP) {
		a.replyARP(pin, arp)
		return
	}
	a.Learning.OnPacketIn(pin)
}

// replyARP synthesizes and injects an ARP reply out the ingress port,
// per spec §4.3: sender = (my_mac, my_ip), target = the requester's
// (hw, proto) pair echoed back.
func (a *ARPVisible) replyARP(pin openflow.PacketIn, req packet.ParsedARP) {
	conn := a.Learning.Identity.Conn
	if conn == nil {
		return
	}

	raw, err := packet.BuildARPReply(a.MyMAC, a.MyIP, req)
	if err != nil {
		a.ll.Errorf("building ARP reply: %v", err)
		return
	}

	out := openflow.PacketOut{
		BufferID: openflow.NoBuffer,
		InPort:   openflow.PortNone,
		Actions:  []openflow.Action{openflow.Output(pin.InPort)},
		Data:     raw,
	}
	if err := conn.SendPacketOut(out); err != nil {
		a.ll.Errorf("ARP reply packet-out: %v", err)
	}
}
