package ofswitch

import (
	"net"

	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/openflow"
	"github.com/ups100/psik-ctrl/packet"
)

// Learning is a generic MAC-learning forwarder: the default role for
// client-side and data-center-internal switches, per spec.md §4.2.
// Its mac_table is touched only from the single goroutine driving this
// switch's own connection's read loop (see SPEC_FULL §5), so it needs
// no lock.
type Learning struct {
	Identity Identity

	macTable map[string]uint16
	ll       *logging.Logger
}

// NewLearning constructs a Learning bound to the given identity.
func NewLearning(id Identity) *Learning {
	return &Learning{
		Identity: id,
		macTable: make(map[string]uint16),
		ll:       defaultLogger(id.Name),
	}
}

// BindConnection records conn as the live connection for this switch,
// per spec §3's "populated exactly once on ConnectionUp" invariant.
func (l *Learning) BindConnection(conn *openflow.Conn) error {
	l.Identity.Conn = conn
	return nil
}

// OnPacketIn implements spec.md §4.2's five-step handler.
func (l *Learning) OnPacketIn(pin openflow.PacketIn) {
	frame := packet.ParseFrame(pin.Data)
	l.learn(frame.SrcMAC, pin.InPort)

	if frame.Multicast() {
		l.flood(pin)
		return
	}

	outPort, ok := l.macTable[frame.DstMAC.String()]
	if !ok {
		l.flood(pin)
		return
	}

	if outPort == pin.InPort {
		l.dropInstall(pin, frame, &dropTimeout)
		return
	}

	l.installForward(pin, frame, outPort)
}

// learn records the ingress port a source MAC was last seen on,
// unconditionally overwriting any prior entry — spec §4.2's "eventually
// consistent with the true topology" edge case.
func (l *Learning) learn(src net.HardwareAddr, port uint16) {
	if len(src) == 0 {
		return
	}
	l.macTable[src.String()] = port
}

// flood emits a PacketOut referencing the triggering packet with
// action FLOOD.
func (l *Learning) flood(pin openflow.PacketIn) {
	l.sendPacketOut(pin, openflow.Output(openflow.PortFlood))
}

// dropInstall implements spec §4.2's drop-install helper: when d is
// non-nil, install a flow-mod with an empty action list and d's
// timeouts; when nil, just consume the buffered packet via a
// no-action PacketOut.
func (l *Learning) dropInstall(pin openflow.PacketIn, frame packet.Frame, d *Timeouts) {
	if d == nil {
		l.sendPacketOut(pin)
		return
	}

	conn := l.Identity.Conn
	if conn == nil {
		return
	}
	match := matchFromFrame(frame, pin.InPort)
	err := conn.SendFlowMod(openflow.FlowMod{
		Match:       match,
		Command:     openflow.FlowModAdd,
		IdleTimeout: d.Idle,
		HardTimeout: d.Hard,
		BufferID:    pin.BufferID,
		OutPort:     openflow.PortNone,
	})
	if err != nil {
		l.ll.Errorf("drop-install flow-mod: %v", err)
	}
}

// installForward implements spec §4.2 step 5: install a flow matching
// the full L2/L3 five-tuple plus ingress port, output to outPort, and
// forward the buffered packet that triggered the miss (via the
// flow-mod's own buffer_id, which OpenFlow 1.0 processes immediately on
// install).
func (l *Learning) installForward(pin openflow.PacketIn, frame packet.Frame, outPort uint16) {
	conn := l.Identity.Conn
	if conn == nil {
		return
	}
	match := matchFromFrame(frame, pin.InPort)
	err := conn.SendFlowMod(openflow.FlowMod{
		Match:       match,
		Command:     openflow.FlowModAdd,
		IdleTimeout: learningTimeout.Idle,
		HardTimeout: learningTimeout.Hard,
		BufferID:    pin.BufferID,
		OutPort:     outPort,
		Actions:     []openflow.Action{openflow.Output(outPort)},
	})
	if err != nil {
		l.ll.Errorf("forward flow-mod: %v", err)
	}
}

// sendPacketOut emits pin's buffered (or, absent a buffer, inline)
// packet with the given actions.
func (l *Learning) sendPacketOut(pin openflow.PacketIn, actions ...openflow.Action) {
	conn := l.Identity.Conn
	if conn == nil {
		return
	}
	out := openflow.PacketOut{
		BufferID: pin.BufferID,
		InPort:   pin.InPort,
		Actions:  actions,
	}
	if pin.BufferID == openflow.NoBuffer {
		out.Data = pin.Data
	}
	if err := conn.SendPacketOut(out); err != nil {
		l.ll.Errorf("packet-out: %v", err)
	}
}

// matchFromFrame builds the ofp_match spec §4.2 step 5 describes: the
// full L2/L3 five-tuple extracted from the triggering frame plus
// ingress port.
func matchFromFrame(frame packet.Frame, inPort uint16) openflow.Match {
	m := openflow.NewMatch().
		WithInPort(inPort).
		WithDLSrc(frame.SrcMAC).
		WithDLDst(frame.DstMAC).
		WithDLType(frame.EtherType)

	if frame.IsIPv4 {
		m = m.WithNWProto(frame.NWProto).WithNWSrc(frame.SrcIP).WithNWDst(frame.DstIP)
	}
	if frame.IsUDP {
		m = m.WithTPSrc(frame.SrcPort).WithTPDst(frame.DstPort)
	}
	return m
}
