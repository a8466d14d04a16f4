package ofswitch

import (
	"math/rand"
	"net"
	"strconv"
	"strings"

	"github.com/ups100/psik-ctrl/dns"
	"github.com/ups100/psik-ctrl/fabric"
	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/openflow"
	"github.com/ups100/psik-ctrl/packet"
)

// dnsInterceptPriority is the priority of the permanent flow-mod that
// captures every UDP datagram sourced from port 53, chosen above any
// priority a Learning-installed rule would ever use (which leaves
// Priority at its zero value).
const dnsInterceptPriority = 0xffff

// MainServer is an ARPVisible switch that additionally impersonates the
// authoritative DNS server for the service and sinks backend telemetry,
// per spec.md §4.4–§4.5.
type MainServer struct {
	ARPVisible *ARPVisible

	Fabric *fabric.Fabric
	Rng    *rand.Rand

	ll *logging.Logger
}

// NewMainServer wraps arpVisible. rng drives choose_server's random
// selection; pass a seeded *rand.Rand for deterministic tests.
func NewMainServer(arpVisible *ARPVisible, fab *fabric.Fabric, rng *rand.Rand) *MainServer {
	return &MainServer{
		ARPVisible: arpVisible,
		Fabric:     fab,
		Rng:        rng,
		ll:         defaultLogger(arpVisible.Learning.Identity.Name),
	}
}

func (m *MainServer) identity() Identity { return m.ARPVisible.Learning.Identity }

// BindConnection delegates to ARPVisible and then installs the
// permanent, highest-priority flow-mod that traps every tp_src=53
// datagram to the controller, per spec §4.4's "on connection bind"
// rule.
func (m *MainServer) BindConnection(conn *openflow.Conn) error {
	if err := m.ARPVisible.BindConnection(conn); err != nil {
		return err
	}

	match := openflow.NewMatch().
		WithDLType(etherTypeIPv4).
		WithNWProto(ipProtoUDP).
		WithTPSrc(53)

	return conn.SendFlowMod(openflow.FlowMod{
		Match:    match,
		Command:  openflow.FlowModAdd,
		Priority: dnsInterceptPriority,
		BufferID: openflow.NoBuffer,
		OutPort:  openflow.PortNone,
		Actions:  []openflow.Action{openflow.Output(openflow.PortController)},
	})
}

// OnPacketIn dispatches on whether the frame targets this switch's own
// MAC, per spec §4.4.
func (m *MainServer) OnPacketIn(pin openflow.PacketIn) {
	frame := packet.ParseFrame(pin.Data)

	if frame.DstMAC.String() != m.ARPVisible.MyMAC.String() {
		m.ARPVisible.OnPacketIn(pin)
		return
	}

	if !frame.IsUDP {
		m.dropInstall(pin, frame)
		return
	}

	q, err := dns.Parse(frame.Payload)
	switch {
	case err == nil:
		m.handleDNS(pin, frame, q)
	case err == dns.ErrNotOneQuestion:
		// Malformed question count: drop silently, no timeout install,
		// per spec §4.4.
	case frame.DstPort == fabric.TelemetryPort:
		m.handleTelemetry(pin, frame)
	default:
		m.dropInstall(pin, frame)
	}
}

func (m *MainServer) dropInstall(pin openflow.PacketIn, frame packet.Frame) {
	m.ARPVisible.Learning.dropInstall(pin, frame, &dropTimeout)
}

// handleDNS implements spec §4.4's DNS handler: an A query for the
// service name calls choose_server; a PTR query answers with the one
// reverse mapping this fabric knows; anything else is dropped.
func (m *MainServer) handleDNS(pin openflow.PacketIn, frame packet.Frame, q dns.Query) {
	name := strings.TrimSuffix(strings.ToLower(q.Name), ".")

	switch {
	case q.Qtype == dns.TypeA && name == fabric.ServiceName:
		dc, srv := m.Fabric.ChooseServer(m.Rng)
		ip := net.IPv4(10, 0, byte(dc+1), byte(srv+1))
		reply, err := dns.BuildAReply(q, ip)
		if err != nil {
			m.ll.Errorf("building A reply: %v", err)
			return
		}
		m.sendDNSReply(pin, frame, reply)

	case q.Qtype == dns.TypePTR:
		reply, err := dns.BuildPTRReply(q, fabric.ServiceName)
		if err != nil {
			m.ll.Errorf("building PTR reply: %v", err)
			return
		}
		m.sendDNSReply(pin, frame, reply)

	default:
		// Unsupported qtype: drop, per spec §4.4.
	}
}

// sendDNSReply transports payload as UDP source port 53, destination
// port equal to the query's source port, echoing the client's L2/L3
// addressing, per spec §4.1 and §4.4.
func (m *MainServer) sendDNSReply(pin openflow.PacketIn, frame packet.Frame, payload []byte) {
	conn := m.identity().Conn
	if conn == nil {
		return
	}

	req := packet.Request{SrcMAC: frame.SrcMAC, SrcIP: frame.SrcIP, SrcPort: frame.SrcPort}
	raw, err := packet.BuildUDPReply(m.ARPVisible.MyMAC, m.ARPVisible.MyIP, 53, req, payload)
	if err != nil {
		m.ll.Errorf("building DNS reply frame: %v", err)
		return
	}

	out := openflow.PacketOut{
		BufferID: openflow.NoBuffer,
		InPort:   openflow.PortNone,
		Actions:  []openflow.Action{openflow.Output(pin.InPort)},
		Data:     raw,
	}
	if err := conn.SendPacketOut(out); err != nil {
		m.ll.Errorf("DNS reply packet-out: %v", err)
	}
}

// handleTelemetry implements spec §4.5 steps 1-4: parse the
// "<cpu> <bytes>" payload, derive (dc, srv) from the ingress port and
// source IP's last octet, and ingest it into the fabric.
func (m *MainServer) handleTelemetry(pin openflow.PacketIn, frame packet.Frame) {
	fields := strings.Fields(string(frame.Payload))
	if len(fields) != 2 {
		m.ll.Errorf("telemetry: malformed payload %q", frame.Payload)
		return
	}

	cpu, err1 := strconv.ParseUint(fields[0], 10, 64)
	bytes, err2 := strconv.ParseUint(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		m.ll.Errorf("telemetry: non-numeric payload %q", frame.Payload)
		return
	}

	dc := int(pin.InPort) - 2
	v4 := frame.SrcIP.To4()
	if v4 == nil {
		m.ll.Errorf("telemetry: non-IPv4 source %s", frame.SrcIP)
		return
	}
	srv := int(v4[3]) - 1

	recomputed, err := m.Fabric.Ingest(dc, srv, frame.SrcIP.String(), cpu, bytes)
	if err != nil {
		m.ll.Errorf("telemetry ingest: %v", err)
		return
	}
	if recomputed {
		m.ll.Infof("load recomputed: dc=%v", m.Fabric.ActiveDCLoad())
	}
}
