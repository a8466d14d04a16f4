package ofswitch

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/ups100/psik-ctrl/openflow"
)

// readRawMessage reads one framed OpenFlow message off nc and returns
// its type and body, bypassing openflow.Conn.ReadEnvelope (which only
// decodes message types a controller receives, not FlowMod/PacketOut,
// the ones this package emits).
func readRawMessage(t *testing.T, nc net.Conn) (openflow.Type, []byte) {
	t.Helper()
	hdr := make([]byte, 8)
	if _, err := readFull(nc, hdr); err != nil {
		t.Fatalf("read header: %v", err)
	}
	length := binary.BigEndian.Uint16(hdr[2:4])
	body := make([]byte, int(length)-8)
	if len(body) > 0 {
		if _, err := readFull(nc, body); err != nil {
			t.Fatalf("read body: %v", err)
		}
	}
	return openflow.Type(hdr[1]), body
}

func readFull(nc net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := nc.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// decodedFlowMod is the subset of ofp_flow_mod this test suite checks.
type decodedFlowMod struct {
	DLType      uint16
	NWProto     uint8
	TPSrc       uint16
	InPort      uint16
	Priority    uint16
	IdleTimeout uint16
	HardTimeout uint16
	BufferID    uint32
	OutPort     uint16
	NumActions  int
	ActionPort  uint16
}

func decodeFlowMod(t *testing.T, body []byte) decodedFlowMod {
	t.Helper()
	if len(body) < 40+24 {
		t.Fatalf("flow-mod body too short: %d bytes", len(body))
	}
	d := decodedFlowMod{
		InPort:  binary.BigEndian.Uint16(body[4:6]),
		DLType:  binary.BigEndian.Uint16(body[22:24]),
		NWProto: body[25],
		TPSrc:   binary.BigEndian.Uint16(body[36:38]),
	}
	off := 40 + 8 // skip match + cookie
	off += 2      // command
	d.IdleTimeout = binary.BigEndian.Uint16(body[off : off+2])
	off += 2
	d.HardTimeout = binary.BigEndian.Uint16(body[off : off+2])
	off += 2
	d.Priority = binary.BigEndian.Uint16(body[off : off+2])
	off += 2
	d.BufferID = binary.BigEndian.Uint32(body[off : off+4])
	off += 4
	d.OutPort = binary.BigEndian.Uint16(body[off : off+2])
	off += 2
	off += 2 // flags
	actions := body[off:]
	d.NumActions = len(actions) / 8
	if d.NumActions > 0 {
		d.ActionPort = binary.BigEndian.Uint16(actions[4:6])
	}
	return d
}

type decodedPacketOut struct {
	BufferID   uint32
	InPort     uint16
	NumActions int
	ActionPort uint16
	Data       []byte
}

func decodePacketOut(t *testing.T, body []byte) decodedPacketOut {
	t.Helper()
	if len(body) < 8 {
		t.Fatalf("packet-out body too short: %d bytes", len(body))
	}
	d := decodedPacketOut{
		BufferID: binary.BigEndian.Uint32(body[0:4]),
		InPort:   binary.BigEndian.Uint16(body[4:6]),
	}
	actionsLen := int(binary.BigEndian.Uint16(body[6:8]))
	actions := body[8 : 8+actionsLen]
	d.NumActions = len(actions) / 8
	if d.NumActions > 0 {
		d.ActionPort = binary.BigEndian.Uint16(actions[4:6])
	}
	d.Data = body[8+actionsLen:]
	return d
}

// buildEthernetFrame is a test-only builder for frames this package
// only ever receives, never crafts itself (ARP/DNS/telemetry requests
// arriving from a simulated client or backend).
func buildEthernetFrame(t *testing.T, srcMAC, dstMAC net.HardwareAddr, payload ...gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: etherTypeOf(payload[0])}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	layersList := append([]gopacket.SerializableLayer{eth}, payload...)
	if err := gopacket.SerializeLayers(buf, opts, layersList...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func etherTypeOf(l gopacket.SerializableLayer) layers.EthernetType {
	switch l.(type) {
	case *layers.ARP:
		return layers.EthernetTypeARP
	default:
		return layers.EthernetTypeIPv4
	}
}

func buildUDPFrame(t *testing.T, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP.To4(), DstIP: dstIP.To4()}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum: %v", err)
	}
	return buildEthernetFrame(t, srcMAC, dstMAC, ip, udp, gopacket.Payload(payload))
}

func buildARPRequestFrame(t *testing.T, srcMAC net.HardwareAddr, srcIP net.IP, targetIP net.IP) []byte {
	t.Helper()
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: srcMAC, SourceProtAddress: srcIP.To4(),
		DstHwAddress: net.HardwareAddr{0, 0, 0, 0, 0, 0}, DstProtAddress: targetIP.To4(),
	}
	return buildEthernetFrame(t, srcMAC, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, arp)
}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	m, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	return m
}
