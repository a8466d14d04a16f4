package packet

import (
	"net"
	"testing"
)

func mustMAC(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestARPRequestReplyRoundTrip(t *testing.T) {
	myMAC := mustMAC("00:00:00:01:00:00")
	myIP := net.ParseIP("10.254.254.254")
	reqMAC := mustMAC("00:00:00:00:00:01")
	reqIP := net.ParseIP("10.1.0.1")

	req := ParsedARP{
		Operation:   1, // request
		SenderHW:    reqMAC,
		SenderProto: reqIP,
		TargetHW:    mustMAC("00:00:00:00:00:00"),
		TargetProto: myIP,
	}
	if !req.IsRequest() {
		t.Fatal("expected IsRequest() true")
	}

	raw, err := BuildARPReply(myMAC, myIP, req)
	if err != nil {
		t.Fatalf("BuildARPReply: %v", err)
	}

	gotEth, gotARP, ok := ParseARP(raw)
	if !ok {
		t.Fatal("ParseARP: expected ok=true")
	}
	if gotEth.SrcMAC.String() != myMAC.String() {
		t.Errorf("eth.SrcMAC = %s, want %s", gotEth.SrcMAC, myMAC)
	}
	if gotEth.DstMAC.String() != reqMAC.String() {
		t.Errorf("eth.DstMAC = %s, want %s", gotEth.DstMAC, reqMAC)
	}
	if gotARP.IsRequest() {
		t.Error("reply should not report IsRequest() true")
	}
	if !gotARP.SenderHW.Equal(myMAC) {
		t.Errorf("SenderHW = %s, want %s", gotARP.SenderHW, myMAC)
	}
	if !gotARP.SenderProto.Equal(myIP) {
		t.Errorf("SenderProto = %s, want %s", gotARP.SenderProto, myIP)
	}
	if !gotARP.TargetHW.Equal(reqMAC) {
		t.Errorf("TargetHW = %s, want %s", gotARP.TargetHW, reqMAC)
	}
	if !gotARP.TargetProto.Equal(reqIP) {
		t.Errorf("TargetProto = %s, want %s", gotARP.TargetProto, reqIP)
	}
}

func TestBuildUDPReplyParsesBack(t *testing.T) {
	myMAC := mustMAC("00:00:00:01:00:00")
	myIP := net.ParseIP("10.254.254.254")
	clientMAC := mustMAC("00:00:00:00:00:02")
	clientIP := net.ParseIP("10.1.0.1")

	req := Request{SrcMAC: clientMAC, SrcIP: clientIP, SrcPort: 4096}
	payload := []byte("hello")

	raw, err := BuildUDPReply(myMAC, myIP, 53, req, payload)
	if err != nil {
		t.Fatalf("BuildUDPReply: %v", err)
	}

	f := ParseFrame(raw)
	if !f.IsIPv4 || !f.IsUDP {
		t.Fatalf("expected parsed IPv4/UDP frame, got %+v", f)
	}
	if f.SrcMAC.String() != myMAC.String() || f.DstMAC.String() != clientMAC.String() {
		t.Errorf("MACs = %s -> %s, want %s -> %s", f.SrcMAC, f.DstMAC, myMAC, clientMAC)
	}
	if !f.SrcIP.Equal(myIP) || !f.DstIP.Equal(clientIP) {
		t.Errorf("IPs = %s -> %s, want %s -> %s", f.SrcIP, f.DstIP, myIP, clientIP)
	}
	if f.SrcPort != 53 || f.DstPort != 4096 {
		t.Errorf("ports = %d -> %d, want 53 -> 4096", f.SrcPort, f.DstPort)
	}
	if string(f.Payload) != "hello" {
		t.Errorf("payload = %q, want %q", f.Payload, "hello")
	}
}

func TestFrameMulticast(t *testing.T) {
	f := Frame{DstMAC: mustMAC("ff:ff:ff:ff:ff:ff")}
	if !f.Multicast() {
		t.Error("broadcast address should be reported as multicast")
	}
	f2 := Frame{DstMAC: mustMAC("00:11:22:33:44:55")}
	if f2.Multicast() {
		t.Error("unicast address should not be reported as multicast")
	}
}
