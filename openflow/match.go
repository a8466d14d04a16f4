package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

// matchLen is the wire length of ofp_match in OpenFlow 1.0.
const matchLen = 40

// Match is an ofp_match: the set of packet header fields a flow-mod or
// flow-removed message matches against. Unset fields (those not passed
// to one of the With* builders) are wildcarded.
type Match struct {
	Wildcards  uint32
	InPort     uint16
	DLSrc      net.HardwareAddr
	DLDst      net.HardwareAddr
	DLVLAN     uint16
	DLVLANPCP  uint8
	DLType     uint16
	NWTos      uint8
	NWProto    uint8
	NWSrc      net.IP
	NWDst      net.IP
	NWSrcBits  uint8 // number of significant prefix bits, 0 = wildcard
	NWDstBits  uint8
	TPSrc      uint16
	TPDst      uint16
}

// NewMatch returns a Match wildcarding every field.
func NewMatch() Match {
	return Match{Wildcards: WildcardAll}
}

// WithInPort narrows the match to a specific ingress port.
func (m Match) WithInPort(port uint16) Match {
	m.InPort = port
	m.Wildcards &^= WildcardInPort
	return m
}

// WithDLSrc narrows the match to a specific source MAC.
func (m Match) WithDLSrc(mac net.HardwareAddr) Match {
	m.DLSrc = mac
	m.Wildcards &^= WildcardDLSrc
	return m
}

// WithDLDst narrows the match to a specific destination MAC.
func (m Match) WithDLDst(mac net.HardwareAddr) Match {
	m.DLDst = mac
	m.Wildcards &^= WildcardDLDst
	return m
}

// WithDLType narrows the match to a specific Ethertype.
func (m Match) WithDLType(etherType uint16) Match {
	m.DLType = etherType
	m.Wildcards &^= WildcardDLType
	return m
}

// WithNWProto narrows the match to a specific IP protocol number.
func (m Match) WithNWProto(proto uint8) Match {
	m.NWProto = proto
	m.Wildcards &^= WildcardNWProto
	return m
}

// WithNWSrc narrows the match to a specific source IPv4 address.
func (m Match) WithNWSrc(ip net.IP) Match {
	m.NWSrc = ip
	m.NWSrcBits = 32
	m.Wildcards &^= wildcardNWSrcMask
	return m
}

// WithNWDst narrows the match to a specific destination IPv4 address.
func (m Match) WithNWDst(ip net.IP) Match {
	m.NWDst = ip
	m.NWDstBits = 32
	m.Wildcards &^= wildcardNWDstMask
	return m
}

// WithTPSrc narrows the match to a specific transport source port.
func (m Match) WithTPSrc(port uint16) Match {
	m.TPSrc = port
	m.Wildcards &^= WildcardTPSrc
	return m
}

// WithTPDst narrows the match to a specific transport destination port.
func (m Match) WithTPDst(port uint16) Match {
	m.TPDst = port
	m.Wildcards &^= WildcardTPDst
	return m
}

// marshal encodes m as the 40-byte ofp_match wire structure.
func (m Match) marshal() []byte {
	b := make([]byte, matchLen)
	binary.BigEndian.PutUint32(b[0:4], m.wireWildcards())
	binary.BigEndian.PutUint16(b[4:6], m.InPort)
	copy(b[6:12], padMAC(m.DLSrc))
	copy(b[12:18], padMAC(m.DLDst))
	binary.BigEndian.PutUint16(b[18:20], m.DLVLAN)
	b[20] = m.DLVLANPCP
	// b[21] pad
	binary.BigEndian.PutUint16(b[22:24], m.DLType)
	b[24] = m.NWTos
	b[25] = m.NWProto
	// b[26:28] pad
	copy(b[28:32], padIPv4(m.NWSrc))
	copy(b[32:36], padIPv4(m.NWDst))
	binary.BigEndian.PutUint16(b[36:38], m.TPSrc)
	binary.BigEndian.PutUint16(b[38:40], m.TPDst)
	return b
}

// wireWildcards folds the NWSrc/NWDst prefix-length fields into the
// wildcards bitmap the way ofp_flow_wildcards packs them: the number of
// "don't care" bits (32 - significant bits), shifted into place.
func (m Match) wireWildcards() uint32 {
	w := m.Wildcards &^ (wildcardNWSrcMask | wildcardNWDstMask)
	srcDontCare := uint32(32 - m.NWSrcBits)
	if srcDontCare > 32 {
		srcDontCare = 32
	}
	dstDontCare := uint32(32 - m.NWDstBits)
	if dstDontCare > 32 {
		dstDontCare = 32
	}
	w |= (srcDontCare << wildcardNWSrcShift) & wildcardNWSrcMask
	w |= (dstDontCare << wildcardNWDstShift) & wildcardNWDstMask
	return w
}

// unmarshalMatch decodes a 40-byte ofp_match.
func unmarshalMatch(b []byte) (Match, error) {
	if len(b) < matchLen {
		return Match{}, fmt.Errorf("openflow: short match: %d bytes", len(b))
	}
	wc := binary.BigEndian.Uint32(b[0:4])
	m := Match{
		Wildcards: wc &^ (wildcardNWSrcMask | wildcardNWDstMask),
		InPort:    binary.BigEndian.Uint16(b[4:6]),
		DLSrc:     net.HardwareAddr(append([]byte(nil), b[6:12]...)),
		DLDst:     net.HardwareAddr(append([]byte(nil), b[12:18]...)),
		DLVLAN:    binary.BigEndian.Uint16(b[18:20]),
		DLVLANPCP: b[20],
		DLType:    binary.BigEndian.Uint16(b[22:24]),
		NWTos:     b[24],
		NWProto:   b[25],
		NWSrc:     net.IP(append([]byte(nil), b[28:32]...)),
		NWDst:     net.IP(append([]byte(nil), b[32:36]...)),
		TPSrc:     binary.BigEndian.Uint16(b[36:38]),
		TPDst:     binary.BigEndian.Uint16(b[38:40]),
	}
	srcDontCare := (wc & wildcardNWSrcMask) >> wildcardNWSrcShift
	if srcDontCare > 32 {
		srcDontCare = 32
	}
	m.NWSrcBits = uint8(32 - srcDontCare)
	dstDontCare := (wc & wildcardNWDstMask) >> wildcardNWDstShift
	if dstDontCare > 32 {
		dstDontCare = 32
	}
	m.NWDstBits = uint8(32 - dstDontCare)
	return m, nil
}

func padMAC(mac net.HardwareAddr) []byte {
	b := make([]byte, 6)
	if mac != nil {
		copy(b, mac)
	}
	return b
}

func padIPv4(ip net.IP) []byte {
	b := make([]byte, 4)
	if v4 := ip.To4(); v4 != nil {
		copy(b, v4)
	}
	return b
}
