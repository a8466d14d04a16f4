// Package dns builds the one-question, one-answer DNS messages the
// fabric's MainServerSwitch serves in-band, on top of
// github.com/miekg/dns's message codec.
package dns

import (
	"errors"
	"net"

	mdns "github.com/miekg/dns"
)

// ErrNotOneQuestion is returned by Parse when the message does not
// contain exactly one question, per spec §4.4 ("If it contains
// anything other than exactly one question, drop").
var ErrNotOneQuestion = errors.New("dns: message does not contain exactly one question")

// Query is the subset of an inbound DNS message this fabric acts on.
type Query struct {
	ID               uint16
	RecursionDesired bool
	Name             string
	Qtype            uint16
	Qclass           uint16
}

// Parse unmarshals payload as a DNS message and extracts its single
// question. It returns ErrNotOneQuestion for zero or multiple
// questions, and the underlying unpack error for anything else
// malformed.
func Parse(payload []byte) (Query, error) {
	m := new(mdns.Msg)
	if err := m.Unpack(payload); err != nil {
		return Query{}, err
	}
	if len(m.Question) != 1 {
		return Query{}, ErrNotOneQuestion
	}
	q := m.Question[0]
	return Query{
		ID:               m.Id,
		RecursionDesired: m.RecursionDesired,
		Name:             q.Name,
		Qtype:            q.Qtype,
		Qclass:           q.Qclass,
	}, nil
}

// TypeA and TypePTR re-export the qtypes this fabric recognizes, so
// callers never need to import miekg/dns directly.
const (
	TypeA   = mdns.TypeA
	TypePTR = mdns.TypePTR
)

// reply constructs the common envelope every answer shares: ra=1,
// aa=1, the query's id and rd copied, the original question carried
// back, per spec §4.4.
func reply(q Query) *mdns.Msg {
	m := new(mdns.Msg)
	m.Id = q.ID
	m.Response = true
	m.Authoritative = true
	m.RecursionDesired = q.RecursionDesired
	m.RecursionAvailable = true
	m.Question = []mdns.Question{{Name: q.Name, Qtype: q.Qtype, Qclass: q.Qclass}}
	return m
}

// BuildAReply answers q with a single A record resolving to ip, TTL 0,
// per spec §4.4. The wire rdlength is whatever miekg/dns's A-record
// marshaling produces, which is always exactly 4 network-order bytes
// for an IPv4 address — resolving spec §9's "ensure on-the-wire
// serialization yields 4 network-order bytes" concern structurally
// rather than by hand.
func BuildAReply(q Query, ip net.IP) ([]byte, error) {
	m := reply(q)
	m.Answer = []mdns.RR{&mdns.A{
		Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeA, Class: q.Qclass, Ttl: 0},
		A:   ip.To4(),
	}}
	return m.Pack()
}

// BuildPTRReply answers q with a single PTR record whose target is
// name, per spec §4.4's "the fabric contains only this one reverse
// mapping" simplification.
func BuildPTRReply(q Query, name string) ([]byte, error) {
	m := reply(q)
	m.Answer = []mdns.RR{&mdns.PTR{
		Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypePTR, Class: q.Qclass, Ttl: 0},
		Ptr: mdns.Fqdn(name),
	}}
	return m.Pack()
}
