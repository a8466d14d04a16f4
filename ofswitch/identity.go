// Package ofswitch implements the three logical switch roles —
// LearningSwitch, ARPVisibleSwitch, MainServerSwitch — as a chain of
// structs embedding their predecessor by pointer and falling through to
// it explicitly, the composition-over-inheritance shape spec.md's
// REDESIGN FLAGS ask for (Go has no subclassing to fake).
package ofswitch

import (
	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/openflow"
)

// Identity names one bound datapath: a short log label, its DPID, and
// the live connection once bound. Conn is nil until BindConnection is
// called and is never reassigned afterward, per spec §3's invariant 2.
type Identity struct {
	Name string
	DPID openflow.DPID
	Conn *openflow.Conn
}

// Timeouts carries a flow-mod's idle/hard timeout pair.
type Timeouts struct {
	Idle uint16
	Hard uint16
}

// learningTimeout and dropTimeout are the two fixed timeout pairs
// spec.md §4.2 names: 10s/30s for a newly learned forwarding rule, and
// 10s/10s for a same-port loop-prevention drop.
var (
	learningTimeout = Timeouts{Idle: 10, Hard: 30}
	dropTimeout     = Timeouts{Idle: 10, Hard: 10}
)

const (
	etherTypeIPv4 = 0x0800
	ipProtoUDP    = 17
)

func defaultLogger(name string) *logging.Logger {
	return logging.Default("ofswitch").With(name)
}
