// Package controller ties the bound switch roles together: it
// identifies datapaths as they connect, attaches them to the correct
// role, and drives each connection's read loop, per spec.md §4.7.
package controller

import (
	"math/rand"
	"net"

	"github.com/ups100/psik-ctrl/fabric"
	"github.com/ups100/psik-ctrl/internal/logging"
	"github.com/ups100/psik-ctrl/ofswitch"
	"github.com/ups100/psik-ctrl/openflow"
)

// boundSwitch is the common shape every bound role presents to
// Component's dispatch loop.
type boundSwitch interface {
	OnPacketIn(pin openflow.PacketIn)
	BindConnection(conn *openflow.Conn) error
}

// Config is everything a Component needs to construct its three role
// instances: the DPIDs that identify each datapath, the MSS's anycast
// IP, and the fabric load model.
type Config struct {
	MSSDPID openflow.DPID
	MSSIP   net.IP

	MCSDPID openflow.DPID
	DCDPIDs []openflow.DPID

	Fabric *fabric.Fabric
	Rng    *rand.Rand
}

// Component owns one instance of each logical switch role and routes
// incoming connections and PacketIn events to the right one, per
// spec.md §2 and §4.7. DPID→role resolution never mutates after
// construction, so OnConnectionUp and Serve need no lock of their
// own; each bound role's own state is guarded the way SPEC_FULL §5
// describes.
type Component struct {
	MSS *ofswitch.MainServer
	MCS *ofswitch.Learning
	DCs []*ofswitch.Learning

	mssDPID openflow.DPID
	mcsDPID openflow.DPID
	dcDPIDs []openflow.DPID

	ll *logging.Logger
}

// New constructs the three role instances from cfg. The MSS's
// ARPVisible/Learning chain is built internally since nothing outside
// Component ever needs to address them independently.
func New(cfg Config) *Component {
	mssLearning := ofswitch.NewLearning(ofswitch.Identity{Name: "mss", DPID: cfg.MSSDPID})
	mssARP := ofswitch.NewARPVisible(mssLearning, cfg.MSSIP)
	mss := ofswitch.NewMainServer(mssARP, cfg.Fabric, cfg.Rng)

	mcs := ofswitch.NewLearning(ofswitch.Identity{Name: "mcs", DPID: cfg.MCSDPID})

	dcs := make([]*ofswitch.Learning, len(cfg.DCDPIDs))
	for i, dpid := range cfg.DCDPIDs {
		dcs[i] = ofswitch.NewLearning(ofswitch.Identity{Name: dcName(i), DPID: dpid})
	}

	return &Component{
		MSS:     mss,
		MCS:     mcs,
		DCs:     dcs,
		mssDPID: cfg.MSSDPID,
		mcsDPID: cfg.MCSDPID,
		dcDPIDs: append([]openflow.DPID(nil), cfg.DCDPIDs...),
		ll:      logging.Default("controller"),
	}
}

func dcName(i int) string {
	names := "123456789"
	if i < len(names) {
		return "dc" + string(names[i])
	}
	return "dc?"
}

// OnConnectionUp implements spec.md §4.7: compare dpid against the
// MSS/MCS DPIDs and each DC DPID in order, bind the matching role to
// conn, and log. An unmatched DPID is logged at error level and
// otherwise ignored — the connection is left unbound and its read loop
// (if the caller starts one) will simply have nowhere to dispatch.
func (c *Component) OnConnectionUp(dpid openflow.DPID, conn *openflow.Conn) (boundSwitch, error) {
	switch {
	case dpid == c.mssDPID:
		if err := c.MSS.BindConnection(conn); err != nil {
			return nil, err
		}
		c.ll.Infof("bound mss dpid=%s", dpid)
		return c.MSS, nil

	case dpid == c.mcsDPID:
		if err := c.MCS.BindConnection(conn); err != nil {
			return nil, err
		}
		c.ll.Infof("bound mcs dpid=%s", dpid)
		return c.MCS, nil

	default:
		for i, d := range c.dcDPIDs {
			if d != dpid {
				continue
			}
			if err := c.DCs[i].BindConnection(conn); err != nil {
				return nil, err
			}
			c.ll.Infof("bound %s dpid=%s", c.DCs[i].Identity.Name, dpid)
			return c.DCs[i], nil
		}
	}

	c.ll.Errorf("connection up for unknown dpid=%s, ignoring", dpid)
	return nil, nil
}

// Serve drives conn's read loop until it closes or errors, dispatching
// every PacketIn to sw. It mirrors ovsdb/internal/jsonrpc.Conn's
// single-reader-goroutine model: the caller runs this in its own
// goroutine per accepted connection.
func (c *Component) Serve(conn *openflow.Conn, sw boundSwitch) error {
	return conn.ServeMessages(func(env openflow.Envelope) {
		pin, ok := env.Body.(openflow.PacketIn)
		if !ok {
			return
		}
		sw.OnPacketIn(pin)
	})
}
