package openflow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ups100/psik-ctrl/internal/logging"
)

// ErrClosed is returned by the Send* methods once the connection has
// been closed.
var ErrClosed = errors.New("openflow: connection closed")

// A Conn is a single OpenFlow session with one switch. It owns the
// underlying net.Conn, serializes writes behind a mutex (so a handler
// that emits several reactions for one PacketIn always lands them on
// the wire in submission order, per spec §5), and answers echo
// requests transparently so the switch never times out the session
// while waiting on application-level traffic.
//
// The shape mirrors ovsdb/internal/jsonrpc.Conn: one connection object,
// a logger hook, and a blocking read loop (ServeMessages) the caller
// drives from its own goroutine.
type Conn struct {
	nc net.Conn
	ll *logging.Logger

	writeMu sync.Mutex

	xid    uint32
	closed int32
}

// NewConn wraps nc. ll may be nil, in which case the connection logs to
// stderr through logging.Default("openflow").
func NewConn(nc net.Conn, ll *logging.Logger) *Conn {
	if ll == nil {
		ll = logging.Default("openflow")
	}
	return &Conn{nc: nc, ll: ll}
}

// NextXid returns a fresh transaction id for an outgoing request.
func (c *Conn) NextXid() uint32 {
	return atomic.AddUint32(&c.xid, 1)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return c.nc.Close()
}

// RemoteAddr returns the address of the connected switch.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// send writes a fully-encoded message to the wire.
func (c *Conn) send(raw []byte) error {
	if atomic.LoadInt32(&c.closed) != 0 {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.nc.Write(raw)
	return err
}

// SendHello sends the initial Hello handshake message.
func (c *Conn) SendHello() error { return c.send(EncodeHello(c.NextXid())) }

// SendFeaturesRequest requests ofp_switch_features from the switch.
func (c *Conn) SendFeaturesRequest() error { return c.send(EncodeFeaturesRequest(c.NextXid())) }

// SendPacketOut sends a packet-out message.
func (c *Conn) SendPacketOut(m PacketOut) error {
	return c.send(EncodePacketOut(c.NextXid(), m))
}

// SendFlowMod sends a flow-mod message.
func (c *Conn) SendFlowMod(m FlowMod) error {
	return c.send(EncodeFlowMod(c.NextXid(), m))
}

// sendEchoReply answers a switch-initiated echo request.
func (c *Conn) sendEchoReply(xid uint32, data []byte) error {
	return c.send(EncodeEchoReply(xid, data))
}

// ReadEnvelope blocks until the next message is read from the
// connection and decoded, or an error (including io.EOF on a clean
// close) occurs.
func (c *Conn) ReadEnvelope() (Envelope, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(c.nc, hdr[:]); err != nil {
		return Envelope{}, err
	}

	length := binary.BigEndian.Uint16(hdr[2:4])
	if length < headerLen {
		return Envelope{}, fmt.Errorf("openflow: invalid message length %d", length)
	}

	body := make([]byte, length-headerLen)
	if len(body) > 0 {
		if _, err := io.ReadFull(c.nc, body); err != nil {
			return Envelope{}, err
		}
	}

	t := Type(hdr[1])
	xid := binary.BigEndian.Uint32(hdr[4:8])

	payload, err := decodeBody(t, body)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Xid: xid, Body: payload}, nil
}

// Handshake performs the OpenFlow 1.0 Hello/FeaturesRequest exchange
// and returns the switch's datapath id once FeaturesReply arrives.
// Echo requests and an unsolicited Hello received before the features
// reply are handled transparently.
func (c *Conn) Handshake() (DPID, error) {
	if err := c.SendHello(); err != nil {
		return 0, fmt.Errorf("openflow: sending hello: %w", err)
	}

	for {
		env, err := c.ReadEnvelope()
		if err != nil {
			return 0, fmt.Errorf("openflow: handshake: %w", err)
		}

		switch body := env.Body.(type) {
		case Hello:
			if err := c.SendFeaturesRequest(); err != nil {
				return 0, fmt.Errorf("openflow: sending features request: %w", err)
			}
		case EchoRequest:
			if err := c.sendEchoReply(env.Xid, body.Data); err != nil {
				return 0, err
			}
		case FeaturesReply:
			return DPID(body.DatapathID), nil
		default:
			c.ll.Warnf("unexpected message %s during handshake, ignoring", env.Type)
		}
	}
}

// ServeMessages reads messages until the connection closes or errors,
// answering echo requests itself and forwarding every other message to
// handle. It returns nil on a clean close (io.EOF) and any other error
// otherwise, the way a single-reader-goroutine loop typically reports
// its own termination cause.
func (c *Conn) ServeMessages(handle func(Envelope)) error {
	for {
		env, err := c.ReadEnvelope()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if req, ok := env.Body.(EchoRequest); ok {
			if err := c.sendEchoReply(env.Xid, req.Data); err != nil {
				return err
			}
			continue
		}

		handle(env)
	}
}
