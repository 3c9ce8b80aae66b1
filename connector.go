package stompy

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBrokerPort is the default stomp broker port.
const DefaultBrokerPort = 61613

// SessionState is the Connector's session-level state.
type SessionState int

const (
	SocketDisconnected SessionState = iota
	ConnectSent
	ConnectorReady
	DisconnectSent
)

// noDisconnectID is the sentinel disconnectId value before any
// DISCONNECT frame has been sent; it is distinguishable from any real
// message id (which starts at 0).
const noDisconnectID int64 = -1

// ConnectorOpts carries the broker address and credentials a Connector
// dials with.
type ConnectorOpts struct {
	Hostname string
	Port     int
	Broker   string // virtual host sent as the CONNECT "host" header
	Username string
	Password string
	Timeout  time.Duration
}

// ConnectorEvents is the application-visible event surface. A normal
// session fires, in order: OnConnect, OnMessage (for the CONNECTED
// frame), OnSubscribe, OnReady, zero or more further OnMessage, then
// exactly one OnDisconnect.
type ConnectorEvents struct {
	OnConnect    func()
	OnSubscribe  func()
	OnReady      func()
	OnMessage    func(f *Frame)
	OnError      func(err error)
	OnRejected   func()
	OnDisconnect func(graceful bool)
}

// Connector is the session-level state machine layered over a
// Connection. It performs the stomp handshake, tracks session identity
// and negotiated version, forwards frames to the application, and
// builds CONNECT/DISCONNECT/SUBSCRIBE/UNSUBSCRIBE/ACK/NACK/SEND frames.
type Connector struct {
	opts   ConnectorOpts
	events ConnectorEvents
	log    zerolog.Logger

	conn     *Connection
	receipts *receiptTable

	mu           sync.Mutex
	state        SessionState
	sessionID    string
	version      string
	disconnectID int64
}

// NewConnector constructs a Connector with the given dial options and
// event callbacks. opts.Port defaults to DefaultBrokerPort when zero.
func NewConnector(opts ConnectorOpts, events ConnectorEvents, log zerolog.Logger) *Connector {
	if opts.Port == 0 {
		opts.Port = DefaultBrokerPort
	}
	return &Connector{
		opts:         opts,
		events:       events,
		log:          log,
		receipts:     newReceiptTable(),
		state:        SocketDisconnected,
		disconnectID: noDisconnectID,
	}
}

// Connect opens the underlying transport; the CONNECT frame is emitted
// once the transport handshake completes.
func (c *Connector) Connect() error {
	address := fmt.Sprintf("%s:%d", c.opts.Hostname, c.opts.Port)
	conn, err := Dial("tcp", address, c.opts.Timeout, ConnectionEvents{
		OnConnect:    c.onTransportConnect,
		OnMessage:    c.onTransportMessage,
		OnError:      c.onTransportError,
		OnDisconnect: c.onTransportDisconnect,
	}, c.log)
	if err != nil {
		if c.events.OnError != nil {
			c.events.OnError(err)
		}
		return err
	}
	c.conn = conn
	conn.Activate()
	return nil
}

// State returns the current session state.
func (c *Connector) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session id negotiated on CONNECTED, or "" when
// not (yet) connected.
func (c *Connector) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Version returns the stomp version negotiated on CONNECTED, or "".
func (c *Connector) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Connector) onTransportConnect() {
	frame := c.CreateConnect()
	c.conn.Send(frame)
	c.mu.Lock()
	c.state = ConnectSent
	c.mu.Unlock()
	if c.events.OnConnect != nil {
		c.events.OnConnect()
	}
}

func (c *Connector) onTransportMessage(f *Frame) {
	// every inbound frame is forwarded before the connector classifies it
	if c.events.OnMessage != nil {
		c.events.OnMessage(f)
	}

	switch f.Command {
	case "CONNECTED":
		c.mu.Lock()
		c.version = f.GetHeaderValue("version")
		c.sessionID = f.GetHeaderValue("session")
		c.state = ConnectorReady
		c.mu.Unlock()
		if c.events.OnSubscribe != nil {
			c.events.OnSubscribe()
		}
		if c.events.OnReady != nil {
			c.events.OnReady()
		}

	case "ERROR":
		c.log.Warn().Str("message", f.GetHeaderValue("message")).Msg("stompy: connect rejected by broker")
		c.mu.Lock()
		c.state = SocketDisconnected
		c.mu.Unlock()
		if c.events.OnRejected != nil {
			c.events.OnRejected()
		}
		c.conn.Close()

	case "RECEIPT":
		c.receipts.resolve(f.GetHeaderValue("receipt-id"))
	}
}

func (c *Connector) onTransportError(err error) {
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}

func (c *Connector) onTransportDisconnect(hadError bool) {
	c.mu.Lock()
	// graceful retains the source's observed (and oddly named)
	// expression: hadError || disconnectId >= 0. See SPEC open question 1.
	graceful := hadError || c.disconnectID >= 0
	c.state = SocketDisconnected
	c.version = ""
	c.sessionID = ""
	c.mu.Unlock()

	c.log.Debug().Bool("hadError", hadError).Bool("graceful", graceful).Msg("stompy: disconnected")

	if c.events.OnDisconnect != nil {
		c.events.OnDisconnect(graceful)
	}
}

// Disconnect ends the session. When sendFrame is true, a DISCONNECT
// frame (with a receipt header) is sent first and the assigned message
// id is recorded as the session's disconnectId. Either way the
// transport is half-closed; inbound frames may still arrive until the
// transport fully closes.
func (c *Connector) Disconnect(sendFrame bool) error {
	if c.conn == nil {
		return ClientError("disconnect called before connect")
	}
	if sendFrame {
		frame := c.CreateDisconnect()
		id := c.requestReceipt(frame)
		c.conn.Send(frame)
		c.mu.Lock()
		c.disconnectID = id
		c.state = DisconnectSent
		c.mu.Unlock()
	}
	return c.conn.Disconnect()
}

// requestReceipt overrides the receipt header with the connection's
// current messageId (the id the next Send would assign), registers
// that id in the receipt table so a later RECEIPT frame resolves it
// (see onTransportMessage's RECEIPT branch), and returns the id.
func (c *Connector) requestReceipt(frame *Frame) int64 {
	id := c.conn.NextMessageID()
	idStr := strconv.FormatInt(id, 10)
	frame.OverrideHeader("receipt", idStr)

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.receipts.add(idStr, timeout)
	return id
}

// RequestReceipt is requestReceipt exported for callers that want a
// receipt on a frame other than DISCONNECT (e.g. a SEND). It does not
// send frame; call Send afterward, then AwaitReceipt with the returned
// id.
func (c *Connector) RequestReceipt(frame *Frame) int64 {
	return c.requestReceipt(frame)
}

// AwaitReceipt blocks until the RECEIPT frame matching id arrives or
// the registered timeout elapses, returning true if it arrived in
// time. id must come from requestReceipt/RequestReceipt; any other
// value returns false immediately.
func (c *Connector) AwaitReceipt(id int64) bool {
	rec := c.receipts.get(strconv.FormatInt(id, 10))
	if rec == nil {
		return false
	}
	return <-rec.Done
}

// Send writes frame to the underlying connection and returns its
// assigned message id, or -1 if not connected.
func (c *Connector) Send(frame *Frame) int64 {
	if c.conn == nil {
		return sendSentinel
	}
	return c.conn.Send(frame)
}

// CreateConnect builds the CONNECT frame: accept-version, host
// (defaulting to "localhost" when the broker name is empty), and
// login/passcode when credentials are present.
func (c *Connector) CreateConnect() *Frame {
	f := NewFrame("CONNECT", 4, 0)
	f.AppendHeader("accept-version", "1.0,1.1")
	host := c.opts.Broker
	if host == "" {
		host = "localhost"
	}
	f.AppendHeader("host", host)
	if c.opts.Username != "" || c.opts.Password != "" {
		f.AppendHeader("login", c.opts.Username)
		f.AppendHeader("passcode", c.opts.Password)
	}
	return f
}

// CreateDisconnect builds a bare DISCONNECT frame; callers obtain a
// receipt id via Disconnect(true) rather than this factory directly.
func (c *Connector) CreateDisconnect() *Frame {
	return NewFrame("DISCONNECT", 0, 0)
}

// CreateSubscribe builds a SUBSCRIBE frame for id/destination with the
// default ack mode "auto". Callers may override ack with "client" or
// "client-individual" per stomp 1.1; the value is not validated.
func (c *Connector) CreateSubscribe(id, destination string) *Frame {
	f := NewFrame("SUBSCRIBE", 3, 0)
	f.AppendHeader("id", id)
	f.AppendHeader("destination", destination)
	f.AppendHeader("ack", "auto")
	return f
}

// CreateUnsubscribe builds an UNSUBSCRIBE frame for the given
// subscription id and destination.
func (c *Connector) CreateUnsubscribe(id, destination string) *Frame {
	f := NewFrame("UNSUBSCRIBE", 2, 0)
	f.AppendHeader("id", id)
	f.AppendHeader("destination", destination)
	return f
}

// CreateAck builds an ACK frame for an inbound MESSAGE, deriving
// subscription from the message's subscription header (falling back to
// destination) and copying its message-id header.
func (c *Connector) CreateAck(message *Frame) *Frame {
	return c.createAckLike("ACK", message)
}

// CreateNack builds a NACK frame the same way CreateAck builds ACK.
func (c *Connector) CreateNack(message *Frame) *Frame {
	return c.createAckLike("NACK", message)
}

func (c *Connector) createAckLike(command string, message *Frame) *Frame {
	f := NewFrame(command, 2, 0)
	sub := message.GetHeaderValue("subscription")
	if sub == "" {
		sub = message.GetHeaderValue("destination")
	}
	f.AppendHeader("subscription", sub)
	f.AppendHeader("message-id", message.GetHeaderValue("message-id"))
	return f
}

// CreateSend builds a SEND frame targeting destination; callers attach
// content-type/content-length and Body afterward.
func (c *Connector) CreateSend(destination string) *Frame {
	f := NewFrame("SEND", 1, 0)
	f.AppendHeader("destination", destination)
	return f
}
