package stompy

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const sendSentinel int64 = -1

// ConnectionEvents is the typed callback surface a Connection fires
// into. OnConnect runs synchronously from Activate, before the read
// loop starts; every other callback runs on the read goroutine. Any
// field left nil is simply not called.
type ConnectionEvents struct {
	OnConnect    func()
	OnMessage    func(f *Frame)
	OnError      func(err error)
	OnDisconnect func(hadError bool)
}

// Connection adapts a byte-oriented duplex transport (a TCP socket) to
// a frame-oriented event stream. It owns one Parser and the outbound
// write path.
type Connection struct {
	conn   net.Conn
	parser *Parser
	events ConnectionEvents
	log    zerolog.Logger

	mu        sync.Mutex
	canSend   bool
	messageID int64

	disconnectOnce sync.Once
}

// Dial opens a TCP connection and returns a Connection wrapping it.
// canSend is still false and no events fire until Activate is called:
// this gives the caller a chance to store the returned Connection
// wherever its own OnConnect callback expects to find it, without a
// race against that callback firing before the assignment happens.
func Dial(network, address string, timeout time.Duration, events ConnectionEvents, log zerolog.Logger) (*Connection, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		log.Debug().Err(err).Str("network", network).Str("address", address).Msg("stompy: dial failed")
		return nil, TransportError{Cause: err}
	}

	return &Connection{
		conn:   conn,
		parser: NewParser(),
		events: events,
		log:    log,
	}, nil
}

// Activate flips the canSend gate on, resets the message id counter to
// zero, fires OnConnect, and starts the inbound read loop. Call this
// once after Dial.
func (c *Connection) Activate() {
	c.mu.Lock()
	c.canSend = true
	c.messageID = 0
	c.mu.Unlock()

	if c.events.OnConnect != nil {
		c.events.OnConnect()
	}
	go c.readLoop()
}

// Send serializes frame to a buffer and writes it to the transport,
// returning the messageId assigned to it. If canSend is false or frame
// is nil, it returns -1 without writing.
func (c *Connection) Send(frame *Frame) int64 {
	if frame == nil {
		return sendSentinel
	}

	c.mu.Lock()
	if !c.canSend {
		c.mu.Unlock()
		return sendSentinel
	}
	id := c.messageID
	c.messageID++
	c.mu.Unlock()

	buf := frame.ToBuffer()
	if _, err := c.conn.Write(buf); err != nil {
		c.log.Debug().Err(err).Str("command", frame.Command).Msg("stompy: write failed")
		return sendSentinel
	}
	return id
}

// NextMessageID returns the id that the next Send call would assign,
// without consuming it. Used by Connector.requestReceipt.
func (c *Connection) NextMessageID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messageID
}

// Disconnect half-closes the outbound side of the transport and stops
// accepting new sends. Inbound data may still arrive until the
// transport fully closes and OnDisconnect fires.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	c.canSend = false
	c.mu.Unlock()

	if tcp, ok := c.conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}
	return nil
}

// Close fully closes the transport immediately, used when a broker
// rejection means there is no point half-closing gracefully.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.canSend = false
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.parser.Feed(buf[:n], func(f *Frame) {
				if c.events.OnMessage != nil {
					c.events.OnMessage(f)
				}
			})
		}
		if err != nil {
			c.finish(err)
			return
		}
	}
}

func (c *Connection) finish(readErr error) {
	c.mu.Lock()
	c.canSend = false
	c.mu.Unlock()

	hadError := !errors.Is(readErr, io.EOF)

	c.disconnectOnce.Do(func() {
		if hadError {
			c.log.Debug().Err(readErr).Msg("stompy: transport read error")
			if c.events.OnError != nil {
				c.events.OnError(TransportError{Cause: readErr})
			}
		}
		c.conn.Close()
		if c.events.OnDisconnect != nil {
			c.events.OnDisconnect(hadError)
		}
	})
}
