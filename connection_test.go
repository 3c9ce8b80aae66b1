package stompy

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func startEchoishListener(t *testing.T, onAccept func(net.Conn)) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		onAccept(conn)
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestConnection_ConnectAndReceiveMessage(t *testing.T) {
	addr, stop := startEchoishListener(t, func(conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("CONNECTED\nversion:1.1\nsession:abc\n\n\x00"))
		// give the client time to read before closing
		time.Sleep(50 * time.Millisecond)
	})
	defer stop()

	connected := make(chan struct{}, 1)
	messages := make(chan *Frame, 1)
	disconnected := make(chan bool, 1)

	conn, err := Dial("tcp", addr, time.Second, ConnectionEvents{
		OnConnect:    func() { connected <- struct{}{} },
		OnMessage:    func(f *Frame) { messages <- f },
		OnDisconnect: func(hadError bool) { disconnected <- hadError },
	}, newDisabledLogger())
	assert.NoError(t, err)
	assert.NotNil(t, conn)
	conn.Activate()

	select {
	case <-connected:
	case <-time.After(time.Second):
		assert.Fail(t, "expected OnConnect to fire")
	}

	select {
	case f := <-messages:
		assert.Equal(t, "CONNECTED", f.Command)
		assert.Equal(t, "1.1", f.GetHeaderValue("version"))
	case <-time.After(time.Second):
		assert.Fail(t, "expected OnMessage to fire with the CONNECTED frame")
	}

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		assert.Fail(t, "expected OnDisconnect to fire once the server closed the connection")
	}
}

func TestConnection_Send_AssignsIncrementingIDs(t *testing.T) {
	addr, stop := startEchoishListener(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 4096)
		for {
			_, err := conn.Read(buf)
			if err != nil {
				return
			}
		}
	})
	defer stop()

	conn, err := Dial("tcp", addr, time.Second, ConnectionEvents{}, newDisabledLogger())
	assert.NoError(t, err)
	conn.Activate()

	f1 := NewFrame("SEND", 0, 0)
	f2 := NewFrame("SEND", 0, 0)
	id1 := conn.Send(f1)
	id2 := conn.Send(f2)
	assert.Equal(t, int64(0), id1)
	assert.Equal(t, int64(1), id2)
}

func TestConnection_Send_ReturnsSentinelWhenCannotSend(t *testing.T) {
	addr, stop := startEchoishListener(t, func(conn net.Conn) {
		time.Sleep(200 * time.Millisecond)
		conn.Close()
	})
	defer stop()

	conn, err := Dial("tcp", addr, time.Second, ConnectionEvents{}, newDisabledLogger())
	assert.NoError(t, err)
	conn.Activate()

	conn.Disconnect()
	id := conn.Send(NewFrame("SEND", 0, 0))
	assert.Equal(t, int64(-1), id)

	assert.Equal(t, int64(-1), conn.Send(nil))
}
