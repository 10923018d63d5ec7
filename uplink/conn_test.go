package uplink

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cellup/log2"
)

// listen, remember port, close: connecting there gets refused.
func refusedEndpoint(t testing.TB) Endpoint {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return Endpoint{Address: "127.0.0.1", Port: port}
}

func TestConnectRefused(t *testing.T) {
	t.Parallel()

	ep := refusedEndpoint(t)
	conn := new(Conn)
	conn.Init(log2.NewTest(t, log2.LDebug), ep)

	err := conn.Connect(context.Background())
	require.Error(t, err)
	if _, ok := err.(*ConnectError); !ok {
		t.Fatalf("error expected=*ConnectError actual=%T %v", err, err)
	}
	assert.NotEqual(t, syscall.Errno(0), Errno(err))
	assert.Equal(t, ConnClosed, conn.State())

	// connect is allowed again from closed and succeeds once the
	// server is there
	ln, err := net.Listen("tcp", ep.String())
	require.NoError(t, err)
	defer ln.Close()
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, ConnOnline, conn.State())
	require.NoError(t, conn.Disconnect())
	assert.Equal(t, ConnClosed, conn.State())
}

func TestSendNotConnected(t *testing.T) {
	t.Parallel()

	conn := new(Conn)
	conn.Init(log2.NewTest(t, log2.LDebug), Endpoint{Address: "127.0.0.1", Port: 1})

	err := conn.Send([]byte{0, 0, 0})
	require.Error(t, err)
	if _, ok := err.(*SendError); !ok {
		t.Fatalf("error expected=*SendError actual=%T %v", err, err)
	}
}

func TestSendFailureCloses(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, e := ln.Accept()
		if e == nil {
			accepted <- c
		}
	}()

	conn := new(Conn)
	conn.Init(log2.NewTest(t, log2.LDebug),
		Endpoint{Address: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port})
	require.NoError(t, conn.Connect(context.Background()))

	srv := <-accepted
	// RST on close so the next write fails fast
	require.NoError(t, srv.(*net.TCPConn).SetLinger(0))
	require.NoError(t, srv.Close())

	// first write after peer close may still land in the kernel buffer
	payload := make([]byte, 10)
	var sendErr error
	for i := 0; i < 50; i++ {
		if sendErr = conn.Send(payload); sendErr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Error(t, sendErr)
	if _, ok := sendErr.(*SendError); !ok {
		t.Fatalf("error expected=*SendError actual=%T %v", sendErr, sendErr)
	}
	assert.Equal(t, ConnClosed, conn.State())

	// connection is gone, send keeps failing without blocking
	err = conn.Send(payload)
	require.Error(t, err)
	if _, ok := err.(*SendError); !ok {
		t.Fatalf("error expected=*SendError actual=%T %v", err, err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	conn := new(Conn)
	conn.Init(log2.NewTest(t, log2.LDebug), Endpoint{Address: "127.0.0.1", Port: 1})
	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())
	assert.Equal(t, ConnClosed, conn.State())
}

func TestConnectTwice(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	conn := new(Conn)
	conn.Init(log2.NewTest(t, log2.LDebug),
		Endpoint{Address: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port})
	require.NoError(t, conn.Connect(context.Background()))
	err = conn.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already online")
	require.NoError(t, conn.Disconnect())
}