package uplink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cellup/log2"
	uplink_config "github.com/temoto/cellup/uplink/config"
)

type testServer struct {
	ln       net.Listener
	accepted chan net.Conn
	received chan []byte
}

func newTestServer(t testing.TB) *testServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ts := &testServer{
		ln:       ln,
		accepted: make(chan net.Conn, 1),
		received: make(chan []byte, 16),
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ts.accepted <- conn
		for {
			buf := make([]byte, 64)
			n, err := conn.Read(buf)
			if n > 0 {
				ts.received <- buf[:n]
			}
			if err != nil {
				return
			}
		}
	}()
	return ts
}

func (ts *testServer) port() int { return ts.ln.Addr().(*net.TCPAddr).Port }

func (ts *testServer) recv(t testing.TB) []byte {
	select {
	case b := <-ts.received:
		return b
	case <-time.After(testTimeout):
		t.Fatal("no payload received")
		return nil
	}
}

func TestUplinkEndToEnd(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	defer ts.ln.Close()

	u := new(Uplink)
	conf := uplink_config.Config{
		ServerAddress:     "127.0.0.1",
		ServerPort:        ts.port(),
		UploadIntervalSec: 1,
		UploadSizeBytes:   10,
	}
	require.NoError(t, u.Init(context.Background(), log2.NewTest(t, log2.LDebug), conf))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- u.Run(ctx) }()

	b1 := ts.recv(t)
	t1 := time.Now()
	assert.Equal(t, make([]byte, 10), b1)
	b2 := ts.recv(t)
	assert.Equal(t, make([]byte, 10), b2)
	if d := time.Since(t1); d < 900*time.Millisecond {
		t.Errorf("sends too close d=%v", d)
	}

	cancel()
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("run did not return")
	}
	u.Stop()
	assert.True(t, u.Stat.Send.Count.Value() >= 2, "stat=%s", u.Stat.String())
	assert.EqualValues(t, 1, u.Stat.Conn.Value())
	assert.False(t, u.Stat.LastSend.IsZero())
}

func TestUplinkHaltsOnSendError(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	defer ts.ln.Close()

	u := new(Uplink)
	conf := uplink_config.Config{
		ServerAddress:     "127.0.0.1",
		ServerPort:        ts.port(),
		UploadIntervalSec: 1,
		UploadSizeBytes:   10,
	}
	require.NoError(t, u.Init(context.Background(), log2.NewTest(t, log2.LDebug), conf))

	runDone := make(chan error, 1)
	go func() { runDone <- u.Run(context.Background()) }()

	ts.recv(t) // first send delivered
	srv := <-ts.accepted
	require.NoError(t, srv.(*net.TCPConn).SetLinger(0))
	require.NoError(t, srv.Close())

	// schedule dies on the first failing send, Run returns its error
	var err error
	select {
	case err = <-runDone:
	case <-time.After(testTimeout):
		t.Fatal("run did not return after send failure")
	}
	require.Error(t, err)
	assert.Equal(t, ConnClosed, u.Conn().State())
	// the firing callback finishes its idle transition just after Run
	// observes the failure
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) && u.Sched().State() != SchedIdle {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, SchedIdle, u.Sched().State())

	// no re-fire ever after the failure
	count0 := u.Stat.Send.Count.Value() + u.Stat.Fail.Value()
	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, count0, u.Stat.Send.Count.Value()+u.Stat.Fail.Value())
	u.Stop()
}

func TestUplinkConnectErrorNoSchedule(t *testing.T) {
	t.Parallel()

	ep := refusedEndpoint(t)
	u := new(Uplink)
	conf := uplink_config.Config{
		ServerAddress:     ep.Address,
		ServerPort:        ep.Port,
		UploadIntervalSec: 1,
		UploadSizeBytes:   10,
	}
	require.NoError(t, u.Init(context.Background(), log2.NewTest(t, log2.LDebug), conf))

	err := u.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, SchedIdle, u.Sched().State())
	assert.EqualValues(t, 0, u.Stat.Send.Count.Value())
	u.Stop()
}

func TestUplinkInitInvalid(t *testing.T) {
	t.Parallel()

	u := new(Uplink)
	err := u.Init(context.Background(), log2.NewTest(t, log2.LDebug), uplink_config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_address")
	assert.Contains(t, err.Error(), "server_port")
	assert.Contains(t, err.Error(), "upload_size_bytes")
	assert.Contains(t, err.Error(), "upload_interval_sec")
}
