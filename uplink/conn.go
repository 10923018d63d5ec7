package uplink

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/cellup/helpers"
	"github.com/temoto/cellup/log2"
)

type ConnState uint32

const (
	ConnInvalid ConnState = iota // Init was not called
	ConnInited                   // no socket yet
	ConnOnline
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnInvalid:
		return "invalid"
	case ConnInited:
		return "inited"
	case ConnOnline:
		return "online"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

type Endpoint struct {
	Address string
	Port    int
}

func (e Endpoint) String() string { return net.JoinHostPort(e.Address, strconv.Itoa(e.Port)) }

// SocketCreateError: could not even make a socket, nothing was dialed.
type SocketCreateError struct {
	Err error
}

func (e *SocketCreateError) Error() string { return "socket create: " + e.Err.Error() }

// ConnectError: dial failed, socket is closed.
type ConnectError struct {
	Endpoint Endpoint
	Err      error
}

func (e *ConnectError) Error() string {
	return "connect " + e.Endpoint.String() + ": " + e.Err.Error()
}

// SendError: write failed or connection was not open. Connection is
// closed either way.
type SendError struct {
	Endpoint Endpoint
	Err      error
}

func (e *SendError) Error() string {
	return "send " + e.Endpoint.String() + ": " + e.Err.Error()
}

// Errno digs the OS error number out of nested network errors, 0 if none.
func Errno(err error) syscall.Errno {
	err = errors.Cause(err)
	for {
		switch e := err.(type) {
		case *SocketCreateError:
			err = e.Err
		case *ConnectError:
			err = e.Err
		case *SendError:
			err = e.Err
		case *net.OpError:
			err = e.Err
		case *os.SyscallError:
			err = e.Err
		case syscall.Errno:
			return e
		default:
			return 0
		}
	}
}

func classifyDial(ep Endpoint, err error) error {
	if op, ok := errors.Cause(err).(*net.OpError); ok {
		if sc, ok := op.Err.(*os.SyscallError); ok && sc.Syscall == "socket" {
			return &SocketCreateError{Err: err}
		}
	}
	return &ConnectError{Endpoint: ep, Err: err}
}

// Conn is a single TCP connection to the upload server. There is no
// reconnect in here: every transition is driven by the caller.
type Conn struct { //nolint:maligned
	Log *log2.Log

	lk    sync.Mutex
	state ConnState
	ep    Endpoint
	conn  net.Conn
}

// Init just assigns, cannot fail, no I/O.
func (self *Conn) Init(log *log2.Log, ep Endpoint) {
	self.lk.Lock()
	defer self.lk.Unlock()
	self.Log = log
	self.ep = ep
	self.conn = nil
	self.state = ConnInited
}

func (self *Conn) State() ConnState {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.state
}

func (self *Conn) Endpoint() Endpoint {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.ep
}

// Connect dials the endpoint. On failure the socket is already closed,
// state is ConnClosed and the error tells socket-create from connect
// failure apart. Connect after close is allowed and starts fresh.
func (self *Conn) Connect(ctx context.Context) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	switch self.state {
	case ConnInvalid:
		return errors.Errorf("code error uplink.Conn used before Init")
	case ConnOnline:
		return errors.Errorf("uplink connect: already online to %s", self.ep)
	}
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", self.ep.String())
	if err != nil {
		self.state = ConnClosed
		return classifyDial(self.ep, err)
	}
	self.conn = conn
	self.state = ConnOnline
	self.Log.Debugf("uplink connected %s", self.ep)
	return nil
}

// Send writes the whole buffer. Any failure closes the connection and
// returns SendError, caller decides what happens next.
func (self *Conn) Send(b []byte) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	if self.state != ConnOnline || self.conn == nil {
		return &SendError{Endpoint: self.ep, Err: errors.Errorf("not connected state=%s", self.state)}
	}
	if err := helpers.WriteAll(self.conn, b); err != nil {
		self.closeLocked()
		return &SendError{Endpoint: self.ep, Err: err}
	}
	return nil
}

// Disconnect closes the socket if open. Idempotent.
func (self *Conn) Disconnect() error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.closeLocked()
}

func (self *Conn) closeLocked() error {
	var err error
	if self.conn != nil {
		err = self.conn.Close()
		self.conn = nil
	}
	if self.state != ConnInvalid {
		self.state = ConnClosed
	}
	return errors.Trace(err)
}
