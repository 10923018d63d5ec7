package lte

// Public API to easy create modem stubs to test your code.

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	lte_config "github.com/temoto/cellup/hardware/lte/config"
	"github.com/temoto/cellup/log2"
)

const mockTimeout = 5 * time.Second

// MockPorter is a channel based Porter. Reads and writes rendezvous
// with Feed/Take in the test, timeouts panic to break deadlocked tests.
type MockPorter struct {
	t    testing.TB
	rch  chan string
	wch  chan string
	stop chan struct{}
	once sync.Once
}

func NewMockPorter(t testing.TB) *MockPorter {
	return &MockPorter{
		t:    t,
		rch:  make(chan string),
		wch:  make(chan string),
		stop: make(chan struct{}),
	}
}

var _ Porter = &MockPorter{}

func (self *MockPorter) Open(path string, baud int) error { return nil }

func (self *MockPorter) ReadLine() (string, error) {
	select {
	case s := <-self.rch:
		return s, nil
	case <-self.stop:
		return "", io.EOF
	}
}

func (self *MockPorter) WriteLine(line string) error {
	select {
	case self.wch <- line:
		return nil
	case <-self.stop:
		return io.ErrClosedPipe
	case <-time.After(mockTimeout):
		panic("lte mock WriteLine timeout guard. Command without corresponding Take/Expect")
	}
}

func (self *MockPorter) Close() error {
	self.once.Do(func() { close(self.stop) })
	return nil
}

// Feed delivers lines as if the modem sent them.
func (self *MockPorter) Feed(lines ...string) {
	for _, s := range lines {
		select {
		case self.rch <- s:
		case <-self.stop:
			return
		case <-time.After(mockTimeout):
			panic("lte mock Feed timeout guard. nobody reads the port")
		}
	}
}

// Take returns the next line written by the code under test.
func (self *MockPorter) Take() string {
	select {
	case s := <-self.wch:
		return s
	case <-time.After(mockTimeout):
		panic("lte mock Take timeout guard. nobody writes the port")
	}
}

// Expect asserts the next written line and feeds the reply. Safe to
// call from a non-test goroutine.
func (self *MockPorter) Expect(cmd string, reply ...string) {
	line := self.Take()
	if line != cmd {
		self.t.Errorf("lte mock expected=%s actual=%s", cmd, line)
	}
	self.Feed(reply...)
}

// ServeStart replies OK to the Start subscribe sequence. Run it
// concurrently with Link.Start.
func (self *MockPorter) ServeStart() {
	self.Expect(cmdProbe, "OK")
	self.Expect(cmdRegSubscribe, "OK")
	self.Expect(cmdConSubscribe, "OK")
}

// NewTestLink returns a started Link over a MockPorter.
func NewTestLink(t testing.TB, conf lte_config.Config, handler EventFunc) (*Link, *MockPorter) {
	mock := NewMockPorter(t)
	log := log2.NewTest(t, log2.LDebug)
	log.SetFlags(log2.LTestFlags)
	link := NewLink(mock, conf, log)
	go mock.ServeStart()
	if err := link.Start(context.Background(), handler); err != nil {
		t.Fatal(err)
	}
	return link, mock
}
