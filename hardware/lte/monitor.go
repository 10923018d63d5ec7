package lte

import (
	"github.com/juju/errors"
	"github.com/temoto/cellup/helpers/msync"
	"github.com/temoto/cellup/log2"
)

// RegMonitor folds the modem event stream into one fact: registered on
// the network or not yet. Diagnostic events (PSM, eDRX, RRC, cell) are
// logged and do not touch the gate.
type RegMonitor struct {
	Log  *log2.Log
	gate *msync.MultiWait
}

func NewRegMonitor(log *log2.Log) *RegMonitor {
	return &RegMonitor{
		Log:  log,
		gate: msync.NewMultiWait(),
	}
}

// Handle is an EventFunc. First registered-home/roaming status opens
// the gate, repeats are no-op.
func (self *RegMonitor) Handle(e Event) {
	self.Log.Infof("lte: %s", e.String())
	if re, ok := e.(RegEvent); ok && re.Status.Registered() {
		self.gate.Done(nil)
	}
}

// Wait blocks until the first registered status or Cancel. No timeout:
// off the network there is nothing useful to do anyway.
func (self *RegMonitor) Wait() error { return self.gate.WaitDone() }

func (self *RegMonitor) Registered() bool {
	return self.gate.IsDone() && self.gate.WaitDone() == nil
}

// Cancel releases waiters with err. Used on shutdown before
// registration happened.
func (self *RegMonitor) Cancel(err error) {
	if err == nil {
		err = errors.Errorf("lte monitor cancelled")
	}
	self.gate.Done(err)
}
