package uplink

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cellup/log2"
)

type SchedState uint32

const (
	SchedIdle SchedState = iota
	SchedArmed
	SchedFiring
)

func (s SchedState) String() string {
	switch s {
	case SchedIdle:
		return "idle"
	case SchedArmed:
		return "armed"
	case SchedFiring:
		return "firing"
	}
	return "unknown"
}

// Sched drives a callback on a one-shot re-arming timer: success arms
// the next shot one interval later, failure leaves the schedule idle.
// At most one pending shot exists at any time.
type Sched struct { //nolint:maligned
	Log      *log2.Log
	alive    *alive.Alive
	fire     func() error
	interval time.Duration

	lk    sync.Mutex
	state SchedState
	timer *time.Timer
}

func NewSched(log *log2.Log, interval time.Duration, fire func() error) (*Sched, error) {
	if interval <= 0 {
		return nil, errors.NotValidf("sched interval=%v", interval)
	}
	if fire == nil {
		return nil, errors.NotValidf("sched fire=nil")
	}
	return &Sched{
		Log:      log,
		alive:    alive.NewAlive(),
		fire:     fire,
		interval: interval,
	}, nil
}

func (self *Sched) State() SchedState {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.state
}

// Submit arms the first shot after delay, zero fires as soon as the
// timer goroutine runs. Only valid while idle.
func (self *Sched) Submit(delay time.Duration) error {
	if delay < 0 {
		return errors.NotValidf("sched delay=%v", delay)
	}
	self.lk.Lock()
	defer self.lk.Unlock()
	if self.state != SchedIdle {
		return errors.Errorf("sched submit: state=%s expected=idle", self.state)
	}
	return self.armLocked(delay)
}

func (self *Sched) armLocked(d time.Duration) error {
	if !self.alive.Add(1) {
		return errors.Errorf("sched stopped")
	}
	self.state = SchedArmed
	self.timer = time.AfterFunc(d, self.fireNow)
	return nil
}

func (self *Sched) fireNow() {
	defer self.alive.Done()

	self.lk.Lock()
	if self.state != SchedArmed {
		// Stop raced the timer
		self.lk.Unlock()
		return
	}
	self.state = SchedFiring
	self.lk.Unlock()

	err := self.fire()

	self.lk.Lock()
	defer self.lk.Unlock()
	if self.state != SchedFiring {
		// stopped while firing
		return
	}
	if err != nil {
		self.Log.Errorf("sched fire: %s", err)
		self.state = SchedIdle
		return
	}
	if e := self.armLocked(self.interval); e != nil {
		self.state = SchedIdle
	}
}

// Stop cancels the pending shot and waits out a running one. Final:
// Submit after Stop returns an error.
func (self *Sched) Stop() {
	self.lk.Lock()
	if self.timer != nil && self.state == SchedArmed {
		if self.timer.Stop() {
			// timer never fires, balance its task
			self.alive.Done()
		}
	}
	self.state = SchedIdle
	self.lk.Unlock()
	self.alive.Stop()
	self.alive.Wait()
}
