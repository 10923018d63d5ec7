// Package lte drives a cellular modem over an AT command link:
// network registration notifications, power saving requests and not much else.
// Data traffic does not go through here, only control.
package lte

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cellup/helpers"
	lte_config "github.com/temoto/cellup/hardware/lte/config"
	"github.com/temoto/cellup/log2"
)

const (
	DefaultBaud       = 115200
	DefaultCmdTimeout = 10 * time.Second
	DefaultPSMTau     = 3600 // seconds, T3412 requested periodic TAU
	DefaultPSMActive  = 60   // seconds, T3324 requested active time
	DefaultEDRXValue  = "1001"
)

const (
	cmdProbe        = "AT"
	cmdRegSubscribe = "AT+CEREG=5"
	cmdConSubscribe = "AT+CSCON=1"
)

// Porter moves AT lines to/from the modem. Implementations: serial
// device and channel based mock for tests.
type Porter interface {
	Open(path string, baud int) error
	// ReadLine blocks until a full line or error. Poll timeouts
	// implement Timeouter, callers are expected to retry those.
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// SubscribeError means the modem notification stream could not be
// established. Without it registration can never be observed, so
// callers must treat this as fatal.
type SubscribeError struct {
	Err error
}

func (e *SubscribeError) Error() string { return "lte subscribe: " + e.Err.Error() }

type Link struct { //nolint:maligned
	Log     *log2.Log
	alive   *alive.Alive
	config  lte_config.Config
	porter  Porter
	handler EventFunc

	cmdLk  sync.Mutex // serializes AT commands
	pendLk sync.Mutex
	pend   chan error
}

func NewLink(porter Porter, conf lte_config.Config, log *log2.Log) *Link {
	if conf.Baud == 0 {
		conf.Baud = DefaultBaud
	}
	if conf.EdrxAct == 0 {
		conf.EdrxAct = ActLTEM
	}
	if conf.EdrxValue == "" {
		conf.EdrxValue = DefaultEDRXValue
	}
	if conf.PsmTauSec == 0 {
		conf.PsmTauSec = DefaultPSMTau
	}
	if conf.PsmActiveSec == 0 {
		conf.PsmActiveSec = DefaultPSMActive
	}
	return &Link{
		Log:    log,
		alive:  alive.NewAlive(),
		config: conf,
		porter: porter,
	}
}

// Start opens the port, subscribes to registration and RRC mode
// notifications and runs the read loop. handler receives every decoded
// modem event from the reader goroutine. Call once.
func (self *Link) Start(ctx context.Context, handler EventFunc) error {
	if handler == nil {
		panic("code error lte.Start handler=nil")
	}
	self.handler = handler

	if self.config.PowerChip != "" {
		if err := self.powerPulse(); err != nil {
			return &SubscribeError{Err: errors.Annotate(err, "power key")}
		}
	}
	if err := self.porter.Open(self.config.Device, self.config.Baud); err != nil {
		return &SubscribeError{Err: errors.Trace(err)}
	}
	if !self.alive.Add(1) {
		return &SubscribeError{Err: errors.Errorf("already stopped")}
	}
	go self.readLoop()

	for _, cmd := range []string{cmdProbe, cmdRegSubscribe, cmdConSubscribe} {
		if err := self.Command(ctx, cmd); err != nil {
			self.Stop()
			return &SubscribeError{Err: errors.Trace(err)}
		}
	}
	self.Log.Debugf("lte: subscribed device=%s baud=%d", self.config.Device, self.config.Baud)
	return nil
}

// Stop terminates the read loop and closes the port. Idempotent.
func (self *Link) Stop() {
	self.alive.Stop()
	self.porter.Close()
	self.alive.Wait()
}

// Command sends one AT command and waits for the final result line.
// nil on OK, error on ERROR / +CME ERROR / timeout.
func (self *Link) Command(ctx context.Context, cmd string) error {
	self.cmdLk.Lock()
	defer self.cmdLk.Unlock()

	ch := make(chan error, 1)
	helpers.WithLock(&self.pendLk, func() { self.pend = ch })
	defer helpers.WithLock(&self.pendLk, func() {
		if self.pend == ch {
			self.pend = nil
		}
	})

	self.Log.Debugf("lte: command %s", cmd)
	if err := self.porter.WriteLine(cmd); err != nil {
		return errors.Annotatef(err, "lte command=%s", cmd)
	}

	timeout := helpers.IntSecondDefault(self.config.CommandTimeoutSec, DefaultCmdTimeout)
	select {
	case err := <-ch:
		return errors.Annotatef(err, "lte command=%s", cmd)
	case <-time.After(timeout):
		return errors.Timeoutf("lte command=%s", cmd)
	case <-ctx.Done():
		return errors.Annotatef(ctx.Err(), "lte command=%s", cmd)
	case <-self.alive.StopChan():
		return errors.Errorf("lte stopped command=%s", cmd)
	}
}

func (self *Link) readLoop() {
	defer self.alive.Done()
	for self.alive.IsRunning() {
		line, err := self.porter.ReadLine()
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			if self.alive.IsRunning() {
				self.Log.Errorf("lte read: %s", err)
				self.alive.Stop()
			}
			return
		}
		self.handleLine(strings.TrimSpace(line))
	}
}

func (self *Link) handleLine(line string) {
	switch {
	case line == "":
	case line == "OK":
		self.deliver(nil)
	case line == "ERROR":
		self.deliver(errors.Errorf("modem ERROR"))
	case strings.HasPrefix(line, "+CME ERROR:"):
		self.deliver(errors.Errorf("modem %s", line))
	case strings.HasPrefix(line, "+"):
		events, err := ParseURC(line)
		if err != nil {
			self.Log.Errorf("lte urc line=%q err=%s", line, err)
			return
		}
		if len(events) == 0 {
			self.Log.Debugf("lte: drop urc=%q", line)
			return
		}
		for _, e := range events {
			self.handler(e)
		}
	default:
		// command echo, boot banners
		self.Log.Debugf("lte: drop line=%q", line)
	}
}

func (self *Link) deliver(result error) {
	var ch chan error
	helpers.WithLock(&self.pendLk, func() {
		ch, self.pend = self.pend, nil
	})
	if ch == nil {
		self.Log.Debugf("lte: stray result err=%v", result)
		return
	}
	ch <- result
}

// RequestPSM asks the network for power saving mode with configured
// TAU / active time, or drops a previous request.
func (self *Link) RequestPSM(ctx context.Context, enable bool) error {
	if !enable {
		return self.Command(ctx, "AT+CPSMS=")
	}
	tau := encodeGPRSTimer3(self.config.PsmTauSec)
	active := encodeGPRSTimer2(self.config.PsmActiveSec)
	return self.Command(ctx, fmt.Sprintf(`AT+CPSMS=1,,,"%s","%s"`, tau, active))
}

// RequestEDRX asks for eDRX with the configured cycle value, or drops
// the request and any stored one.
func (self *Link) RequestEDRX(ctx context.Context, enable bool) error {
	if !enable {
		return self.Command(ctx, "AT+CEDRXS=3")
	}
	return self.Command(ctx, fmt.Sprintf(`AT+CEDRXS=2,%d,"%s"`, self.config.EdrxAct, self.config.EdrxValue))
}

// RequestRAI enables release assistance indication. Enable only.
func (self *Link) RequestRAI(ctx context.Context) error {
	return self.Command(ctx, "AT%RAI=1")
}

// ConfigureLowPower issues every power saving request from config.
// These are best effort: each failure is logged and skipped, network
// may reject or ignore them anyway.
func (self *Link) ConfigureLowPower(ctx context.Context) {
	if err := self.RequestPSM(ctx, self.config.PsmEnable); err != nil {
		self.Log.Errorf("lte psm enable=%t: %s", self.config.PsmEnable, err)
	}
	if err := self.RequestEDRX(ctx, self.config.EdrxEnable); err != nil {
		self.Log.Errorf("lte edrx enable=%t: %s", self.config.EdrxEnable, err)
	}
	if self.config.RaiEnable {
		if err := self.RequestRAI(ctx); err != nil {
			self.Log.Errorf("lte rai: %s", err)
		}
	}
}
