// Package uplink pushes a fixed zero-filled payload to one TCP server
// on a re-arming timer. There is no reconnect and no retry: the first
// failed send halts transmission until the service is restarted.
package uplink

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cellup/helpers"
	"github.com/temoto/cellup/log2"
	uplink_config "github.com/temoto/cellup/uplink/config"
)

type Uplink struct { //nolint:maligned
	Log  *log2.Log
	Stat SessionStat

	conn    Conn
	sched   *Sched
	payload []byte
	dead    chan error
}

// Init validates config and allocates the payload. No I/O.
func (self *Uplink) Init(ctx context.Context, log *log2.Log, conf uplink_config.Config) error {
	errs := make([]error, 0, 4)
	if conf.ServerAddress == "" {
		errs = append(errs, errors.NotValidf("uplink server_address empty"))
	}
	if conf.ServerPort <= 0 || conf.ServerPort > 65535 {
		errs = append(errs, errors.NotValidf("uplink server_port=%d", conf.ServerPort))
	}
	if conf.UploadSizeBytes <= 0 {
		errs = append(errs, errors.NotValidf("uplink upload_size_bytes=%d", conf.UploadSizeBytes))
	}
	if conf.UploadIntervalSec <= 0 {
		errs = append(errs, errors.NotValidf("uplink upload_interval_sec=%d", conf.UploadIntervalSec))
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return err
	}

	self.Log = log
	self.payload = make([]byte, conf.UploadSizeBytes)
	self.dead = make(chan error, 1)
	self.conn.Init(log, Endpoint{Address: conf.ServerAddress, Port: conf.ServerPort})
	interval := time.Duration(conf.UploadIntervalSec) * time.Second
	sched, err := NewSched(log, interval, self.transmit)
	if err != nil {
		return errors.Trace(err)
	}
	self.sched = sched
	return nil
}

func (self *Uplink) Conn() *Conn   { return &self.conn }
func (self *Uplink) Sched() *Sched { return self.sched }

// Run connects and starts the transmission schedule, then blocks until
// the schedule dies on a failed send or ctx is cancelled. Connect and
// send failures end transmission for good, that is the contract.
func (self *Uplink) Run(ctx context.Context) error {
	if err := self.conn.Connect(ctx); err != nil {
		self.Log.Errorf("uplink connect errno=%d: %s", Errno(err), err)
		return errors.Trace(err)
	}
	self.Stat.Conn.Add(1)
	self.Log.Infof("uplink: connected %s payload=%d interval=%v",
		self.conn.Endpoint(), len(self.payload), self.sched.interval)
	if err := self.sched.Submit(0); err != nil {
		return errors.Trace(err)
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-self.dead:
		return errors.Trace(err)
	}
}

// Stop halts the schedule and closes the connection.
func (self *Uplink) Stop() {
	if self.sched != nil {
		self.sched.Stop()
	}
	_ = self.conn.Disconnect()
	self.Log.Debugf("uplink stopped stat=%s", self.Stat.String())
}

func (self *Uplink) transmit() error {
	err := self.conn.Send(self.payload)
	self.Stat.Register(len(self.payload), err)
	if err != nil {
		self.Log.Errorf("uplink send errno=%d: %s", Errno(err), err)
		self.dead <- err
		return err
	}
	self.Log.Debugf("uplink sent %d bytes", len(self.payload))
	return nil
}
