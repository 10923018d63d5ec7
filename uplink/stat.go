package uplink

// Complex values are read and modified atomically, but not consistently,
// i.e. it is possible to read .Count=1 .Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"

	"github.com/temoto/atomic_clock"
)

type SessionStat struct {
	Conn     expvar.Int // successful connects
	Send     CountSizePair
	Fail     expvar.Int // failed sends
	LastSend atomic_clock.Clock
}

func (ss *SessionStat) Add(other *SessionStat) {
	ss.Conn.Add(other.Conn.Value())
	ss.Send.Add(&other.Send)
	ss.Fail.Add(other.Fail.Value())
}

func (ss *SessionStat) Sub(other *SessionStat) {
	ss.Conn.Add(-other.Conn.Value())
	ss.Send.Sub(&other.Send)
	ss.Fail.Add(-other.Fail.Value())
}

func (ss *SessionStat) Value() (r SessionStat) {
	r.Conn.Set(ss.Conn.Value())
	r.Send.Set(ss.Send.Value())
	r.Fail.Set(ss.Fail.Value())
	r.LastSend.Set(int64(ss.LastSend.Sub(atomic_clock.New())))
	return
}

func (ss *SessionStat) String() string {
	return fmt.Sprintf(`{"conn":%d,"send.count":%d,"send.size":%d,"fail":%d}`,
		ss.Conn.Value(), ss.Send.Count.Value(), ss.Send.Size.Value(), ss.Fail.Value())
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) Add(other *CountSizePair) {
	csp.Count.Add(other.Count.Value())
	csp.Size.Add(other.Size.Value())
}

func (csp *CountSizePair) Value() (r CountSizePair) {
	r.Count.Set(csp.Count.Value())
	r.Size.Set(csp.Size.Value())
	return
}

func (csp *CountSizePair) Set(v CountSizePair) {
	csp.Count.Set(v.Count.Value())
	csp.Size.Set(v.Size.Value())
}

func (csp *CountSizePair) Sub(other *CountSizePair) {
	csp.Count.Add(-other.Count.Value())
	csp.Size.Add(-other.Size.Value())
}

// Register accounts one send attempt.
func (ss *SessionStat) Register(size int, err error) {
	if err != nil {
		ss.Fail.Add(1)
		return
	}
	ss.Send.Count.Add(1)
	ss.Send.Size.Add(int64(size))
	ss.LastSend.SetNow()
}
