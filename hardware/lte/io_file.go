package lte

import (
	"bytes"
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"

	"github.com/temoto/cellup/helpers"
)

const (
	cBOTHER   = 0x1000
	cFIONREAD = 0x541b
	cNCCS     = 19
	cTCSETSF2 = 0x402c542d
)

type ErrTimeoutT string

type Timeouter interface {
	Timeout() bool
}

func (e ErrTimeoutT) Error() string { return string(e) }
func (ErrTimeoutT) Timeout() bool   { return true }

func IsTimeout(e error) bool {
	t, ok := errors.Cause(e).(Timeouter)
	return ok && t.Timeout()
}

type cc_t byte
type speed_t uint32
type tcflag_t uint32
type termios2 struct {
	c_iflag  tcflag_t    // input mode flags
	c_oflag  tcflag_t    // output mode flags
	c_cflag  tcflag_t    // control mode flags
	c_lflag  tcflag_t    // local mode flags
	c_line   cc_t        // line discipline
	c_cc     [cNCCS]cc_t // control characters
	c_ispeed speed_t     // input speed
	c_ospeed speed_t     // output speed
}

type fdReader struct {
	fd      uintptr
	timeout time.Duration
}

func (self fdReader) Read(p []byte) (n int, err error) {
	err = io_wait_read(self.fd, 1, self.timeout)
	if err != nil {
		return 0, err
	}
	return syscall.Read(int(self.fd), p)
}

func ioctl(fd uintptr, op, arg uintptr) (err error) {
	r, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, op, arg)
	if errno != 0 {
		err = os.NewSyscallError("SYS_IOCTL", errno)
	} else if r != 0 {
		err = errors.New("unknown error from SYS_IOCTL")
	}
	return err
}

func io_wait_read(fd uintptr, min int, wait time.Duration) error {
	var out int
	tfinal := time.Now().Add(wait)
	for {
		if err := ioctl(fd, uintptr(cFIONREAD), uintptr(unsafe.Pointer(&out))); err != nil {
			return err
		}
		if out >= min {
			return nil
		}
		time.Sleep(wait / 16)
		if time.Now().After(tfinal) {
			return ErrTimeoutT("io_wait_read timeout")
		}
	}
}

// raw 8N1 at arbitrary baud
func io_reset_termios(fd uintptr, t2 *termios2, baud int) error {
	*t2 = termios2{
		c_iflag:  unix.IGNBRK,
		c_cflag:  cBOTHER | syscall.CLOCAL | syscall.CREAD | syscall.CS8,
		c_ispeed: speed_t(baud),
		c_ospeed: speed_t(baud),
	}
	return ioctl(fd, uintptr(cTCSETSF2), uintptr(unsafe.Pointer(t2)))
}

// Serial modem port. Line oriented: URC and command responses arrive as
// CRLF terminated lines, commands leave with CRLF appended.
type filePorter struct {
	f      *os.File
	reader fdReader
	t2     termios2
	buf    [4096]byte
	used   int
}

var _ Porter = &filePorter{}

func NewFilePorter() *filePorter { return &filePorter{} }

func (self *filePorter) Open(path string, baud int) (err error) {
	if self.f != nil {
		self.f.Close()
	}
	self.f, err = os.OpenFile(path, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return errors.Annotatef(err, "open device=%s", path)
	}
	self.reader = fdReader{fd: self.f.Fd(), timeout: 500 * time.Millisecond}
	self.used = 0
	if err = io_reset_termios(self.f.Fd(), &self.t2, baud); err != nil {
		self.f.Close()
		self.f = nil
		return errors.Annotatef(err, "termios device=%s baud=%d", path, baud)
	}
	return nil
}

func (self *filePorter) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(self.buf[:self.used], '\n'); i >= 0 {
			line := string(bytes.TrimRight(self.buf[:i], "\r"))
			copy(self.buf[:], self.buf[i+1:self.used])
			self.used -= i + 1
			return line, nil
		}
		if self.used == len(self.buf) {
			self.used = 0
			return "", errors.Errorf("modem line overflow limit=%d", len(self.buf))
		}
		n, err := self.reader.Read(self.buf[self.used:])
		self.used += n
		if err != nil {
			return "", err
		}
	}
}

func (self *filePorter) WriteLine(line string) error {
	return helpers.WriteAll(self.f, append([]byte(line), '\r', '\n'))
}

func (self *filePorter) Close() error {
	if self.f == nil {
		return nil
	}
	err := self.f.Close()
	self.f = nil
	return err
}
