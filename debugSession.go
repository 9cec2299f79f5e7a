package cosim_jtag

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/jimsnab/go-lane"
	"golang.org/x/sys/unix"
)

// Read poll outcomes. At most one byte is consumed per tick; anything
// further the peer sent stays queued in the kernel for later ticks, so
// the simulated clock rate paces protocol throughput.
const (
	readNoData readResult = iota
	readData
	readDisconnect
	readFailure
)

var (
	ErrSocketSetup = errors.New("cosim_jtag: socket setup failed")
	ErrSessionIO   = errors.New("cosim_jtag: session i/o failed")
)

type (
	readResult int

	// debugSession owns the listening endpoint and the at-most-one
	// active debugger connection. The tick entry point runs on the
	// simulator's own execution context and must never block it, so
	// every socket operation is a non-blocking syscall on the raw
	// descriptor. A net deadline can't serve here: a deadline already
	// in the past fails the operation without attempting the syscall.
	debugSession struct {
		l           lane.Lane
		socketPath  string
		listener    *net.UnixListener
		listenerRaw syscall.RawConn
		cxn         *net.UnixConn
		cxnRaw      syscall.RawConn
		readBuf     [1]byte
		writeBuf    [1]byte
	}
)

func newDebugSession(l lane.Lane, socketPath string) *debugSession {
	return &debugSession{
		l:          l,
		socketPath: socketPath,
	}
}

// ensureListening binds the unix socket on the first call and is a
// no-op afterwards. A stale socket file from a prior run is removed
// before binding. Failure here means the environment is misconfigured;
// the caller treats it as unrecoverable.
func (ds *debugSession) ensureListening() error {
	if ds.listener != nil {
		return nil
	}

	if err := os.Remove(ds.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove stale socket %s: %v", ErrSocketSetup, ds.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", ds.socketPath)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrSocketSetup, ds.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("%w: listen on %s: %v", ErrSocketSetup, ds.socketPath, err)
	}

	raw, err := listener.SyscallConn()
	if err != nil {
		listener.Close()
		return fmt.Errorf("%w: raw access to %s: %v", ErrSocketSetup, ds.socketPath, err)
	}

	ds.listener = listener
	ds.listenerRaw = raw
	ds.l.Infof("created unix socket at %s", ds.socketPath)
	return nil
}

func (ds *debugSession) connected() bool {
	return ds.cxn != nil
}

// acceptPending promotes a waiting peer to the active connection, if
// there is one and no connection is active. A peer arriving while a
// connection is active stays in the listen backlog until the current
// one closes.
func (ds *debugSession) acceptPending() error {
	if ds.listenerRaw == nil || ds.cxn != nil {
		return nil
	}

	nfd := -1
	var acceptErr error
	// Control runs once without waiting for readiness; the listener's
	// RawConn rejects Read/Write with EINVAL.
	opErr := ds.listenerRaw.Control(func(fd uintptr) {
		nfd, _, acceptErr = unix.Accept(int(fd))
	})
	if opErr != nil {
		return fmt.Errorf("%w: accept poll on %s: %v", ErrSessionIO, ds.socketPath, opErr)
	}
	if acceptErr != nil {
		if acceptErr == unix.EAGAIN || acceptErr == unix.EWOULDBLOCK {
			// nobody waiting this tick
			return nil
		}
		return fmt.Errorf("%w: accept on %s: %v", ErrSessionIO, ds.socketPath, acceptErr)
	}

	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return fmt.Errorf("%w: accept on %s: %v", ErrSessionIO, ds.socketPath, err)
	}

	f := os.NewFile(uintptr(nfd), "debugger")
	fileCxn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%w: accept on %s: %v", ErrSessionIO, ds.socketPath, err)
	}

	cxn, valid := fileCxn.(*net.UnixConn)
	if !valid {
		fileCxn.Close()
		return fmt.Errorf("%w: accept on %s: unexpected connection type", ErrSessionIO, ds.socketPath)
	}

	raw, err := cxn.SyscallConn()
	if err != nil {
		cxn.Close()
		return fmt.Errorf("%w: raw access to connection: %v", ErrSessionIO, err)
	}

	ds.cxn = cxn
	ds.cxnRaw = raw
	ds.l.Infof("remote connected on %s", ds.socketPath)
	return nil
}

// readPinByte polls the active connection for at most one command byte.
func (ds *debugSession) readPinByte() (b byte, result readResult) {
	n := 0
	var readErr error
	opErr := ds.cxnRaw.Read(func(fd uintptr) (done bool) {
		n, readErr = unix.Read(int(fd), ds.readBuf[:])
		return true
	})
	if opErr != nil {
		ds.l.Debugf("read poll error on %s: %s", ds.socketPath, opErr.Error())
		return 0, readFailure
	}

	if readErr == nil {
		if n == 1 {
			return ds.readBuf[0], readData
		}
		// a zero-length read means the peer closed its end
		return 0, readDisconnect
	}
	if readErr == unix.EAGAIN || readErr == unix.EWOULDBLOCK || readErr == unix.EINTR {
		return 0, readNoData
	}
	ds.l.Debugf("read error on %s: %s", ds.socketPath, readErr.Error())
	return 0, readFailure
}

// writeResponse answers a read request with exactly one byte. A full
// send buffer means the peer stopped draining mid-scan; that surfaces
// as a session I/O error rather than a stall.
func (ds *debugSession) writeResponse(b byte) error {
	ds.writeBuf[0] = b

	n := 0
	var writeErr error
	opErr := ds.cxnRaw.Write(func(fd uintptr) (done bool) {
		n, writeErr = unix.Write(int(fd), ds.writeBuf[:])
		return true
	})
	if opErr != nil {
		return fmt.Errorf("%w: write response: %v", ErrSessionIO, opErr)
	}
	if writeErr != nil {
		return fmt.Errorf("%w: write response: %v", ErrSessionIO, writeErr)
	}
	if n != 1 {
		return fmt.Errorf("%w: write response: short write", ErrSessionIO)
	}
	return nil
}

// closeCxn discards the active connection, returning the session to
// listening-only. Pin state is untouched; a later peer resumes from the
// values the previous one left behind.
func (ds *debugSession) closeCxn() {
	if ds.cxn == nil {
		return
	}
	ds.cxn.Close()
	ds.cxn = nil
	ds.cxnRaw = nil
	ds.l.Infof("remote disconnected from %s", ds.socketPath)
}

// close tears the session down and removes the socket file so repeated
// runs of the host process don't leak it.
func (ds *debugSession) close() error {
	ds.closeCxn()

	var err error
	if ds.listener != nil {
		err = ds.listener.Close()
		ds.listener = nil
		ds.listenerRaw = nil
		os.Remove(ds.socketPath)
	}
	return err
}
