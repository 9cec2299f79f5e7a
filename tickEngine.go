package cosim_jtag

import (
	"fmt"

	"github.com/jimsnab/go-lane"
)

// DefaultSocketPath is where a debugger expects to find the simulated
// test access port. One path per running engine; override it with
// WithSocketPath when hosting more than one instance.
const DefaultSocketPath = "/tmp/cosim_jtag.sock"

const (
	// IOErrorFatal surfaces a mid-session read or write failure from
	// Tick, leaving the abort decision to the host.
	IOErrorFatal IOErrorPolicy = iota

	// IOErrorDisconnect discards the connection on a mid-session read
	// or write failure and resumes listening, the same as a peer quit.
	IOErrorDisconnect
)

type (
	IOErrorPolicy int

	EngineOption func(eng *tickEngine)

	JtagCosimEngine interface {
		// Tick is the per-clock-edge entry point. The host binding calls
		// it exactly once per rising edge of the simulated JTAG clock
		// domain, synchronously on the simulation's own execution
		// context, passing the sampled tdo value; it applies the
		// returned pin values to the design before the next edge.
		//
		// One tick accepts at most one pending debugger connection and
		// processes at most one command byte. Tick never blocks: a
		// silent peer, or no peer at all, is a normal no-data outcome.
		//
		// The wire format is the debugger's remote bitbang protocol:
		// single ASCII command bytes with no framing. Write commands
		// '0'..'7' drive tck/tms/tdi, 'r'..'u' drive trst/srst, 'R'
		// answers with one '0'/'1' byte from the sampled tdo, 'Q'
		// closes the connection. Pin values persist across connections.
		//
		// A failure is returned as an error wrapping ErrSocketSetup or
		// ErrSessionIO and identifies the failing operation. The first
		// such error latches: later ticks return it again alongside the
		// current pin snapshot, so a host that ignores the error still
		// gets defined outputs.
		Tick(tdo Logic) (DrivenPins, error)

		// Dispatch feeds one command byte directly to the decoder,
		// bypassing the socket. The pin mutation and read response are
		// identical to the byte arriving on the wire.
		Dispatch(b byte, tdo Logic) (response byte, hasResponse bool)

		// Pins returns the current driven values without running a tick.
		Pins() DrivenPins

		// SocketPath returns the endpoint the engine listens on.
		SocketPath() string

		// Close shuts down the active connection and the listening
		// endpoint, removes the socket file, and saves the transition
		// history if one is attached.
		Close() error
	}

	tickEngine struct {
		l        lane.Lane
		session  *debugSession
		pins     pinState
		policy   IOErrorPolicy
		history  *PinHistory
		fatalErr error
	}
)

func NewJtagCosimEngine(l lane.Lane, opts ...EngineOption) JtagCosimEngine {
	eng := &tickEngine{
		l:       l,
		session: newDebugSession(l, DefaultSocketPath),
		pins:    newPinState(),
	}

	for _, opt := range opts {
		opt(eng)
	}

	return eng
}

func WithSocketPath(path string) EngineOption {
	return func(eng *tickEngine) {
		eng.session.socketPath = path
	}
}

func WithIOErrorPolicy(policy IOErrorPolicy) EngineOption {
	return func(eng *tickEngine) {
		eng.policy = policy
	}
}

func WithHistory(ph *PinHistory) EngineOption {
	return func(eng *tickEngine) {
		eng.history = ph
	}
}

func (eng *tickEngine) Tick(tdo Logic) (DrivenPins, error) {
	if eng.fatalErr != nil {
		return eng.pins.snapshot(), eng.fatalErr
	}

	if err := eng.session.ensureListening(); err != nil {
		eng.fatalErr = err
		return eng.pins.snapshot(), err
	}

	if !eng.session.connected() {
		if err := eng.session.acceptPending(); err != nil {
			eng.fatalErr = err
			return eng.pins.snapshot(), err
		}
	}

	if eng.session.connected() {
		if err := eng.processPending(tdo); err != nil {
			eng.fatalErr = err
			return eng.pins.snapshot(), err
		}
	}

	// the five outputs are driven every tick, whether or not anything
	// happened on the socket
	return eng.pins.snapshot(), nil
}

// processPending consumes at most one buffered command byte.
func (eng *tickEngine) processPending(tdo Logic) error {
	b, result := eng.session.readPinByte()
	switch result {
	case readNoData:
		return nil
	case readDisconnect:
		eng.session.closeCxn()
		return nil
	case readFailure:
		return eng.sessionFailure(fmt.Errorf("%w: read", ErrSessionIO))
	}

	eng.l.Tracef("received command byte %q", b)

	pc := decodePinByte(b)
	if pc.cmd == cmdQuit {
		eng.session.closeCxn()
		return nil
	}

	response, hasResponse := pc.apply(&eng.pins, tdo)
	eng.recordPins(&pc)

	if hasResponse {
		if err := eng.session.writeResponse(response); err != nil {
			return eng.sessionFailure(err)
		}
	}
	return nil
}

// sessionFailure applies the engine's I/O error policy. The default is
// fatal; the disconnect policy treats the failure like a graceful peer
// quit.
func (eng *tickEngine) sessionFailure(err error) error {
	if eng.policy == IOErrorDisconnect {
		eng.l.Debugf("discarding connection: %s", err.Error())
		eng.session.closeCxn()
		return nil
	}
	return err
}

func (eng *tickEngine) recordPins(pc *pinCommand) {
	if eng.history == nil {
		return
	}
	if pc.cmd == cmdWritePins || pc.cmd == cmdWriteReset {
		eng.history.record(&eng.pins)
	}
}

func (eng *tickEngine) Dispatch(b byte, tdo Logic) (response byte, hasResponse bool) {
	pc := decodePinByte(b)
	if pc.cmd == cmdQuit {
		eng.session.closeCxn()
		return
	}

	response, hasResponse = pc.apply(&eng.pins, tdo)
	eng.recordPins(&pc)
	return
}

func (eng *tickEngine) Pins() DrivenPins {
	return eng.pins.snapshot()
}

func (eng *tickEngine) SocketPath() string {
	return eng.session.socketPath
}

func (eng *tickEngine) Close() error {
	err := eng.session.close()

	if eng.history != nil {
		if saveErr := eng.history.Save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}
