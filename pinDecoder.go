package cosim_jtag

// The command set of the debugger's remote bitbang protocol. One ASCII
// byte per command, no framing; see
// https://github.com/openocd-org/openocd/blob/master/doc/manual/jtag/drivers/remote_bitbang.txt
const (
	cmdIgnore pinCommandType = iota // blink indicator, cosmetic
	cmdRead                         // sample tdo and answer '0'/'1'
	cmdQuit                         // close the active connection
	cmdWritePins                    // drive tck, tms, tdi
	cmdWriteReset                   // drive trst, srst
	cmdUnknown                      // anything else; a defined no-op
)

type (
	pinCommandType int

	// pinCommand is the decoded effect of one received byte. It exists
	// only for the duration of that byte's processing.
	pinCommand struct {
		cmd  pinCommandType
		tck  Logic
		tms  Logic
		tdi  Logic
		trst Logic
		srst Logic
	}
)

// decodePinByte maps one received command byte to its effect. The
// mapping is total: every possible byte decodes to a defined command,
// with bytes outside the protocol decoding to cmdUnknown.
func decodePinByte(b byte) pinCommand {
	switch {
	case b == 'B' || b == 'b':
		return pinCommand{cmd: cmdIgnore}

	case b == 'R':
		return pinCommand{cmd: cmdRead}

	case b == 'Q':
		return pinCommand{cmd: cmdQuit}

	case b >= '0' && b <= '7':
		v := b - '0'
		return pinCommand{
			cmd: cmdWritePins,
			tck: logicFromBit(v & 0b100),
			tms: logicFromBit(v & 0b010),
			tdi: logicFromBit(v & 0b001),
		}

	case b >= 'r' && b <= 'u':
		v := b - 'r'
		return pinCommand{
			cmd:  cmdWriteReset,
			trst: logicFromBit(v & 0b10),
			srst: logicFromBit(v & 0b01),
		}

	default:
		return pinCommand{cmd: cmdUnknown}
	}
}

// apply mutates ps according to the decoded command, and produces the
// one-byte answer for a read request. A pin write touches only its own
// pin group; quit and the no-op commands change nothing.
func (pc *pinCommand) apply(ps *pinState, tdo Logic) (response byte, hasResponse bool) {
	switch pc.cmd {
	case cmdRead:
		if tdo.IsHigh() {
			return '1', true
		}
		return '0', true

	case cmdWritePins:
		ps.tck = pc.tck
		ps.tms = pc.tms
		ps.tdi = pc.tdi

	case cmdWriteReset:
		ps.trst = pc.trst
		ps.srst = pc.srst
	}

	return 0, false
}
