package cosim_jtag

type (
	// pinState is the persistent value of the five driven pins. The
	// sampled tdo is supplied fresh by the simulation on every tick and
	// keeps no state here. Values survive debugger disconnects; only a
	// write command changes them.
	pinState struct {
		tck  Logic
		tms  Logic
		tdi  Logic
		trst Logic
		srst Logic
	}

	// DrivenPins is the snapshot returned to the host on every tick.
	// The host binding applies these to the simulated design before the
	// next clock edge.
	DrivenPins struct {
		Tck  Logic
		Tms  Logic
		Tdi  Logic
		Trst Logic
		Srst Logic
	}
)

// newPinState returns the power-on pin values: the JTAG pins undriven,
// the reset lines released at logic low.
func newPinState() pinState {
	return pinState{
		tck:  LogicX,
		tms:  LogicX,
		tdi:  LogicX,
		trst: Logic0,
		srst: Logic0,
	}
}

func (ps *pinState) snapshot() DrivenPins {
	return DrivenPins{
		Tck:  ps.tck,
		Tms:  ps.tms,
		Tdi:  ps.tdi,
		Trst: ps.trst,
		Srst: ps.srst,
	}
}
