package cosim_jtag

type (
	// Logic is one state of an HDL nine-valued signal. The simulator
	// binding marshals its native signal representation into these
	// values; the protocol core itself only ever produces Logic0 and
	// Logic1.
	Logic byte
)

const (
	LogicU Logic = iota // uninitialized
	LogicX              // forcing unknown
	Logic0              // forcing 0
	Logic1              // forcing 1
	LogicZ              // high impedance
	LogicW              // weak unknown
	LogicL              // weak 0
	LogicH              // weak 1
	LogicD              // don't care
)

var logicNames = []string{"U", "X", "0", "1", "Z", "W", "L", "H", "-"}

// IsHigh folds the nine states down to the boolean a debugger reads:
// a forcing or weak 1 is high, everything else is low.
func (lv Logic) IsHigh() bool {
	return lv == Logic1 || lv == LogicH
}

// logicFromBit drives a pin from one protocol bit. Pins written through
// the protocol are always forcing; the weak and undriven states only
// occur as power-on defaults or sampled inputs.
func logicFromBit(bit byte) Logic {
	if bit != 0 {
		return Logic1
	}
	return Logic0
}

func (lv Logic) String() string {
	if int(lv) >= len(logicNames) {
		return "?"
	}
	return logicNames[lv]
}
