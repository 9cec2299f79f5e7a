package cosim_jtag

import (
	"testing"
)

func TestDecodeWritePins(t *testing.T) {
	for b := byte('0'); b <= '7'; b++ {
		ps := pinState{tck: LogicX, tms: LogicX, tdi: LogicX, trst: Logic1, srst: Logic1}

		pc := decodePinByte(b)
		if pc.cmd != cmdWritePins {
			t.Fatalf("byte %q decoded to %d", b, pc.cmd)
		}

		response, hasResponse := pc.apply(&ps, Logic0)
		if hasResponse {
			t.Fatalf("byte %q produced unexpected response %q", b, response)
		}

		v := b - '0'
		if ps.tck != logicFromBit(v&0b100) {
			t.Errorf("byte %q: tck is %s", b, ps.tck)
		}
		if ps.tms != logicFromBit(v&0b010) {
			t.Errorf("byte %q: tms is %s", b, ps.tms)
		}
		if ps.tdi != logicFromBit(v&0b001) {
			t.Errorf("byte %q: tdi is %s", b, ps.tdi)
		}

		if ps.trst != Logic1 || ps.srst != Logic1 {
			t.Errorf("byte %q disturbed the reset lines: trst=%s srst=%s", b, ps.trst, ps.srst)
		}
	}
}

func TestDecodeWriteResets(t *testing.T) {
	for b := byte('r'); b <= 'u'; b++ {
		ps := pinState{tck: Logic1, tms: Logic0, tdi: Logic1, trst: LogicX, srst: LogicX}

		pc := decodePinByte(b)
		if pc.cmd != cmdWriteReset {
			t.Fatalf("byte %q decoded to %d", b, pc.cmd)
		}

		response, hasResponse := pc.apply(&ps, Logic0)
		if hasResponse {
			t.Fatalf("byte %q produced unexpected response %q", b, response)
		}

		v := b - 'r'
		if ps.trst != logicFromBit(v&0b10) {
			t.Errorf("byte %q: trst is %s", b, ps.trst)
		}
		if ps.srst != logicFromBit(v&0b01) {
			t.Errorf("byte %q: srst is %s", b, ps.srst)
		}

		if ps.tck != Logic1 || ps.tms != Logic0 || ps.tdi != Logic1 {
			t.Errorf("byte %q disturbed the jtag pins: tck=%s tms=%s tdi=%s", b, ps.tck, ps.tms, ps.tdi)
		}
	}
}

func TestDecodeWriteIdempotent(t *testing.T) {
	ps := newPinState()

	pc := decodePinByte('6')
	pc.apply(&ps, Logic0)
	once := ps

	pc.apply(&ps, Logic0)
	if ps != once {
		t.Errorf("second apply changed state: %+v vs %+v", ps, once)
	}
}

func TestDecodeReadRequest(t *testing.T) {
	tests := []struct {
		tdo  Logic
		want byte
	}{
		{Logic1, '1'},
		{LogicH, '1'},
		{Logic0, '0'},
		{LogicL, '0'},
		{LogicU, '0'},
		{LogicX, '0'},
		{LogicZ, '0'},
		{LogicW, '0'},
		{LogicD, '0'},
	}

	for _, tt := range tests {
		ps := newPinState()
		org := ps

		pc := decodePinByte('R')
		if pc.cmd != cmdRead {
			t.Fatalf("'R' decoded to %d", pc.cmd)
		}

		response, hasResponse := pc.apply(&ps, tt.tdo)
		if !hasResponse {
			t.Fatalf("tdo %s: no response", tt.tdo)
		}
		if response != tt.want {
			t.Errorf("tdo %s: response %q, want %q", tt.tdo, response, tt.want)
		}
		if ps != org {
			t.Errorf("tdo %s: read request changed pin state", tt.tdo)
		}
	}
}

func TestDecodeNoOps(t *testing.T) {
	noOps := []byte{'B', 'b', 'Z', 'a', 'q', 'v', '8', '9', ' ', 0, 0x7F, 0xFF}

	for _, b := range noOps {
		ps := newPinState()
		org := ps

		pc := decodePinByte(b)
		if pc.cmd == cmdRead || pc.cmd == cmdQuit || pc.cmd == cmdWritePins || pc.cmd == cmdWriteReset {
			t.Fatalf("byte %q decoded to %d", b, pc.cmd)
		}

		response, hasResponse := pc.apply(&ps, Logic1)
		if hasResponse {
			t.Errorf("byte %q produced response %q", b, response)
		}
		if ps != org {
			t.Errorf("byte %q changed pin state", b)
		}
	}
}

func TestDecodeTotal(t *testing.T) {
	// every possible byte must decode to a defined effect
	for v := 0; v < 256; v++ {
		pc := decodePinByte(byte(v))
		if pc.cmd < cmdIgnore || pc.cmd > cmdUnknown {
			t.Fatalf("byte %d decoded to undefined command %d", v, pc.cmd)
		}
	}
}

func TestPowerOnPinState(t *testing.T) {
	ps := newPinState()

	if ps.tck != LogicX || ps.tms != LogicX || ps.tdi != LogicX {
		t.Errorf("jtag pins not unknown at power-on: %+v", ps)
	}
	if ps.trst != Logic0 || ps.srst != Logic0 {
		t.Errorf("reset lines not low at power-on: %+v", ps)
	}

	pins := ps.snapshot()
	if pins.Tck != LogicX || pins.Tms != LogicX || pins.Tdi != LogicX || pins.Trst != Logic0 || pins.Srst != Logic0 {
		t.Errorf("snapshot does not match state: %+v", pins)
	}
}
