package cosim_jtag

import (
	"os"
	"sync/atomic"

	"github.com/jimsnab/go-lane"
	"github.com/jimsnab/go-treestore"
)

type (
	// PinHistory records driven pin transitions into a treestore, one
	// key per pin, giving the host value-at-time queries over the debug
	// session and optional persistence between runs. Recording is
	// strictly synchronous; the engine owns no goroutines.
	PinHistory struct {
		l        lane.Lane
		ts       *treestore.TreeStore
		basePath string
		dirty    atomic.Int32
		last     pinState
		seeded   bool
	}
)

const historyAppVersion = 1

// NewPinHistory makes a transition recorder. If persistPath is not "",
// previously saved history is loaded from it, and Save writes back to
// it; otherwise history is kept in memory only.
func NewPinHistory(l lane.Lane, persistPath string) (ph *PinHistory, err error) {
	ph = &PinHistory{
		l:        l,
		ts:       treestore.NewTreeStore(l.Derive(), historyAppVersion),
		basePath: persistPath,
	}

	if persistPath != "" {
		if _, statErr := os.Stat(persistPath); statErr == nil {
			l.Tracef("loading pin history from %s", persistPath)
			if err = ph.ts.Load(l, persistPath); err != nil {
				l.Errorf("error loading pin history %s: %s", persistPath, err.Error())
				ph = nil
				return
			}
		}
	}

	return
}

// record stores the pins that changed since the last record. The first
// record stores all five, capturing the power-on values.
func (ph *PinHistory) record(ps *pinState) {
	if !ph.seeded || ps.tck != ph.last.tck {
		ph.recordPin("tck", ps.tck)
	}
	if !ph.seeded || ps.tms != ph.last.tms {
		ph.recordPin("tms", ps.tms)
	}
	if !ph.seeded || ps.tdi != ph.last.tdi {
		ph.recordPin("tdi", ps.tdi)
	}
	if !ph.seeded || ps.trst != ph.last.trst {
		ph.recordPin("trst", ps.trst)
	}
	if !ph.seeded || ps.srst != ph.last.srst {
		ph.recordPin("srst", ps.srst)
	}

	ph.last = *ps
	ph.seeded = true
}

func (ph *PinHistory) recordPin(name string, lv Logic) {
	ph.ts.SetKeyValue(pinStoreKey(name), lv.String())
	ph.dirty.Add(1)
}

// Current returns the most recently recorded value of the named pin.
func (ph *PinHistory) Current(pin string) (value string, exists bool) {
	val, _, valExists := ph.ts.GetKeyValue(pinStoreKey(pin))
	if !valExists {
		return
	}
	return logicValueString(val)
}

// ValueAt returns the recorded value of the named pin at the specified
// Unix nanosecond timestamp, or at a relative offset from now when
// whenNs is negative.
func (ph *PinHistory) ValueAt(pin string, whenNs int64) (value string, exists bool) {
	val, valExists := ph.ts.GetKeyValueAtTime(pinStoreKey(pin), whenNs)
	if !valExists {
		return
	}
	return logicValueString(val)
}

// Save writes the history to the persist path, if one was given and
// there are unsaved transitions.
func (ph *PinHistory) Save() error {
	if ph.basePath == "" {
		return nil
	}
	if ph.dirty.Swap(0) == 0 {
		return nil
	}

	ph.l.Tracef("saving pin history to %s", ph.basePath)
	return ph.ts.Save(ph.l, ph.basePath)
}

func pinStoreKey(name string) treestore.StoreKey {
	return treestore.MakeStoreKeyFromPath(treestore.TokenPath("/pins/" + name))
}

func logicValueString(val any) (value string, exists bool) {
	str, valid := val.(string)
	if !valid {
		return
	}
	return str, true
}
