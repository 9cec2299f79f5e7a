package cosim_jtag

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jimsnab/go-lane"
)

func TestHistoryRecordsTransitions(t *testing.T) {
	l := lane.NewTestingLane(context.Background())

	ph, err := NewPinHistory(l, "")
	if err != nil {
		t.Fatal(err)
	}

	eng := testEngineSetup(t, WithHistory(ph))

	eng.Dispatch('7', LogicX)
	time.Sleep(20 * time.Millisecond)
	eng.Dispatch('0', LogicX)

	value, exists := ph.Current("tck")
	if !exists || value != "0" {
		t.Errorf("tck current = %q %v, want \"0\"", value, exists)
	}

	// between the two writes, tck was still driven high
	value, exists = ph.ValueAt("tck", -int64(10*time.Millisecond))
	if !exists || value != "1" {
		t.Errorf("tck 10ms ago = %q %v, want \"1\"", value, exists)
	}

	// the first record seeds the untouched pins with their power-on values
	value, exists = ph.Current("trst")
	if !exists || value != "0" {
		t.Errorf("trst current = %q %v, want \"0\"", value, exists)
	}

	if _, exists = ph.Current("tdo"); exists {
		t.Error("unexpected history for an unrecorded pin")
	}
}

func TestHistoryReadRequestsNotRecorded(t *testing.T) {
	l := lane.NewTestingLane(context.Background())

	ph, err := NewPinHistory(l, "")
	if err != nil {
		t.Fatal(err)
	}

	eng := testEngineSetup(t, WithHistory(ph))

	eng.Dispatch('R', Logic1)
	eng.Dispatch('B', Logic1)

	if _, exists := ph.Current("tck"); exists {
		t.Error("non-write commands were recorded")
	}
}

func TestHistorySaveAndLoad(t *testing.T) {
	l := lane.NewTestingLane(context.Background())

	persistPath := filepath.Join(t.TempDir(), "pins.db")

	ph, err := NewPinHistory(l, persistPath)
	if err != nil {
		t.Fatal(err)
	}

	eng := testEngineSetup(t, WithHistory(ph))
	eng.Dispatch('3', LogicX)
	eng.Dispatch('u', LogicX)

	if err = ph.Save(); err != nil {
		t.Fatal(err)
	}

	// nothing dirty; a second save is a no-op
	if err = ph.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewPinHistory(l, persistPath)
	if err != nil {
		t.Fatal(err)
	}

	value, exists := reloaded.Current("tms")
	if !exists || value != "1" {
		t.Errorf("tms after reload = %q %v, want \"1\"", value, exists)
	}
	value, exists = reloaded.Current("srst")
	if !exists || value != "1" {
		t.Errorf("srst after reload = %q %v, want \"1\"", value, exists)
	}
}
