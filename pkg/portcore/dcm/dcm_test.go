package dcm

import (
	"testing"

	"github.com/pybricks-go/portcore/pkg/portcore/devcat"
)

// TestClassifyTotality checks that every possible 7-bit PinState
// classifies to some DeviceCategory, never panicking or returning an
// out-of-range value.
func TestClassifyTotality(t *testing.T) {
	for v := 0; v < 1<<7; v++ {
		cat := Classify(PinState(v))
		if cat < devcat.None || cat > devcat.NxtAnalogOther {
			t.Fatalf("PinState(%#x) classified to out-of-range category %v", v, cat)
		}
	}
}

// TestHysteresisNeverLatchesAt19Samples holds a non-None category for
// one sample short of the steady-state window, then reverts: Connected
// must never latch.
func TestHysteresisNeverLatchesAt19Samples(t *testing.T) {
	s := NewState()
	for i := 0; i < SteadyStateTicks-1; i++ {
		if s.Scan(patEv3Analog) {
			t.Fatalf("latched connected after only %d samples", i+1)
		}
	}
	if s.Connected {
		t.Fatalf("connected latched before steady-state window elapsed")
	}
	// Revert to None: the next sample should reset the counter instead
	// of completing the window.
	s.Scan(patNone)
	if s.Connected {
		t.Fatalf("connected latched after reverting to None")
	}
	if s.Category != devcat.None {
		t.Fatalf("category = %v, want None after revert", s.Category)
	}
}

func TestHysteresisLatchesAt20Samples(t *testing.T) {
	s := NewState()
	var connected bool
	for i := 0; i < SteadyStateTicks; i++ {
		connected = s.Scan(patEv3Analog)
	}
	if !connected || !s.Connected {
		t.Fatalf("did not latch connected after %d samples", SteadyStateTicks)
	}
	if s.Category != devcat.Ev3Analog {
		t.Fatalf("category = %v, want Ev3Analog", s.Category)
	}
}

// A BOOST Color-Distance Sensor presents ADC1 near 0mV with P2/P5 high
// and P6 carrying data: the classifier must settle on Lump.
func TestBoostColorDistanceAttach(t *testing.T) {
	s := NewState()
	pins := Adc1_0to100 | P2High | P5High // P6 don't-care, left low
	var connected bool
	for i := 0; i < SteadyStateTicks; i++ {
		connected = s.Scan(pins)
	}
	if !connected || s.Category != devcat.Lump {
		t.Fatalf("got connected=%v category=%v, want Lump", connected, s.Category)
	}
}

func TestEv3AnalogDisconnect(t *testing.T) {
	s := NewState()
	for i := 0; i < SteadyStateTicks; i++ {
		s.Scan(patEv3Analog)
	}
	if !s.Connected {
		t.Fatalf("precondition failed: not connected")
	}
	var disconnected bool
	for i := 0; i < DisconnectTicks; i++ {
		disconnected = s.WatchDisconnect(true) // P5 driven high = released
	}
	if !disconnected {
		t.Fatalf("did not disconnect after %d release samples", DisconnectTicks)
	}
	s.Reset()
	if s.Connected || s.Category != devcat.None {
		t.Fatalf("Reset left connected=%v category=%v", s.Connected, s.Category)
	}
}

func TestWatchDisconnectResetsOnBounce(t *testing.T) {
	s := NewState()
	for i := 0; i < SteadyStateTicks; i++ {
		s.Scan(patEv3Analog)
	}
	s.WatchDisconnect(true)
	s.WatchDisconnect(true)
	if s.WatchDisconnect(false) {
		t.Fatalf("disconnect reported after a bounce back to not-released")
	}
	if s.Count() != 0 {
		t.Fatalf("counter = %d after bounce, want reset to 0", s.Count())
	}
}

func TestAdcToMillivolts(t *testing.T) {
	got := AdcToMillivolts(1023)
	want := uint32(1023) * 4888 / 1000
	if got != want {
		t.Fatalf("AdcToMillivolts(1023) = %d, want %d", got, want)
	}
}
