package dcm

import (
	"testing"

	"github.com/pybricks-go/portcore/pkg/portcore/hal/mock"
)

// The NXT Light Sensor alternates its LED through P5 and reads P1 in
// both phases: reflected with the LED on, ambient with it off.
func TestNxtLightActivePassiveAlternation(t *testing.T) {
	clock := mock.NewClock()
	timer := mock.NewTimer(clock)
	p5 := mock.NewGpio()
	p1 := mock.NewAdc()
	loop := NewNxtLightLoop(timer)

	// Drive two full reflected/ambient cycles; the second settles the
	// readings the scenario asserts on. The ADC is set to whatever the
	// scenario says P1 reads for the pin's *current* level before each
	// Step, so it holds that value through the settle tick that samples
	// it.
	for cycle := 0; cycle < 2; cycle++ {
		done := false
		for !done {
			if p5.Input() {
				p1.Set(mvToRaw(1300)) // P5=1 -> P1=1300mV (reflected)
			} else {
				p1.Set(mvToRaw(3800)) // P5=0 -> P1=3800mV (ambient)
			}
			done = loop.Step(p5, p1)
			clock.Advance(lightSettleMs)
		}
	}

	raw := loop.Raw()
	if !within(raw.R, 1300, 10) || !within(raw.A, 3800, 10) {
		t.Fatalf("raw = %+v, want R~1300 A~3800 (10bit ADC rounding)", raw)
	}

	// Inverted intensities: reflection = 5000-1300 = 3700, ambient =
	// 5000-3800 = 1200. Reflectance output is (3700-1200) * (1200-825) /
	// 1200 ~= 781; ambient output (1200-1200)/4 binds to 0.
	cal := loop.Calibrated()
	if !within(cal.R, 781, 10) {
		t.Fatalf("calibrated reflectance = %d, want ~781", cal.R)
	}
	if cal.A != 0 {
		t.Fatalf("calibrated ambient = %d, want 0", cal.A)
	}
}

func within(got, want, tolerance uint32) bool {
	if got > want {
		return got-want <= tolerance
	}
	return want-got <= tolerance
}

// mvToRaw inverts AdcToMillivolts closely enough for test fixtures.
func mvToRaw(mv uint32) uint16 {
	return uint16(mv * 1000 / 4888)
}
