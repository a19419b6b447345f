package dcm

import "github.com/pybricks-go/portcore/pkg/portcore/hal"

// lightSettleMs is the ADC settle delay after toggling P5. A fixed
// settle window on a Timer keeps the step non-blocking and pollable from
// the port process, instead of blocking on the ADC for fresh samples.
const lightSettleMs = 1

type lightPhase int

const (
	lightPhaseDriveHigh lightPhase = iota
	lightPhaseSettleHigh
	lightPhaseDriveLow
	lightPhaseSettleLow
)

// NxtLightLoop runs the NXT Light Sensor's two-phase reflected/ambient
// read cycle: drive P5 high, sample reflected light on P1;
// drive P5 low, sample ambient light on P1.
type NxtLightLoop struct {
	phase  lightPhase
	timer  hal.Timer
	raw    Rgba // R = reflected mV, A = ambient mV
}

// NewNxtLightLoop constructs a loop using the given timer for settle waits.
func NewNxtLightLoop(timer hal.Timer) *NxtLightLoop {
	return &NxtLightLoop{timer: timer}
}

// Step advances the loop by one tick. Returns true once a full
// reflected+ambient cycle has completed and Raw()/Calibrated() reflect
// fresh readings.
func (l *NxtLightLoop) Step(p5 hal.GpioPin, p1 hal.AdcCh) bool {
	switch l.phase {
	case lightPhaseDriveHigh:
		p5.OutHigh()
		l.timer.SetMs(lightSettleMs)
		l.phase = lightPhaseSettleHigh
	case lightPhaseSettleHigh:
		if l.timer.IsExpired() {
			l.raw.R = AdcToMillivolts(p1.Read10Bit())
			l.phase = lightPhaseDriveLow
		}
	case lightPhaseDriveLow:
		p5.OutLow()
		l.timer.SetMs(lightSettleMs)
		l.phase = lightPhaseSettleLow
	case lightPhaseSettleLow:
		if l.timer.IsExpired() {
			l.raw.A = AdcToMillivolts(p1.Read10Bit())
			l.phase = lightPhaseDriveHigh
			return true
		}
	}
	return false
}

// Raw returns the most recent uncalibrated reflected (R) / ambient (A)
// readings in millivolts.
func (l *NxtLightLoop) Raw() Rgba {
	return l.raw
}

// Calibrated normalizes the inverted reflected/ambient intensities to
// 0..1000, compensating for ambient-light nonlinearity.
func (l *NxtLightLoop) Calibrated() Rgba {
	ambient := int64(5000) - int64(l.raw.A)
	reflection := int64(5000) - int64(l.raw.R)
	difference := reflection - ambient
	if difference < 0 {
		difference = 0
	}
	scale := ambient - 825
	if scale < 0 {
		scale = 0
	}
	return Rgba{
		R: clampTo1000(difference * scale / 1200),
		A: uint32(bind((ambient-1200)/4, 0, 1000)),
	}
}
