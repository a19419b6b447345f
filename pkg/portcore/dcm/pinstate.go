package dcm

import "github.com/pybricks-go/portcore/pkg/portcore/devcat"

// PinState is the 7-element pin-state vector DCM samples every
// SampleMs: a one-hot ADC1 bucket in bits 0..3 and the raw GPIO levels
// of P2/P5/P6 in bits 4..6.
type PinState uint8

const (
	Adc1_0to100     PinState = 1 << 0
	Adc1_100to3100  PinState = 1 << 1
	Adc1_3100to4800 PinState = 1 << 2
	Adc1_4800to5000 PinState = 1 << 3
	P2High          PinState = 1 << 4
	P5High          PinState = 1 << 5
	P6High          PinState = 1 << 6

	maskP1 PinState = Adc1_0to100 | Adc1_100to3100 | Adc1_3100to4800 | Adc1_4800to5000
	maskP6 PinState = P6High
)

// Exact (fully-specified) pin-state patterns. Categories not listed here
// are recognized via a masked comparison in Classify.
const (
	patNone            = Adc1_4800to5000 | P2High | P5High
	patEv3Analog       = Adc1_100to3100 | P2High
	patNxtI2c          = Adc1_4800to5000 | P5High | maskP6
	patNxtTemperature  = patNxtI2c | P2High
	patNxtTouch1Pressed = Adc1_100to3100 | P2High | P5High
	patLump            = Adc1_0to100 | P2High | P5High | maskP6
	patNxtColor        = Adc1_0to100 | P5High | maskP6
	patNxtAnalogOther  = maskP1 | P5High
	patNxtLight        = maskP1
)

// AdcToMillivolts converts a 10-bit ADC reading to the 0..5000mV range
// used throughout the classification table and the passive-sensor math.
func AdcToMillivolts(adc10bit uint16) uint32 {
	return uint32(adc10bit) * 4888 / 1000
}

// Classify maps a pin-state vector to a device category. Every possible
// PinState value (2^7) produces a category, defaulting to devcat.None
// when no pattern matches, so every one of the 128 vectors is mapped.
func Classify(state PinState) devcat.DeviceCategory {
	if state|maskP6 == patLump {
		return devcat.Lump
	}
	if state|maskP6 == patNxtColor {
		return devcat.NxtColor
	}
	if state|maskP1 == patNxtAnalogOther {
		return devcat.NxtAnalogOther
	}
	if state|maskP1 == patNxtLight {
		return devcat.NxtLight
	}
	switch state {
	case patEv3Analog:
		return devcat.Ev3Analog
	case patNxtI2c:
		return devcat.NxtI2c
	case patNxtTemperature:
		return devcat.NxtTemperature
	case patNxtTouch1Pressed:
		return devcat.NxtTouch1Pressed
	case patNone:
		return devcat.None
	default:
		return devcat.None
	}
}
