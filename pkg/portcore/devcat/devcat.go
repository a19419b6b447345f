// Package devcat holds the DeviceCategory enum shared by the DCM, the
// LUMP engine, and the port process, kept separate so none of those
// packages has to import another just to name a category.
package devcat

// DeviceCategory is the classifier output of the Device Connection
// Manager: what kind of peripheral is attached to a port, derived from
// the port's pin-state vector.
type DeviceCategory int

// Any is a wildcard accepted by Port.GetDCMotor, GetAnalogValue and
// GetAnalogRgba,
// meaning "any attached category satisfies this request" — distinct from
// None, which specifically means "nothing is attached".
const Any DeviceCategory = -1

const (
	None DeviceCategory = iota
	Lump
	Ev3Analog
	NxtColor
	NxtI2c
	NxtTemperature
	NxtLight
	NxtTouch1Pressed
	NxtAnalogOther
)

func (c DeviceCategory) String() string {
	switch c {
	case None:
		return "None"
	case Lump:
		return "Lump"
	case Ev3Analog:
		return "Ev3Analog"
	case NxtColor:
		return "NxtColor"
	case NxtI2c:
		return "NxtI2c"
	case NxtTemperature:
		return "NxtTemperature"
	case NxtLight:
		return "NxtLight"
	case NxtTouch1Pressed:
		return "NxtTouch1Pressed"
	case NxtAnalogOther:
		return "NxtAnalogOther"
	default:
		return "Unknown"
	}
}

// IsNxtPassive reports whether a category is driven by a DCM bit-bang
// passive protocol rather than LUMP or a plain analog read.
func (c DeviceCategory) IsNxtPassive() bool {
	return c == NxtColor || c == NxtLight
}

// ReleasePin names which sampled pin the DCM watches to confirm
// disconnect once a category has latched: P5 for Ev3Analog, P2 for
// every NXT category, unused for Lump/None.
type ReleasePin int

const (
	ReleasePinNone ReleasePin = iota
	ReleasePinP2
	ReleasePinP5
)

func (c DeviceCategory) ReleasePin() ReleasePin {
	switch c {
	case Ev3Analog:
		return ReleasePinP5
	case NxtColor, NxtI2c, NxtTemperature, NxtLight, NxtTouch1Pressed, NxtAnalogOther:
		return ReleasePinP2
	default:
		return ReleasePinNone
	}
}
