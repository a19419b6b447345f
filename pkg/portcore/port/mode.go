package port

import "github.com/pybricks-go/portcore/pkg/portcore/lump"

// Mode is the port's current pin-mux owner.
type Mode int

const (
	ModeNone Mode = iota
	ModeQuadraturePassive
	ModeLegoDcm
	ModeUart
)

func (m Mode) String() string {
	switch m {
	case ModeQuadraturePassive:
		return "QuadraturePassive"
	case ModeLegoDcm:
		return "LegoDcm"
	case ModeUart:
		return "Uart"
	default:
		return "None"
	}
}

// PowerPolicy is the H-bridge drive rule a port applies while it owns the
// port's motor driver. It is the same enum LUMP's
// sync handshake derives a device's supply requirement into, so a
// synced device's declared requirement can be assigned straight to
// Port.SetPower without translation.
type PowerPolicy = lump.PowerPolicy

const (
	PowerNone           = lump.PowerNone
	PowerBatteryToP1Pos = lump.PowerBatteryToP1Pos
	PowerBatteryToP2Pos = lump.PowerBatteryToP2Pos
)

// Angle is a motor or passive-motor position reading.
type Angle struct {
	Rotations     int32
	Millidegrees int32
}
