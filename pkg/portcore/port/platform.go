// Package port implements the per-port process scheduler:
// the cooperative state machine that composes the Device Connection
// Manager, the LUMP engine, and the I2C SoftMAC driver behind one
// pollable Port, mediating access to the shared motor-driver and UART
// terminals.
package port

import "github.com/pybricks-go/portcore/pkg/portcore/hal"

// ID identifies a physical external connector on a hub.
type ID int

// Capabilities is a bit set of the modes a physical port supports,
// baked into its PlatformData at build time.
type Capabilities uint8

const (
	CapQuadraturePassive Capabilities = 1 << iota
	CapLegoDcm
	CapUart
	CapMotor
)

func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// PlatformData is the immutable per-port record produced at build time:
// every chip-driver handle this port may ever need, plus its
// capabilities. One literal per physical port lives in a
// platform_<hub>.go table; there is no runtime configuration surface.
type PlatformData struct {
	ID   ID
	Caps Capabilities

	// GpioP2/P5/P6 and AdcP1/P6 are DCM's pin-state sampling handles.
	// P5/P6 are re-muxed to the UART peripheral (Alt) when LUMP takes
	// the port over.
	GpioP2 hal.GpioPin
	GpioP5 hal.GpioPin
	GpioP6 hal.GpioPin
	AdcP1  hal.AdcCh
	AdcP6  hal.AdcCh

	// Uart is present iff CapUart is set.
	Uart hal.UartDev

	// Motor is the H-bridge this port's power policy (or a servo/
	// drivebase owner) may drive. Present iff CapMotor is set.
	Motor hal.MotorDrv

	// Counter is the quadrature/absolute encoder terminal for a passive
	// motor attached to this port. Present iff CapQuadraturePassive is
	// set.
	Counter hal.CounterDrv
}
