// Package hal declares the chip-driver trait surface that the port core
// requires from a host. Real backends live in hal/serialuart and
// hal/periphgpio; hal/mock backs the host simulator and the unit tests.
package hal

import "time"

// GpioPin is a single digital pin, driven or sampled by the DCM and the
// I2C SoftMAC bit-bang loop.
type GpioPin interface {
	OutHigh()
	OutLow()
	Input() bool
	// Alt switches the pin between GPIO and its alternate function (e.g.
	// UART TX/RX) for ports that mux pins 5/6 between DCM and LUMP.
	Alt(mode PinMode)
}

// PinMode selects a GpioPin's alternate function.
type PinMode int

const (
	PinModeGpio PinMode = iota
	PinModeUart
)

// AdcCh samples a single analog-to-digital channel.
type AdcCh interface {
	// Read10Bit returns the latest conversion, 0..1023.
	Read10Bit() uint16
	// AwaitNewSamples blocks the calling goroutine until at least
	// minCount new conversions have completed since the last read.
	// Never called from a cooperative step function; only from the
	// background sampling goroutine.
	AwaitNewSamples(minCount int)
}

// Timer is a single-shot deadline, restartable without reallocating.
type Timer interface {
	SetMs(ms uint32)
	IsExpired() bool
	Extend(ms uint32)
}

// UartDev is the port UART, switchable between DCM's idle state and LUMP's
// framed baud-rate-synchronized link.
type UartDev interface {
	SetBaud(bps uint32) error
	Send(p []byte) (int, error)
	// RecvInto performs a non-blocking read, returning the number of bytes
	// copied into p (possibly zero).
	RecvInto(p []byte) (int, error)
	Flush() error
	// AwaitIdle blocks until the TX FIFO has drained. Only ever called
	// from the background driving goroutine, never from a step function.
	AwaitIdle(timeout time.Duration) error
}

// MotorDrv is the H-bridge terminal a port may own while its power policy
// is non-None.
type MotorDrv interface {
	Coast()
	// SetDuty drives the bridge at a signed duty cycle in
	// [-MaxDuty, MaxDuty].
	SetDuty(duty int32) error
}

// MaxDuty is the full-scale magnitude accepted by MotorDrv.SetDuty.
const MaxDuty = 10000

// TypeID identifies an attached LEGO device, as reported over LUMP sync
// or inferred from a counter-driver's own ID strap.
type TypeID uint8

// CounterDrv is a quadrature/absolute encoder terminal, used when a port's
// attached device exposes angle outside of a LUMP link (e.g. passive
// motors read via the motor driver's own tachometer).
type CounterDrv interface {
	GetAngle() (rotations int32, millidegrees int32, err error)
	GetAbsAngle() (millidegrees int32, err error)
	AssertType(want TypeID) error
}
