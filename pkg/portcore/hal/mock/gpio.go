package mock

import "github.com/pybricks-go/portcore/pkg/portcore/hal"

// Gpio is an in-memory hal.GpioPin. Tests drive the simulated peripheral
// side with SetInput and assert what the core drove with History.
type Gpio struct {
	level   bool
	altMode hal.PinMode
	history []bool
}

// NewGpio returns a pin reading low until driven or set.
func NewGpio() *Gpio {
	return &Gpio{}
}

func (g *Gpio) OutHigh() {
	g.level = true
	g.history = append(g.history, true)
}

func (g *Gpio) OutLow() {
	g.level = false
	g.history = append(g.history, false)
}

func (g *Gpio) Input() bool {
	return g.level
}

func (g *Gpio) Alt(mode hal.PinMode) {
	g.altMode = mode
}

// SetInput drives the pin from the simulated peripheral side, e.g. an
// NXT Color Sensor echoing a calibration bit back on P6.
func (g *Gpio) SetInput(level bool) {
	g.level = level
}

// AltMode returns the most recent PinMode passed to Alt.
func (g *Gpio) AltMode() hal.PinMode {
	return g.altMode
}

// History returns every level OutHigh/OutLow drove, oldest first.
func (g *Gpio) History() []bool {
	return append([]bool(nil), g.history...)
}

// Reset clears recorded history without changing the current level.
func (g *Gpio) Reset() {
	g.history = nil
}
