// Package periphgpio adapts periph.io/x/conn/v3's gpio.PinIO and
// physic.ElectricPotential readings to this core's hal.GpioPin/hal.AdcCh
// chip-driver traits, for a real-hardware host build. Structurally
// parallel to hal/serialuart: one small adapter type per trait, no
// protocol logic of its own.
package periphgpio

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/pybricks-go/portcore/pkg/portcore/hal"
)

// Pin adapts a gpio.PinIO to hal.GpioPin. Alt switches the pin between a
// driven output (GPIO use by DCM/I2C) and a released input (handed to
// the UART peripheral for LUMP); most periph host drivers route the
// actual UART TX/RX alternate function at the platform package level
// rather than per-pin, so Alt only needs to stop this core from holding
// the line once LUMP takes over.
type Pin struct {
	pin gpio.PinIO
}

// NewPin wraps an already-resolved periph pin.
func NewPin(pin gpio.PinIO) *Pin {
	return &Pin{pin: pin}
}

func (p *Pin) OutHigh() {
	p.pin.Out(gpio.High)
}

func (p *Pin) OutLow() {
	p.pin.Out(gpio.Low)
}

func (p *Pin) Input() bool {
	p.pin.In(gpio.PullNoChange, gpio.NoEdge)
	return p.pin.Read() == gpio.High
}

func (p *Pin) Alt(mode hal.PinMode) {
	switch mode {
	case hal.PinModeUart:
		p.pin.In(gpio.PullNoChange, gpio.NoEdge)
	default:
		p.pin.Out(gpio.Low)
	}
}

// VoltageReader is satisfied by a platform's ADC channel driver. periph
// has no single cross-platform ADC interface the way it does for GPIO,
// so each host package supplies its own physic.ElectricPotential reader
// over whatever bus its ADC chip uses (SPI, I2C, on-die SoC channel).
type VoltageReader interface {
	ReadVoltage() (physic.ElectricPotential, error)
}

// Adc adapts a VoltageReader to hal.AdcCh, converting the periph
// ElectricPotential reading down to the core's 10-bit, 0..5000mV-range
// ADC model.
type Adc struct {
	reader VoltageReader
	last   uint16
}

// NewAdc wraps a platform ADC channel reader.
func NewAdc(reader VoltageReader) *Adc {
	return &Adc{reader: reader}
}

func (a *Adc) Read10Bit() uint16 {
	v, err := a.reader.ReadVoltage()
	if err != nil {
		return a.last
	}
	mv := int64(v) / int64(physic.MilliVolt)
	raw := mv * 1023 / 5000
	switch {
	case raw < 0:
		raw = 0
	case raw > 1023:
		raw = 1023
	}
	a.last = uint16(raw)
	return a.last
}

// AwaitNewSamples polls the reader minCount times. Real ADC channel
// drivers with a free-running sample buffer would instead block on a
// DMA-complete signal; this core's chip drivers are expected to resolve
// that difference inside their own VoltageReader implementation.
func (a *Adc) AwaitNewSamples(minCount int) {
	for i := 0; i < minCount; i++ {
		a.Read10Bit()
	}
}
