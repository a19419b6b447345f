// Command simulator wires a PortRegistry entirely over hal/mock
// backends (no real GPIO/UART/ADC/timer/motor), attaches a simulated
// BOOST Interactive Motor to port A, and polls that port while
// logging what the DCM/LUMP stack observes. A real-hardware bring-up
// helper (linux-tagged) lives in real_linux.go.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/pybricks-go/portcore/pkg/portcore"
	"github.com/pybricks-go/portcore/pkg/portcore/dcm"
	"github.com/pybricks-go/portcore/pkg/portcore/hal/mock"
	"github.com/pybricks-go/portcore/pkg/portcore/lump"
	"github.com/pybricks-go/portcore/pkg/portcore/port"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	clock := mock.NewClock()

	gpioP2, gpioP5, gpioP6 := mock.NewGpio(), mock.NewGpio(), mock.NewGpio()
	adcP1, adcP6 := mock.NewAdc(), mock.NewAdc()
	uart := mock.NewUart()
	motor := mock.NewMotor()

	portA := port.New(&port.PlatformData{
		ID:     port.CityHubPortA,
		Caps:   port.CityHubCapabilities[port.CityHubPortA],
		GpioP2: gpioP2,
		GpioP5: gpioP5,
		GpioP6: gpioP6,
		AdcP1:  adcP1,
		AdcP6:  adcP6,
		Uart:   uart,
		Motor:  motor,
	}, mock.NewTimer(clock), logger.With("port", "A"))

	reg := portcore.NewPortRegistry([]*port.Port{portA}, logger)

	now := time.Now()
	if err := portA.SetMode(port.ModeLegoDcm, now); err != nil && err != portcore.ErrAgain {
		logger.Error("set mode failed", "error", err)
		os.Exit(1)
	}

	// Drive the pin state of a LUMP smart device for the hysteresis
	// window, then queue the device's side of the sync handshake.
	adcP1.Set(0) // ADC1 bucket 0..100mV
	gpioP2.SetInput(true)
	gpioP5.SetInput(true)
	for i := 0; i < dcm.SteadyStateTicks+1; i++ {
		clock.Advance(dcm.SampleMs)
		portA.Poll(clock2time(clock))
	}

	uart.QueueRx([]byte{0x00})                               // Sys(Sync)
	cmdType, _ := lump.EncodeCmd(lump.CmdType, []byte{0x26}) // BOOST Interactive Motor
	cmdModes, _ := lump.EncodeCmd(lump.CmdModes, []byte{0x00, 0x00}) // 1 mode, 1 view mode
	uart.QueueRx(cmdType)
	uart.QueueRx(cmdModes)
	cmdSpeed, _ := lump.EncodeCmd(lump.CmdSpeed, []byte{0x00, 0xC2, 0x01, 0x00}) // 115200
	uart.QueueRx(cmdSpeed)
	name, _ := lump.EncodeInfo(0, lump.InfoName, []byte("POWER\x00\x00\x00"))
	format, _ := lump.EncodeInfo(0, lump.InfoFormat, []byte{1, byte(lump.DataTypeI8), 3, 0})
	uart.QueueRx(name)
	uart.QueueRx(format)
	uart.QueueRx(lump.EncodeSys(lump.SysAck))

	// Poll through the handshake, having the simulated motor stream a
	// power reading every 100ms so the link never trips its RX timeout.
	for i := 0; i < 50; i++ {
		clock.Advance(10)
		if i%10 == 0 {
			data, _ := lump.EncodeData(0, []byte{0x17})
			uart.QueueRx(data)
		}
		portA.Poll(clock2time(clock))
	}

	eng, err := reg.LumpEngine(port.CityHubPortA)
	if err != nil {
		logger.Info("lump not yet ready", "error", err)
		return
	}
	logger.Info("lump synced",
		"type_id", eng.Device().TypeID,
		"num_modes", eng.Device().NumModes,
		"baud", uart.Baud(),
		"mode0_data", eng.Device().LatestData(0))
}

// clock2time maps the mock millisecond clock onto a time.Time so the
// Poll/Engine APIs, which take wall-clock-shaped timestamps, can be
// driven deterministically in the simulator the same way unit tests do.
func clock2time(c *mock.Clock) time.Time {
	return time.Unix(0, int64(c.NowMs())*int64(time.Millisecond))
}
