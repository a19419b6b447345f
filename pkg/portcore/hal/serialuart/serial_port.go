// Package serialuart backs hal.UartDev with a real serial port via
// go.bug.st/serial. Unlike a fixed-rate console link, Port renegotiates
// baud at runtime: the LUMP sync handshake starts at 2400 and switches
// to a device-declared target speed mid-link.
package serialuart

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port adapts a go.bug.st/serial.Port to hal.UartDev.
type Port struct {
	port serial.Port
}

// Open opens portPath at initialBaud (2400 for a fresh LUMP sync) 8N1,
// with a short read timeout so RecvInto never blocks the driving
// goroutine for long.
func Open(portPath string, initialBaud uint32) (*Port, error) {
	sp, err := serial.Open(portPath, serialMode(initialBaud))
	if err != nil {
		return nil, fmt.Errorf("serialuart: open %s: %w", portPath, err)
	}
	if err := sp.SetReadTimeout(10 * time.Millisecond); err != nil {
		sp.Close()
		return nil, fmt.Errorf("serialuart: set read timeout: %w", err)
	}
	return &Port{port: sp}, nil
}

func serialMode(bps uint32) *serial.Mode {
	return &serial.Mode{
		BaudRate: int(bps),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// SetBaud reconfigures the link's baud rate without closing the port,
// used when the LUMP engine advances from the 2400 sync baud to the
// device's negotiated Cmd(Speed).
func (p *Port) SetBaud(bps uint32) error {
	if err := p.port.SetMode(serialMode(bps)); err != nil {
		return fmt.Errorf("serialuart: set baud %d: %w", bps, err)
	}
	return nil
}

func (p *Port) Send(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, fmt.Errorf("serialuart: write: %w", err)
	}
	return n, nil
}

func (p *Port) RecvInto(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("serialuart: read: %w", err)
	}
	return n, nil
}

func (p *Port) Flush() error {
	if err := p.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("serialuart: flush: %w", err)
	}
	return nil
}

// AwaitIdle waits for the TX FIFO to drain. timeout is accepted for
// hal.UartDev parity but go.bug.st/serial's Drain has no deadline
// parameter of its own.
func (p *Port) AwaitIdle(timeout time.Duration) error {
	if err := p.port.Drain(); err != nil {
		return fmt.Errorf("serialuart: drain: %w", err)
	}
	return nil
}

// Close releases the underlying OS handle.
func (p *Port) Close() error {
	return p.port.Close()
}

// AvailablePorts lists serial devices a port UART could be attached to
// on the host.
func AvailablePorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialuart: list ports: %w", err)
	}
	return ports, nil
}
