package mock

import (
	"fmt"
	"sync"
	"time"
)

// Uart is an in-memory hal.UartDev: Send appends to a TX log tests can
// assert against; RecvInto drains a queue tests fill with QueueRx, so a
// test scripts the device side of a link byte for byte.
type Uart struct {
	mu        sync.Mutex
	rx        []byte
	txHistory [][]byte
	baud      uint32
	failSend  error
	failRecv  error
}

// NewUart returns an idle link with nothing queued.
func NewUart() *Uart {
	return &Uart{}
}

func (u *Uart) SetBaud(bps uint32) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.baud = bps
	return nil
}

// Baud returns the most recent baud SetBaud was called with.
func (u *Uart) Baud() uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud
}

func (u *Uart) Send(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failSend != nil {
		return 0, u.failSend
	}
	u.txHistory = append(u.txHistory, append([]byte(nil), p...))
	return len(p), nil
}

func (u *Uart) RecvInto(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failRecv != nil {
		return 0, u.failRecv
	}
	n := copy(p, u.rx)
	u.rx = u.rx[n:]
	return n, nil
}

func (u *Uart) Flush() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = nil
	return nil
}

func (u *Uart) AwaitIdle(_ time.Duration) error {
	return nil
}

// QueueRx appends bytes a simulated device "sends" to the controller.
func (u *Uart) QueueRx(p []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, p...)
}

// TxHistory returns every Send call's payload, in order.
func (u *Uart) TxHistory() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]byte(nil), u.txHistory...)
}

// FailSend makes every subsequent Send return err, exercising the LUMP
// engine's "UART send errors transition to signal lost" path.
func (u *Uart) FailSend(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failSend = err
}

// FailRecv makes every subsequent RecvInto return err.
func (u *Uart) FailRecv(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failRecv = err
}

// ErrClosed is a convenience sentinel for FailSend/FailRecv callers.
var ErrClosed = fmt.Errorf("mock: uart closed")
