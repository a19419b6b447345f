// Package i2c implements the bit-banged NXT I2C SoftMAC driver: a
// timer-tick-driven master state machine that drives SDA/SCL directly
// through GPIO, queuing up to four sub-transactions per exchange.
package i2c

import (
	"fmt"

	"github.com/pybricks-go/portcore/pkg/portcore/hal"
)

// MaxSubTxn is the largest number of sub-transactions one exchange can
// queue: enough for a register read (address, index, restart, data).
const MaxSubTxn = 4

// pauseQuarterTicks is the length, in quarter-bit periods, of the
// lego_compat inter-byte pause.
const pauseQuarterTicks = 3

// TxnMode selects whether a sub-transaction writes to or reads from the
// bus.
type TxnMode int

const (
	ModeWrite TxnMode = iota
	ModeRead
)

// Control requests a bus condition before or after a sub-transaction.
type Control int

const (
	ControlNone Control = iota
	ControlStart
	ControlRestart
	ControlStop
)

// Status is a sub-transaction's (and, read off the last one, the whole
// exchange's) outcome.
type Status int

const (
	StatusUnknown Status = iota
	StatusInProgress
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "InProgress"
	case StatusSuccess:
		return "Success"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrChannelBusy is returned by StartTransaction when the previous
// exchange has not finished.
var ErrChannelBusy = fmt.Errorf("i2c: channel busy")

// ErrNoData is returned by StartTransaction when data/recv arguments are
// missing or zero length.
var ErrNoData = fmt.Errorf("i2c: missing data")

// ErrSubTxnFull is returned when more than MaxSubTxn sub-transactions
// would be queued.
var ErrSubTxnFull = fmt.Errorf("i2c: sub-transaction queue full")

type subTxn struct {
	preControl, postControl Control
	mode                     TxnMode
	data                     []byte
	result                   Status
}

type busState int

const (
	busOff busState = iota
	busIdle
	busConfig
	busPause
	busReclock0
	busReclock1
	busReadAck0
	busReadAck1
	busReadAck2
	busWriteAck0
	busWriteAck1
	busWriteAck2
	busSendStartBit0
	busSendStartBit1
	busSclLow
	busSample0
	busSample1
	busSample2
	busSendStopBit0
	busSendStopBit1
)

type txnState int

const (
	txnNone txnState = iota
	txnWaiting
	txnStart
	txnTransmitByte
	txnWriteAck
	txnReadAck
	txnStop
)

// Channel is one SoftMAC I2C master bus, bit-banged over a pair of
// GpioPin lines. It holds no pin references itself: Tick is handed the
// SDA/SCL pair each call, matching the cooperative, non-blocking step
// model used throughout this core.
type Channel struct {
	bus busState
	txn txnState

	deviceAddr        uint8
	addrWrite, addrRead uint8
	legoCompat        bool

	txns      [MaxSubTxn]subTxn
	currentTxn int
	nTxns      int

	processed   int
	currentByte byte
	currentPos  int

	pTicks int
	pNext  busState
}

// NewChannel returns a channel not yet bound to any device address.
func NewChannel() *Channel {
	return &Channel{bus: busOff, txn: txnNone}
}

// Register binds the channel to a 7-bit device address. legoCompat
// enables the degraded STOP/START (instead of RESTART) timing some
// LEGO sensors, like the Ultrasonic, require.
func (c *Channel) Register(address uint8, legoCompat bool) {
	c.bus = busIdle
	c.txn = txnNone
	c.deviceAddr = address
	c.legoCompat = legoCompat
	c.addrWrite = address<<1 | uint8(ModeWrite)
	c.addrRead = address<<1 | uint8(ModeRead)
	c.currentTxn = 0
	c.nTxns = 0
}

func (c *Channel) addSubTxn(mode TxnMode, data []byte, pre, post Control) error {
	if c.nTxns == MaxSubTxn {
		return ErrSubTxnFull
	}
	c.txns[c.nTxns] = subTxn{preControl: pre, postControl: post, mode: mode, data: data}
	c.nTxns++
	return nil
}

// Busy reports whether an exchange is in progress.
func (c *Channel) Busy() bool {
	return c.bus > busIdle || c.currentTxn < c.nTxns
}

// StartTransaction queues a full exchange: a write of data (typically
// the target's internal register address, optionally followed by a
// value), and, for ModeRead, a repeated-start followed by a read of
// len(recvBuf) bytes into recvBuf.
func (c *Channel) StartTransaction(mode TxnMode, data []byte, recvBuf []byte) error {
	if c.Busy() {
		return ErrChannelBusy
	}
	if len(data) == 0 {
		return ErrNoData
	}
	if mode == ModeRead && len(recvBuf) == 0 {
		return ErrNoData
	}
	for i := range recvBuf {
		recvBuf[i] = 0
	}

	c.bus = busConfig
	c.currentTxn = 0
	c.nTxns = 0

	writeAddr := []byte{c.addrWrite}
	if err := c.addSubTxn(ModeWrite, writeAddr, ControlStart, ControlNone); err != nil {
		return err
	}
	post := ControlNone
	if c.legoCompat || mode == ModeWrite {
		post = ControlStop
	}
	if err := c.addSubTxn(ModeWrite, data, ControlNone, post); err != nil {
		return err
	}

	if mode == ModeRead {
		readAddr := []byte{c.addrRead}
		if err := c.addSubTxn(ModeWrite, readAddr, ControlRestart, ControlNone); err != nil {
			return err
		}
		if err := c.addSubTxn(ModeRead, recvBuf, ControlNone, ControlStop); err != nil {
			return err
		}
	}

	c.txn = txnWaiting
	c.bus = busIdle
	return nil
}

// Status reports the exchange's current outcome: the failed
// sub-transaction's status if any sub-transaction failed, in-progress
// while sub-transactions remain, else the last sub-transaction's result.
func (c *Channel) Status() Status {
	if c.nTxns == 0 {
		return StatusUnknown
	}
	for i := 0; i < c.nTxns; i++ {
		if c.txns[i].result == StatusFailed {
			return StatusFailed
		}
	}
	if c.currentTxn < c.nTxns {
		return StatusInProgress
	}
	return c.txns[c.nTxns-1].result
}

func (c *Channel) setBusState(next busState) {
	if c.legoCompat {
		c.bus = busPause
		if next == busIdle {
			c.pTicks = 10 * pauseQuarterTicks
		} else {
			c.pTicks = pauseQuarterTicks
		}
		c.pNext = next
		return
	}
	c.bus = next
}

func releaseHigh(pin hal.GpioPin) { pin.OutHigh() }
func pullLow(pin hal.GpioPin)     { pin.OutLow() }

// Tick advances the bus one quarter-bit-period step. It must be driven
// at 4x the target I2C bus rate by a background ticker (the registry's
// RunI2C goroutine, through Port.TickI2C), standing in for the hardware
// timer interrupt.
func (c *Channel) Tick(sda, scl hal.GpioPin) {
	// The last sub-transaction's completion leaves currentTxn == nTxns
	// while the stop bit drains; keep t pointing at the final record so
	// the remaining states have something valid to read.
	idx := c.currentTxn
	if idx >= c.nTxns {
		if c.nTxns == 0 {
			return
		}
		idx = c.nTxns - 1
	}
	t := &c.txns[idx]

	switch c.bus {
	case busOff, busConfig:
		return

	case busReclock0:
		pullLow(scl)
		c.bus = busReclock1

	case busReclock1:
		releaseHigh(scl)
		c.bus = busSendStartBit0

	case busReadAck0:
		releaseHigh(scl)
		c.bus = busReadAck1

	case busReadAck1:
		if scl.Input() {
			c.bus = busReadAck2
		}

	case busReadAck2:
		if sda.Input() {
			t.result = StatusFailed
			c.bus = busSendStopBit0
			c.txn = txnStop
			c.currentTxn = c.nTxns
		} else {
			if c.processed < len(t.data) {
				c.txn = txnTransmitByte
				c.bus = busSclLow
			} else {
				t.result = StatusSuccess
				c.currentTxn++
				if t.postControl == ControlStop {
					c.bus = busSclLow
					c.txn = txnStop
				} else {
					c.bus = busIdle
					c.txn = txnWaiting
				}
			}
			pullLow(scl)
		}

	case busWriteAck0:
		releaseHigh(scl)
		c.bus = busWriteAck1

	case busWriteAck1:
		pullLow(scl)
		c.bus = busWriteAck2

	case busWriteAck2:
		releaseHigh(sda)
		c.bus = busSclLow
		c.txn = txnTransmitByte

	case busIdle:
		c.tickIdle(sda, scl)

	case busPause:
		c.pTicks--
		if c.pTicks == 0 {
			c.bus = c.pNext
		}

	case busSendStartBit0:
		if sda.Input() {
			pullLow(sda)
			c.setBusState(busSendStartBit1)
		} else {
			c.bus = busReclock0
		}

	case busSendStartBit1:
		pullLow(scl)
		c.setBusState(busSclLow)
		c.txn = txnTransmitByte

	case busSclLow:
		c.tickSclLow(sda, scl, t)

	case busSample0:
		releaseHigh(scl)
		c.bus = busSample1

	case busSample1:
		if t.mode == ModeRead {
			var v byte
			if sda.Input() {
				v = 1
			}
			t.data[c.processed] |= v << uint(c.currentPos)
			c.currentPos--
		}
		c.bus = busSample2

	case busSample2:
		c.tickSample2(t)

	case busSendStopBit0:
		releaseHigh(scl)
		c.setBusState(busSendStopBit1)

	case busSendStopBit1:
		releaseHigh(sda)
		c.setBusState(busIdle)
		c.txn = txnWaiting
	}
}

func (c *Channel) tickIdle(sda, scl hal.GpioPin) {
	if c.txn == txnWaiting && c.currentTxn < c.nTxns {
		t := &c.txns[c.currentTxn]
		if t.preControl == ControlNone {
			c.txn = txnTransmitByte
			c.bus = busSclLow
		} else {
			// Release both lines before issuing the START bit: SDA must
			// read high in SendStartBit0 or the channel reclocks until
			// the bus is free.
			releaseHigh(sda)
			releaseHigh(scl)
			if t.preControl == ControlRestart && c.legoCompat {
				c.bus = busReclock0
			} else {
				c.bus = busSendStartBit0
			}
			c.txn = txnStart
		}
		c.processed = 0
		c.currentByte = t.data[0]
		c.currentPos = 7
	}
	if c.currentTxn == c.nTxns {
		c.txn = txnNone
	}
}

func (c *Channel) tickSclLow(sda, scl hal.GpioPin, t *subTxn) {
	switch c.txn {
	case txnTransmitByte:
		if t.mode == ModeWrite {
			if c.currentByte&(1<<uint(c.currentPos)) != 0 {
				releaseHigh(sda)
			} else {
				pullLow(sda)
			}
			c.currentPos--
		}
		c.bus = busSample0

	case txnWriteAck:
		if sda.Input() {
			pullLow(sda)
			c.bus = busWriteAck0
		}

	case txnReadAck:
		releaseHigh(sda)
		pullLow(scl)
		c.bus = busReadAck0

	case txnStop:
		pullLow(sda)
		c.setBusState(busSendStopBit0)
	}
}

func (c *Channel) tickSample2(t *subTxn) {
	c.bus = busSclLow
	if c.currentPos < 0 {
		c.processed++
		c.currentPos = 7

		if t.mode == ModeWrite {
			if c.processed < len(t.data) {
				c.currentByte = t.data[c.processed]
			}
			c.txn = txnReadAck
		} else {
			if c.processed < len(t.data) {
				c.txn = txnWriteAck
			} else {
				if t.postControl == ControlStop {
					c.txn = txnStop
				} else {
					c.bus = busIdle
					c.txn = txnWaiting
				}
				t.result = StatusSuccess
				c.currentTxn++
			}
		}
	}
}
