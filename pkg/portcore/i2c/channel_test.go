package i2c

import (
	"testing"

	"github.com/pybricks-go/portcore/pkg/portcore/hal/mock"
)

func TestRegisterComputesAddresses(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, true)
	if c.addrWrite != 0x02 || c.addrRead != 0x03 {
		t.Fatalf("addrWrite=%#x addrRead=%#x, want 0x02/0x03", c.addrWrite, c.addrRead)
	}
}

func TestStartTransactionRejectsWhileBusy(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, true)
	if err := c.StartTransaction(ModeWrite, []byte{0x42}, nil); err != nil {
		t.Fatalf("first StartTransaction: %v", err)
	}
	if err := c.StartTransaction(ModeWrite, []byte{0x43}, nil); err != ErrChannelBusy {
		t.Fatalf("second StartTransaction = %v, want ErrChannelBusy", err)
	}
}

func TestStartTransactionRejectsMissingData(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, true)
	if err := c.StartTransaction(ModeWrite, nil, nil); err != ErrNoData {
		t.Fatalf("StartTransaction(nil data) = %v, want ErrNoData", err)
	}
	if err := c.StartTransaction(ModeRead, []byte{0x42}, nil); err != ErrNoData {
		t.Fatalf("StartTransaction(ModeRead, nil recvBuf) = %v, want ErrNoData", err)
	}
}

// Reading 1 byte from register 0x42 of a LEGO Ultrasonic sensor at
// address 0x01 queues a write-register sub-transaction followed by a
// restart and a 1-byte read, addressed per the 7-bit-address-shifted
// I2C convention.
func TestUltrasonicReadQueuesExpectedSubTransactions(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, true)

	recvBuf := make([]byte, 1)
	if err := c.StartTransaction(ModeRead, []byte{0x42}, recvBuf); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if !c.Busy() {
		t.Fatalf("channel not busy immediately after StartTransaction")
	}
	if c.nTxns != 4 {
		t.Fatalf("nTxns = %d, want 4 (write-addr, write-reg, restart-read-addr, read-data)", c.nTxns)
	}
	if c.txns[0].data[0] != c.addrWrite || c.txns[0].preControl != ControlStart {
		t.Fatalf("sub-txn 0 = %+v, want write-addr with ControlStart", c.txns[0])
	}
	if c.txns[1].data[0] != 0x42 {
		t.Fatalf("sub-txn 1 data = %x, want register 0x42", c.txns[1].data)
	}
	if c.txns[2].data[0] != c.addrRead || c.txns[2].preControl != ControlRestart {
		t.Fatalf("sub-txn 2 = %+v, want read-addr with ControlRestart", c.txns[2])
	}
	if c.txns[3].mode != ModeRead || len(c.txns[3].data) != 1 {
		t.Fatalf("sub-txn 3 = %+v, want a 1-byte read", c.txns[3])
	}
}

// A full register write against a slave that acks every byte must run
// both sub-transactions to completion and report Success.
func TestWriteTransactionSucceedsWithAckingSlave(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, false)
	sda, scl := mock.NewGpio(), mock.NewGpio()
	sda.SetInput(true) // bus idles high through the pull-ups
	scl.SetInput(true)

	if err := c.StartTransaction(ModeWrite, []byte{0x42, 0x01}, nil); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	for i := 0; i < 500 && c.Busy(); i++ {
		if c.bus == busReadAck2 {
			sda.SetInput(false) // slave drives the ack bit
		}
		c.Tick(sda, scl)
	}
	if c.Busy() {
		t.Fatalf("exchange did not finish within 500 ticks: bus=%d txn=%d", c.bus, c.txn)
	}
	if got := c.Status(); got != StatusSuccess {
		t.Fatalf("Status = %v, want Success", got)
	}
}

// A started exchange's status only ever moves forward, from
// Unknown/InProgress toward a terminal Success or Failed, and once
// Busy() reports false it never reports true again for the same
// exchange.
func TestTransactionMonotonicity(t *testing.T) {
	c := NewChannel()
	c.Register(0x01, true)
	sda, scl := mock.NewGpio(), mock.NewGpio()

	if err := c.StartTransaction(ModeWrite, []byte{0x42, 0x01}, nil); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}

	sawBusy := false
	sawIdleAgain := false
	prevStatus := StatusUnknown
	rank := map[Status]int{StatusUnknown: 0, StatusInProgress: 1, StatusSuccess: 2, StatusFailed: 2}

	for i := 0; i < 500; i++ {
		c.Tick(sda, scl)
		busy := c.Busy()
		if busy {
			sawBusy = true
		}
		if sawBusy && !busy {
			if sawIdleAgain {
				t.Fatalf("tick %d: channel went busy again after reporting idle", i)
			}
			sawIdleAgain = true
		}
		st := c.Status()
		if rank[st] < rank[prevStatus] {
			t.Fatalf("tick %d: status regressed from %v to %v", i, prevStatus, st)
		}
		prevStatus = st
		if !busy && st != StatusUnknown {
			break
		}
	}

	if prevStatus != StatusFailed && prevStatus != StatusSuccess {
		t.Fatalf("exchange never reached a terminal status within 500 ticks: last=%v", prevStatus)
	}
}
