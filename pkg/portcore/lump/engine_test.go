package lump

import (
	"testing"
	"time"

	"github.com/pybricks-go/portcore/pkg/portcore/hal/mock"
)

func syncedEngine(t *testing.T, uart *mock.Uart, now time.Time) *Engine {
	t.Helper()
	eng := NewEngine(nil)

	uart.QueueRx([]byte{EncodeSys(SysSync)[0]})
	cmdType, err := EncodeCmd(CmdType, []byte{0x25})
	if err != nil {
		t.Fatalf("EncodeCmd(Type): %v", err)
	}
	cmdModes, err := EncodeCmd(CmdModes, []byte{0x00, 0x00})
	if err != nil {
		t.Fatalf("EncodeCmd(Modes): %v", err)
	}
	cmdSpeed, err := EncodeCmd(CmdSpeed, []byte{0x00, 0xC2, 0x01, 0x00}) // 115200 LE
	if err != nil {
		t.Fatalf("EncodeCmd(Speed): %v", err)
	}
	info, err := EncodeInfo(0, InfoName, []byte("COLOR\x00\x00\x00"))
	if err != nil {
		t.Fatalf("EncodeInfo(Name): %v", err)
	}
	format, err := EncodeInfo(0, InfoFormat, []byte{1, byte(DataTypeI8), 3, 0})
	if err != nil {
		t.Fatalf("EncodeInfo(Format): %v", err)
	}
	uart.QueueRx(cmdType)
	uart.QueueRx(cmdModes)
	uart.QueueRx(cmdSpeed)
	uart.QueueRx(info)
	uart.QueueRx(format)
	uart.QueueRx(EncodeSys(SysAck))

	for i := 0; i < 10 && eng.Phase() != PhaseReady; i++ {
		eng.Poll(now, uart)
	}
	if eng.Phase() != PhaseReady {
		t.Fatalf("engine did not reach PhaseReady: phase=%v lastErr=%v", eng.Phase(), eng.LastError())
	}
	return eng
}

// A BOOST Color-Distance Sensor's full sync handshake reaches
// PhaseReady with the device model populated from the wire messages.
func TestBoostColorDistanceSyncHandshake(t *testing.T) {
	uart := mock.NewUart()
	now := time.Unix(0, 0)
	eng := syncedEngine(t, uart, now)

	dev := eng.Device()
	if dev.TypeID != 0x25 {
		t.Fatalf("TypeID = %#x, want 0x25", dev.TypeID)
	}
	if dev.NumModes != 1 {
		t.Fatalf("NumModes = %d, want 1", dev.NumModes)
	}
	if !dev.Synced() {
		t.Fatalf("device reports not synced: %+v", dev)
	}
	mode, ok := dev.ModeByNumber(0)
	if !ok || mode.Name != "COLOR" {
		t.Fatalf("mode 0 = %+v, ok=%v, want Name=COLOR", mode, ok)
	}
	if uart.Baud() != 115200 {
		t.Fatalf("baud after sync = %d, want 115200", uart.Baud())
	}

	// The controller's Sys(Ack) must have gone out exactly once, before
	// the post-sync mode-select pair.
	acks := 0
	for _, frame := range uart.TxHistory() {
		if len(frame) == 1 && DecodeHeader(frame[0]).Type == MsgTypeSys && SysCmd(frame[0]&0x07) == SysAck {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("controller sent %d acks, want exactly 1", acks)
	}
}

// Silence longer than the sync timeout, before or during the handshake,
// drops the engine to PhaseLost so the port process can resume DCM.
func TestSyncTimeoutAbortsToLost(t *testing.T) {
	uart := mock.NewUart()
	now := time.Unix(0, 0)
	eng := NewEngine(nil)

	eng.Poll(now, uart) // arms the sync deadline at first poll
	if eng.Phase() != PhaseAwaitSync {
		t.Fatalf("phase = %v before any traffic, want PhaseAwaitSync", eng.Phase())
	}
	now = now.Add((SyncTimeoutMs + 10) * time.Millisecond)
	eng.Poll(now, uart)
	if eng.Phase() != PhaseLost {
		t.Fatalf("phase = %v after sync silence, want PhaseLost", eng.Phase())
	}
}

// Once Ready, the engine sends a keep-alive (Sys(Nack)) no more than
// KeepAlivePeriodMs apart, and a synced link that stops hearing from the
// device for LinkTimeoutMs aborts to PhaseLost.
func TestKeepAliveInvariant(t *testing.T) {
	uart := mock.NewUart()
	now := time.Unix(0, 0)
	eng := syncedEngine(t, uart, now)

	before := len(uart.TxHistory())

	// Advance by less than the keep-alive period: no new keep-alive yet,
	// and the link must not time out.
	now = now.Add((KeepAlivePeriodMs - 10) * time.Millisecond)
	eng.Poll(now, uart)
	if eng.Phase() != PhaseReady {
		t.Fatalf("link dropped early: phase=%v err=%v", eng.Phase(), eng.LastError())
	}
	if len(uart.TxHistory()) != before {
		t.Fatalf("sent a keep-alive before the period elapsed")
	}

	// Cross the keep-alive period: exactly one new Sys(Nack) must go out.
	now = now.Add(20 * time.Millisecond)
	eng.Poll(now, uart)
	if eng.Phase() != PhaseReady {
		t.Fatalf("link dropped at keep-alive boundary: phase=%v err=%v", eng.Phase(), eng.LastError())
	}
	tx := uart.TxHistory()
	if len(tx) != before+1 {
		t.Fatalf("keep-alive count = %d, want %d", len(tx)-before, 1)
	}
	last := tx[len(tx)-1]
	if len(last) != 1 || SysCmd(DecodeHeader(last[0]).CmdOrMode) != SysNack {
		t.Fatalf("keep-alive frame = %x, want a single Sys(Nack) byte", last)
	}

	// Silence past LinkTimeoutMs with no device traffic at all: the link
	// must abort.
	now = now.Add((LinkTimeoutMs + 10) * time.Millisecond)
	eng.Poll(now, uart)
	if eng.Phase() != PhaseLost {
		t.Fatalf("phase = %v after exceeding link timeout, want PhaseLost", eng.Phase())
	}
}
