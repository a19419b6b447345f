package lump

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pybricks-go/portcore/pkg/portcore/hal"
)

// Link timing: the handshake baud, the per-message sync timeout, the
// keep-alive transmit period, and the receive deadline after which the
// device is considered gone.
const (
	SyncBaud           = 2400
	SyncTimeoutMs      = 500
	KeepAlivePeriodMs  = 100
	LinkTimeoutMs      = 200
)

// Phase is the LUMP engine's own state, independent of the port process's
// mode state machine.
type Phase int

const (
	PhaseAwaitSync Phase = iota
	PhaseSyncing
	PhaseAckSent
	PhaseReady
	PhaseLost
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitSync:
		return "AwaitSync"
	case PhaseSyncing:
		return "Syncing"
	case PhaseAckSent:
		return "AckSent"
	case PhaseReady:
		return "Ready"
	case PhaseLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// Engine drives one port's LUMP link: the sync handshake, steady-state
// keep-alive, and RX/TX of Data/Cmd messages. It owns no UART directly —
// Poll is handed one each call — so it has no goroutines of its own and
// fits the cooperative step-function model.
type Engine struct {
	logger *slog.Logger
	dev    *Device
	phase  Phase

	rx           []byte
	closedModes  map[uint8]bool
	pendingMode  *ModeDescriptor
	syncDeadline time.Time
	lastErr      error
}

// NewEngine constructs an engine ready to run a fresh sync handshake.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger}
	e.Reset()
	return e
}

// Reset drops any in-progress sync/link state and returns to
// PhaseAwaitSync, ready for a new device to sync.
func (e *Engine) Reset() {
	e.dev = NewDevice()
	e.phase = PhaseAwaitSync
	e.rx = nil
	e.closedModes = make(map[uint8]bool)
	e.pendingMode = nil
	e.syncDeadline = time.Time{}
	e.lastErr = nil
}

// Phase returns the engine's current state.
func (e *Engine) Phase() Phase { return e.phase }

// Device returns the synced device model. Only meaningful once Phase()
// is PhaseReady (or later, for inspecting the last-known state).
func (e *Engine) Device() *Device { return e.dev }

// LastError returns the error that drove the engine into PhaseLost, if
// any.
func (e *Engine) LastError() error { return e.lastErr }

// abort transitions to PhaseLost, recording why. Any checksum mismatch,
// unexpected header, or sync silence aborts back to DCM; the port
// process observes this via Phase() == PhaseLost.
func (e *Engine) abort(err error) {
	e.lastErr = err
	e.phase = PhaseLost
	e.logger.Warn("lump: link lost", "phase", e.phase, "error", err)
}

// Poll is the engine's single non-blocking step. It drains whatever bytes
// are currently available from uart, advances the state machine, and
// returns. It never blocks: RecvInto/Send on a mock or real UartDev are
// themselves non-blocking per the hal.UartDev contract.
func (e *Engine) Poll(now time.Time, uart hal.UartDev) {
	switch e.phase {
	case PhaseAwaitSync:
		e.pollAwaitSync(now, uart)
	case PhaseSyncing:
		e.pollSyncing(now, uart)
	case PhaseAckSent:
		e.pollAckSent(now, uart)
	case PhaseReady:
		e.pollReady(now, uart)
	case PhaseLost:
		// terminal; caller must Reset() to retry.
	}
}

func (e *Engine) fill(uart hal.UartDev) {
	var buf [64]byte
	n, err := uart.RecvInto(buf[:])
	if err != nil {
		e.abort(fmt.Errorf("lump: uart recv: %w", err))
		return
	}
	if n > 0 {
		e.rx = append(e.rx, buf[:n]...)
	}
}

func (e *Engine) pollAwaitSync(now time.Time, uart hal.UartDev) {
	if e.syncDeadline.IsZero() {
		if err := uart.SetBaud(SyncBaud); err != nil {
			e.abort(fmt.Errorf("lump: set sync baud: %w", err))
			return
		}
		e.syncDeadline = now.Add(SyncTimeoutMs * time.Millisecond)
	}
	e.fill(uart)
	for {
		msg, n, err := DecodeMessage(e.rx)
		if err == ErrShortBuffer {
			break
		}
		if err != nil {
			e.abort(err)
			return
		}
		e.rx = e.rx[n:]
		if msg.Header.Type == MsgTypeSys && SysCmd(msg.Header.CmdOrMode) == SysSync {
			e.phase = PhaseSyncing
			e.syncDeadline = now.Add(SyncTimeoutMs * time.Millisecond)
			return
		}
		e.abort(fmt.Errorf("lump: unexpected header %#x while awaiting sync", msg.Header.Encode()))
		return
	}
	if now.After(e.syncDeadline) {
		e.abort(fmt.Errorf("lump: %w: no sync byte", ErrSyncTimeout))
	}
}

// ErrSyncTimeout is wrapped into the error that aborts the engine when no
// sync progress is observed within SyncTimeoutMs.
var ErrSyncTimeout = fmt.Errorf("sync timeout")

func (e *Engine) pollSyncing(now time.Time, uart hal.UartDev) {
	if now.After(e.syncDeadline) {
		e.abort(fmt.Errorf("lump: %w", ErrSyncTimeout))
		return
	}
	e.fill(uart)
	for {
		msg, n, err := DecodeMessage(e.rx)
		if err == ErrShortBuffer {
			return
		}
		if err != nil {
			e.abort(err)
			return
		}
		e.rx = e.rx[n:]
		e.syncDeadline = now.Add(SyncTimeoutMs * time.Millisecond)
		if err := e.handleSyncMessage(msg); err != nil {
			e.abort(err)
			return
		}
		if e.syncStructurallyComplete() {
			e.sendAck(uart)
			return
		}
	}
}

func (e *Engine) syncStructurallyComplete() bool {
	if e.dev.TypeID == 0 || e.dev.NumModes == 0 {
		return false
	}
	for m := 0; m < e.dev.NumModes; m++ {
		if !e.closedModes[uint8(m)] {
			return false
		}
	}
	return true
}

func (e *Engine) handleSyncMessage(msg Message) error {
	switch msg.Header.Type {
	case MsgTypeCmd:
		switch Cmd(msg.Header.CmdOrMode) {
		case CmdType:
			if len(msg.Payload) != 1 {
				return fmt.Errorf("lump: bad Cmd(Type) payload length %d", len(msg.Payload))
			}
			e.dev.TypeID = msg.Payload[0]
		case CmdModes:
			switch len(msg.Payload) {
			case 1:
				e.dev.NumModes = int(msg.Payload[0]) + 1
				e.dev.NumViewModes = e.dev.NumModes
			case 2:
				e.dev.NumModes = int(msg.Payload[0]) + 1
				e.dev.NumViewModes = int(msg.Payload[1]) + 1
			case 4:
				e.dev.NumModes = int(msg.Payload[0]) + 1
				e.dev.NumViewModes = int(msg.Payload[1]) + 1
			default:
				return fmt.Errorf("lump: bad Cmd(Modes) payload length %d", len(msg.Payload))
			}
		case CmdSpeed:
			if len(msg.Payload) != 4 {
				return fmt.Errorf("lump: bad Cmd(Speed) payload length %d", len(msg.Payload))
			}
			e.dev.TargetBaud = binary.LittleEndian.Uint32(msg.Payload)
		case CmdVersion:
			if len(msg.Payload) == 8 {
				e.dev.FwVersion = binary.LittleEndian.Uint32(msg.Payload[0:4])
				e.dev.HwVersion = binary.LittleEndian.Uint32(msg.Payload[4:8])
			}
		}
	case MsgTypeInfo:
		mode := msg.Header.CmdOrMode
		if e.pendingMode == nil || e.pendingMode.Number != mode {
			e.pendingMode = &ModeDescriptor{Number: mode}
		}
		switch msg.Info {
		case InfoName:
			// A payload longer than LUMP_MAX_NAME_SIZE (11) is the Powered
			// Up flags variant: a short name in the first 6 bytes, then six
			// lump_mode_flags_t bytes.
			name := msg.Payload
			if len(name) > 11 {
				fl := name[6:12]
				e.pendingMode.Flags0 = fl[0]
				e.pendingMode.Flags1 = fl[1]
				e.pendingMode.Flags4 = fl[4]
				e.pendingMode.Flags5 = fl[5]
				name = name[:6]
			}
			e.pendingMode.Name = string(trimNul(name))
		case InfoRaw:
			e.pendingMode.Scales[ValueRaw] = decodeMinMax(msg.Payload)
		case InfoPct:
			e.pendingMode.Scales[ValuePercent] = decodeMinMax(msg.Payload)
		case InfoSi:
			e.pendingMode.Scales[ValueSi] = decodeMinMax(msg.Payload)
		case InfoUnits:
			e.pendingMode.Unit = string(trimNul(msg.Payload))
		case InfoMapping:
			// Input/output capability mapping: recorded for completeness,
			// not acted on by this core.
		case InfoFormat:
			if len(msg.Payload) != 4 {
				return fmt.Errorf("lump: bad Info(Format) payload length %d", len(msg.Payload))
			}
			e.pendingMode.NumValues = int(msg.Payload[0])
			e.pendingMode.DataType = DataType(msg.Payload[1])
			e.dev.Modes = append(e.dev.Modes, *e.pendingMode)
			e.closedModes[mode] = true
			if mode == e.dev.CurrentMode {
				e.dev.Power = DerivePowerPolicy(e.pendingMode.Flags0)
			}
			e.pendingMode = nil
		}
	case MsgTypeSys:
		// Unexpected during sync; SysAck only arrives after we send ours.
		return fmt.Errorf("lump: unexpected sys message %#x during sync", msg.Header.CmdOrMode)
	}
	return nil
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func decodeMinMax(payload []byte) MinMax {
	if len(payload) != 8 {
		return MinMax{}
	}
	minBits := binary.LittleEndian.Uint32(payload[0:4])
	maxBits := binary.LittleEndian.Uint32(payload[4:8])
	return MinMax{Min: math.Float32frombits(minBits), Max: math.Float32frombits(maxBits)}
}

func (e *Engine) sendAck(uart hal.UartDev) {
	if _, err := uart.Send(EncodeSys(SysAck)); err != nil {
		e.abort(fmt.Errorf("lump: send ack: %w", err))
		return
	}
	e.phase = PhaseAckSent
}

func (e *Engine) pollAckSent(now time.Time, uart hal.UartDev) {
	e.fill(uart)
	msg, n, err := DecodeMessage(e.rx)
	if err == ErrShortBuffer {
		if now.After(e.syncDeadline) {
			e.abort(fmt.Errorf("lump: %w: no ack from device", ErrSyncTimeout))
		}
		return
	}
	if err != nil {
		e.abort(err)
		return
	}
	e.rx = e.rx[n:]
	if msg.Header.Type != MsgTypeSys || SysCmd(msg.Header.CmdOrMode) != SysAck {
		e.abort(fmt.Errorf("lump: expected device Sys(Ack), got %#x", msg.Header.Encode()))
		return
	}
	// Both ends switch to the device's declared speed once the ack
	// exchange completes.
	if e.dev.TargetBaud != 0 {
		if err := uart.SetBaud(e.dev.TargetBaud); err != nil {
			e.abort(fmt.Errorf("lump: set target baud: %w", err))
			return
		}
	}
	e.phase = PhaseReady
	e.dev.LastKeepaliveTx = now
	e.dev.LastMsgRx = now
	e.selectMode(uart, e.dev.CurrentMode)
}

// selectMode sends Cmd(ExtMode) + Cmd(Select) to choose mode.
func (e *Engine) selectMode(uart hal.UartDev, mode uint8) {
	low, plus8 := mode7(mode)
	ext := byte(0)
	if plus8 {
		ext = 8
	}
	extMsg, _ := EncodeCmd(CmdExtMode, []byte{ext})
	selMsg, _ := EncodeCmd(CmdSelect, []byte{low})
	if _, err := uart.Send(extMsg); err != nil {
		e.abort(fmt.Errorf("lump: send ext mode: %w", err))
		return
	}
	if _, err := uart.Send(selMsg); err != nil {
		e.abort(fmt.Errorf("lump: send select: %w", err))
		return
	}
	e.dev.CurrentMode = mode
}

// SetMode requests a mode switch on an already-synced link.
func (e *Engine) SetMode(uart hal.UartDev, mode uint8) error {
	if e.phase != PhaseReady {
		return fmt.Errorf("lump: cannot select mode: %w", ErrNotReady)
	}
	e.selectMode(uart, mode)
	if e.phase == PhaseLost {
		return e.lastErr
	}
	return nil
}

// ErrNotReady is returned by operations that require a synced link.
var ErrNotReady = fmt.Errorf("link not ready")

// Write sends a Cmd(Write) message carrying raw mode data, e.g. to reset
// a gyro's angle or combine modes on a Powered Up device.
func (e *Engine) Write(uart hal.UartDev, payload []byte) error {
	if e.phase != PhaseReady {
		return ErrNotReady
	}
	msg, err := EncodeCmd(CmdWrite, payload)
	if err != nil {
		return err
	}
	if _, err := uart.Send(msg); err != nil {
		e.abort(fmt.Errorf("lump: send write: %w", err))
		return err
	}
	return nil
}

func (e *Engine) pollReady(now time.Time, uart hal.UartDev) {
	if now.Sub(e.dev.LastMsgRx) > LinkTimeoutMs*time.Millisecond {
		e.abort(fmt.Errorf("lump: %w", ErrLinkTimeout))
		return
	}
	e.fill(uart)
	for {
		msg, n, err := DecodeMessage(e.rx)
		if err == ErrShortBuffer {
			break
		}
		if err != nil {
			e.abort(err)
			return
		}
		e.rx = e.rx[n:]
		e.dev.LastMsgRx = now
		if msg.Header.Type == MsgTypeData {
			e.dev.StoreData(msg.Header.CmdOrMode, msg.Payload)
		}
	}
	if now.Sub(e.dev.LastKeepaliveTx) >= KeepAlivePeriodMs*time.Millisecond {
		if _, err := uart.Send(EncodeSys(SysNack)); err != nil {
			e.abort(fmt.Errorf("lump: send keepalive: %w", err))
			return
		}
		e.dev.LastKeepaliveTx = now
	}
}

// ErrLinkTimeout is wrapped into the error that aborts a ready engine
// when no message of any type has arrived for LinkTimeoutMs.
var ErrLinkTimeout = fmt.Errorf("link timeout")
