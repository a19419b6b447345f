package port

import (
	"log/slog"
	"time"

	"github.com/pybricks-go/portcore/pkg/portcore/dcm"
	"github.com/pybricks-go/portcore/pkg/portcore/devcat"
	"github.com/pybricks-go/portcore/pkg/portcore/hal"
	"github.com/pybricks-go/portcore/pkg/portcore/i2c"
	"github.com/pybricks-go/portcore/pkg/portcore/lump"
)

// procState is the port process's own state, one level below Mode: it
// tracks where in the DCM-scan / passive-loop / LUMP-sync / LUMP-active
// sequence a LegoDcm-mode port currently is. This, plus Engine.Phase and
// the dcm.State hysteresis counter, keeps the whole process an explicit
// enum a step function switches on, never a suspended call stack.
type procState int

const (
	procIdle procState = iota
	procDcmScan
	procDcmPassiveLight
	procDcmPassiveColor
	procDcmPassiveOther
	procDcmI2c
	procLumpActive
)

// Port owns one physical external connector's pin mux, UART assignment,
// and (while its power policy is non-None) H-bridge, for its lifetime.
type Port struct {
	data   *PlatformData
	logger *slog.Logger

	mode  Mode
	proc  procState
	power PowerPolicy

	dcmState *dcm.State
	light    *dcm.NxtLightLoop
	color    *dcm.NxtColorLoop
	i2cChan  *i2c.Channel
	lumpEng  *lump.Engine
	timer    hal.Timer
}

// New constructs a Port over data, wiring every optional child
// capabilities allow. A port whose only capability is
// quadrature passive (BOOST/Technic A·B, NXT A·B·C) starts directly in
// ModeQuadraturePassive rather than ModeNone.
func New(data *PlatformData, timer hal.Timer, logger *slog.Logger) *Port {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Port{
		data:     data,
		logger:   logger,
		dcmState: dcm.NewState(),
		timer:    timer,
	}
	if data.Caps.Has(CapLegoDcm) {
		p.i2cChan = i2c.NewChannel()
		p.lumpEng = lump.NewEngine(logger)
	}
	if data.Caps.Has(CapQuadraturePassive) && !data.Caps.Has(CapLegoDcm) {
		p.mode = ModeQuadraturePassive
	} else {
		p.mode = ModeNone
	}
	return p
}

// ID returns the port's identity.
func (p *Port) ID() ID { return p.data.ID }

// Mode returns the port's current pin-mux owner.
func (p *Port) Mode() Mode { return p.mode }

// Category returns the DCM's currently settled category, or devcat.None
// if the port is not in ModeLegoDcm or nothing has settled yet.
func (p *Port) Category() devcat.DeviceCategory {
	if p.mode != ModeLegoDcm {
		return devcat.None
	}
	return p.dcmState.Category
}

// SetMode resets the port process and selects a new main thread body.
// ModeLegoDcm returns hal.ErrAgain on first entry so callers can poll
// until the DCM settles or a LUMP device syncs.
func (p *Port) SetMode(mode Mode, now time.Time) error {
	switch mode {
	case ModeQuadraturePassive:
		if !p.data.Caps.Has(CapQuadraturePassive) {
			return hal.ErrNotSupported
		}
	case ModeLegoDcm:
		if !p.data.Caps.Has(CapLegoDcm) {
			return hal.ErrNotSupported
		}
	case ModeUart:
		if !p.data.Caps.Has(CapUart) {
			return hal.ErrNotSupported
		}
	case ModeNone:
	default:
		return hal.ErrInvalidArg
	}

	// Transitioning releases DCM/LUMP and drops power before handing the
	// port over to its new owner.
	p.releasePins()
	p.applyPower(PowerNone)
	p.dcmState.Reset()
	p.light = nil
	p.color = nil
	if p.lumpEng != nil {
		p.lumpEng.Reset()
	}

	p.mode = mode
	if mode == ModeLegoDcm {
		p.proc = procDcmScan
		p.Poll(now)
		return hal.ErrAgain
	}
	p.proc = procIdle
	return nil
}

// Poll drives one cooperative step. It never blocks.
func (p *Port) Poll(now time.Time) {
	if p.mode != ModeLegoDcm {
		return
	}
	switch p.proc {
	case procDcmScan:
		p.pollDcmScan()
	case procDcmPassiveLight:
		p.pollPassiveLight()
	case procDcmPassiveColor:
		p.pollPassiveColor()
	case procDcmPassiveOther:
		p.pollPassiveOther()
	case procDcmI2c:
		p.pollI2c()
	case procLumpActive:
		p.pollLump(now)
	}
}

func bucketAdc1(mv uint32) dcm.PinState {
	switch {
	case mv < 100:
		return dcm.Adc1_0to100
	case mv < 3100:
		return dcm.Adc1_100to3100
	case mv < 4800:
		return dcm.Adc1_3100to4800
	default:
		return dcm.Adc1_4800to5000
	}
}

func (p *Port) samplePins() dcm.PinState {
	mv := dcm.AdcToMillivolts(p.data.AdcP1.Read10Bit())
	pins := bucketAdc1(mv)
	if p.data.GpioP2.Input() {
		pins |= dcm.P2High
	}
	if p.data.GpioP5.Input() {
		pins |= dcm.P5High
	}
	if p.data.GpioP6.Input() {
		pins |= dcm.P6High
	}
	return pins
}

func (p *Port) releasePinHigh(cat devcat.DeviceCategory) bool {
	switch cat.ReleasePin() {
	case devcat.ReleasePinP2:
		return p.data.GpioP2.Input()
	case devcat.ReleasePinP5:
		return p.data.GpioP5.Input()
	default:
		return false
	}
}

func (p *Port) releasePins() {
	p.data.GpioP5.Alt(hal.PinModeGpio)
	p.data.GpioP6.Alt(hal.PinModeGpio)
}

func (p *Port) pollDcmScan() {
	if !p.dcmState.Scan(p.samplePins()) {
		return
	}
	cat := p.dcmState.Category
	p.logger.Info("dcm: category settled", "port", p.data.ID, "category", cat)
	switch cat {
	case devcat.Lump:
		p.enterLump()
	case devcat.NxtLight:
		p.light = dcm.NewNxtLightLoop(p.timer)
		p.proc = procDcmPassiveLight
	case devcat.NxtColor:
		p.color = dcm.NewNxtColorLoop(p.timer)
		p.proc = procDcmPassiveColor
	case devcat.NxtI2c:
		p.i2cChan.Register(0x01, true)
		p.proc = procDcmI2c
	default:
		p.proc = procDcmPassiveOther
	}
}

func (p *Port) pollPassiveLight() {
	if p.dcmState.WatchDisconnect(p.releasePinHigh(devcat.NxtLight)) {
		p.backToScan()
		return
	}
	p.light.Step(p.data.GpioP5, p.data.AdcP1)
}

func (p *Port) pollPassiveColor() {
	if p.dcmState.WatchDisconnect(p.releasePinHigh(devcat.NxtColor)) {
		p.backToScan()
		return
	}
	p.color.Step(p.data.GpioP5, p.data.GpioP6)
	p.color.SampleP6(p.data.AdcP6)
}

func (p *Port) pollPassiveOther() {
	if p.dcmState.WatchDisconnect(p.releasePinHigh(p.dcmState.Category)) {
		p.backToScan()
	}
}

func (p *Port) pollI2c() {
	if p.dcmState.WatchDisconnect(p.releasePinHigh(devcat.NxtI2c)) {
		p.backToScan()
	}
}

// TickI2C advances this port's I2C SoftMAC channel by one quarter-bit
// period. It must be driven by the registry's dedicated high-rate
// ticker whenever the port is connected to
// an NxtI2c device — never from the 10ms DCM sampling cadence.
func (p *Port) TickI2C() {
	if p.mode == ModeLegoDcm && p.proc == procDcmI2c {
		p.i2cChan.Tick(p.data.GpioP5, p.data.GpioP6)
	}
}

// I2CChannel returns the port's I2C SoftMAC channel, ready for
// StartTransaction, iff an NxtI2c device is currently attached.
func (p *Port) I2CChannel() (*i2c.Channel, error) {
	if p.mode != ModeLegoDcm || p.proc != procDcmI2c {
		return nil, hal.ErrInvalidOp
	}
	return p.i2cChan, nil
}

func (p *Port) backToScan() {
	p.releasePins()
	p.applyPower(PowerNone)
	p.dcmState.Reset()
	p.light = nil
	p.color = nil
	p.proc = procDcmScan
}

func (p *Port) enterLump() {
	p.data.GpioP5.Alt(hal.PinModeUart)
	p.data.GpioP6.Alt(hal.PinModeUart)
	p.applyPower(PowerNone)
	p.lumpEng.Reset()
	p.proc = procLumpActive
}

func (p *Port) pollLump(now time.Time) {
	p.lumpEng.Poll(now, p.data.Uart)
	switch p.lumpEng.Phase() {
	case lump.PhaseLost:
		p.backToScan()
	case lump.PhaseReady:
		want := p.lumpEng.Device().Power
		if want != p.power {
			p.applyPower(want)
		}
	}
}

// applyPower drives the H-bridge per policy. A motor driver acquisition
// failure is surfaced to the caller without killing the port process;
// the port simply continues with PowerNone.
func (p *Port) applyPower(policy PowerPolicy) error {
	if p.data.Motor == nil {
		p.power = PowerNone
		if policy != PowerNone {
			return hal.ErrNoDev
		}
		return nil
	}
	var err error
	switch policy {
	case PowerBatteryToP1Pos:
		err = p.data.Motor.SetDuty(hal.MaxDuty)
	case PowerBatteryToP2Pos:
		err = p.data.Motor.SetDuty(-hal.MaxDuty)
	default:
		p.data.Motor.Coast()
	}
	if err != nil {
		p.logger.Warn("port: motor driver acquisition failed", "port", p.data.ID, "error", err)
		p.power = PowerNone
		return err
	}
	p.power = policy
	return nil
}

// SetPower sets the H-bridge to full +duty / full -duty / coast.
func (p *Port) SetPower(policy PowerPolicy) error {
	return p.applyPower(policy)
}

// Power returns the port's current power policy.
func (p *Port) Power() PowerPolicy { return p.power }

// GetAngle reads relative position: from LUMP if a synced link is
// active, else from the counter driver, else hal.ErrNoDev.
func (p *Port) GetAngle() (Angle, error) {
	if p.mode == ModeLegoDcm && p.proc == procLumpActive && p.lumpEng.Phase() == lump.PhaseReady {
		return p.lumpMotorAngle()
	}
	if p.data.Counter != nil {
		rot, mdeg, err := p.data.Counter.GetAngle()
		if err != nil {
			return Angle{}, err
		}
		return Angle{Rotations: rot, Millidegrees: mdeg}, nil
	}
	return Angle{}, hal.ErrNoDev
}

// GetAbsAngle reads absolute position with the same source precedence as
// GetAngle; hal.ErrNotSupported if the active source can't provide one.
func (p *Port) GetAbsAngle() (Angle, error) {
	if p.mode == ModeLegoDcm && p.proc == procLumpActive && p.lumpEng.Phase() == lump.PhaseReady {
		return p.lumpMotorAbsAngle()
	}
	if p.data.Counter != nil {
		mdeg, err := p.data.Counter.GetAbsAngle()
		if err != nil {
			return Angle{}, err
		}
		return Angle{Millidegrees: mdeg}, nil
	}
	return Angle{}, hal.ErrNoDev
}

// lumpModeAbsolutePos/RelativePos are the conventional mode indices LEGO
// motors report position on: mode 2 for relative angle, mode 3 for
// absolute angle, per the Powered Up motor mode table.
const (
	lumpModeRelativePos = 2
	lumpModeAbsolutePos = 3
)

func (p *Port) lumpMotorAngle() (Angle, error) {
	data := p.lumpEng.Device().LatestData(lumpModeRelativePos)
	if len(data) < 4 {
		return Angle{}, hal.ErrNoDev
	}
	mdeg := int32(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
	return Angle{Rotations: mdeg / 360000, Millidegrees: mdeg % 360000}, nil
}

func (p *Port) lumpMotorAbsAngle() (Angle, error) {
	data := p.lumpEng.Device().LatestData(lumpModeAbsolutePos)
	if len(data) < 4 {
		return Angle{}, hal.ErrNotSupported
	}
	mdeg := int32(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
	return Angle{Millidegrees: mdeg}, nil
}

// GetDCMotor returns the platform's motor driver handle if a passive
// motor's category matches expect (devcat.Any accepts any attached
// category). hal.ErrInvalidOp if the port is not in ModeLegoDcm or has
// no motor driver; hal.ErrNoDev if no category has settled or the
// settled category does not match expect.
func (p *Port) GetDCMotor(expect devcat.DeviceCategory) (hal.MotorDrv, error) {
	if p.mode != ModeLegoDcm || p.data.Motor == nil {
		return nil, hal.ErrInvalidOp
	}
	cat := p.dcmState.Category
	if !p.dcmState.Connected || (expect != devcat.Any && cat != expect) {
		return nil, hal.ErrNoDev
	}
	return p.data.Motor, nil
}

// GetServo returns the quadrature counter driver for a connected passive
// motor, asserting its reported type matches want.
func (p *Port) GetServo(want hal.TypeID) (hal.CounterDrv, error) {
	if p.data.Counter == nil {
		return nil, hal.ErrInvalidOp
	}
	if err := p.data.Counter.AssertType(want); err != nil {
		return nil, hal.ErrNoDev
	}
	return p.data.Counter, nil
}

// GetAnalogValue reads a passive device's instantaneous analog reading.
// For an NXT Light Sensor it returns the raw reflected reading in
// millivolts, or, when active is true, the calibrated reflectance on the
// 0..1000 scale (not millivolts); for other categories it returns P1 in
// millivolts and ignores active. hal.ErrInvalidOp outside ModeLegoDcm.
func (p *Port) GetAnalogValue(expect devcat.DeviceCategory, active bool) (uint32, error) {
	if p.mode != ModeLegoDcm {
		return 0, hal.ErrInvalidOp
	}
	cat := p.dcmState.Category
	if expect != devcat.Any && cat != expect {
		return 0, hal.ErrNoDev
	}
	switch cat {
	case devcat.NxtLight:
		if p.light == nil {
			return 0, hal.ErrAgain
		}
		if active {
			return p.light.Calibrated().R, nil
		}
		return p.light.Raw().R, nil
	default:
		return dcm.AdcToMillivolts(p.data.AdcP1.Read10Bit()), nil
	}
}

// GetAnalogRgba reads a passive color device's four-channel reading.
func (p *Port) GetAnalogRgba(expect devcat.DeviceCategory) (dcm.Rgba, error) {
	if p.mode != ModeLegoDcm {
		return dcm.Rgba{}, hal.ErrInvalidOp
	}
	cat := p.dcmState.Category
	if expect != devcat.Any && cat != expect {
		return dcm.Rgba{}, hal.ErrNoDev
	}
	switch cat {
	case devcat.NxtColor:
		if p.color == nil || !p.color.Ready {
			return dcm.Rgba{}, hal.ErrAgain
		}
		return p.color.Calibrated(), nil
	case devcat.NxtLight:
		if p.light == nil {
			return dcm.Rgba{}, hal.ErrAgain
		}
		return p.light.Calibrated(), nil
	default:
		return dcm.Rgba{}, hal.ErrInvalidOp
	}
}

// GetUartDev delegates the raw port UART to a user API while the port is
// in ModeUart.
func (p *Port) GetUartDev() (hal.UartDev, error) {
	if p.mode != ModeUart {
		return nil, hal.ErrInvalidOp
	}
	return p.data.Uart, nil
}

// LumpEngine exposes the LUMP engine for mode-select/write operations
// and Engine.Device() inspection while a LUMP device is synced.
func (p *Port) LumpEngine() (*lump.Engine, error) {
	if p.mode != ModeLegoDcm || p.proc != procLumpActive {
		return nil, hal.ErrInvalidOp
	}
	return p.lumpEng, nil
}

// StopUserActions halts motor actuation and, if reset, also places the
// port back in ModeNone.
func (p *Port) StopUserActions(reset bool, now time.Time) {
	if p.data.Motor != nil {
		p.data.Motor.Coast()
	}
	if reset {
		p.SetMode(ModeNone, now)
	}
}
