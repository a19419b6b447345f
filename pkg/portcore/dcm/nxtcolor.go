package dcm

import "github.com/pybricks-go/portcore/pkg/portcore/hal"

// NXT Color Sensor steady-state phase settle times: 200us for A/R/B,
// 2ms for G (green needs the sensor's slowest LED to stabilize). Timer
// ticks here are 1ms granularity, so the sub-millisecond settle windows
// round up to one tick; only G's longer window is distinguishable.
const (
	colorSettleShortMs = 1
	colorSettleGreenMs = 2
)

// calibrationSize is the sensor's full calibration block:
// calibration[3][4] uint32 LE + threshold_high + threshold_low + crc,
// all uint16 LE = 48 + 2 + 2 + 2 = 54 bytes.
const calibrationSize = 54

// Calibration holds the NXT Color Sensor's factory calibration block.
type Calibration struct {
	Table        [3][4]uint32
	ThresholdHigh uint16
	ThresholdLow  uint16
	Crc           uint16
}

func decodeCalibration(buf []byte) Calibration {
	var c Calibration
	le32 := func(o int) uint32 {
		return uint32(buf[o]) | uint32(buf[o+1])<<8 | uint32(buf[o+2])<<16 | uint32(buf[o+3])<<24
	}
	le16 := func(o int) uint16 {
		return uint16(buf[o]) | uint16(buf[o+1])<<8
	}
	o := 0
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			c.Table[row][col] = le32(o)
			o += 4
		}
	}
	c.ThresholdHigh = le16(o)
	o += 2
	c.ThresholdLow = le16(o)
	o += 2
	c.Crc = le16(o)
	return c
}

// colorPhase enumerates the NXT Color Sensor init/steady-state sequence.
type colorPhase int

const (
	colorPhaseTxReset colorPhase = iota
	colorPhaseResetSettle
	colorPhaseTxMode
	colorPhaseRxCalib
	colorPhaseSteadyA
	colorPhaseSettleA
	colorPhaseSteadyR
	colorPhaseSettleR
	colorPhaseSteadyG
	colorPhaseSettleG
	colorPhaseSteadyB
	colorPhaseSettleB
)

// NxtColorLoop runs the NXT Color Sensor reset/calibrate/steady-state
// protocol.
type NxtColorLoop struct {
	phase colorPhase
	timer hal.Timer

	bit      int // 0..7 within the byte currently being sent/received
	clockHi  bool
	txByte   byte
	rxByte   byte
	calibBuf [calibrationSize]byte
	calibIdx int

	Calib Calibration
	Ready bool
	raw   Rgba // A, R, G, B in mV, sampled from P6
}

// NewNxtColorLoop constructs a loop using the given timer for bit and
// settle timing.
func NewNxtColorLoop(timer hal.Timer) *NxtColorLoop {
	return &NxtColorLoop{timer: timer, txByte: 0xFF}
}

// stepTxBit drives one clock half-phase of the byte in txByte. Returns
// true once all 8 bits have been sent.
func (l *NxtColorLoop) stepTxBit(p5, p6 hal.GpioPin) bool {
	if !l.clockHi {
		if (l.txByte>>uint(l.bit))&1 != 0 {
			p6.OutHigh()
		} else {
			p6.OutLow()
		}
		p5.OutHigh()
		l.timer.SetMs(colorSettleShortMs)
		l.clockHi = true
		return false
	}
	if !l.timer.IsExpired() {
		return false
	}
	p5.OutLow()
	l.timer.SetMs(colorSettleShortMs)
	l.clockHi = false
	l.bit++
	if l.bit >= 8 {
		l.bit = 0
		return true
	}
	return false
}

// stepRxBit samples one clock half-phase into rxByte. Returns true once
// all 8 bits have been received.
func (l *NxtColorLoop) stepRxBit(p5, p6 hal.GpioPin) bool {
	if !l.clockHi {
		p5.OutHigh()
		l.timer.SetMs(colorSettleShortMs)
		l.clockHi = true
		return false
	}
	if !l.timer.IsExpired() {
		return false
	}
	if p6.Input() {
		l.rxByte |= 1 << uint(l.bit)
	}
	p5.OutLow()
	l.timer.SetMs(colorSettleShortMs)
	l.clockHi = false
	l.bit++
	if l.bit >= 8 {
		l.bit = 0
		return true
	}
	return false
}

// Step advances the loop by one tick. Disconnect detection is the
// caller's job; this loop runs until the caller stops driving it.
func (l *NxtColorLoop) Step(p5, p6 hal.GpioPin) {
	switch l.phase {
	case colorPhaseTxReset:
		l.txByte = 0xFF
		if l.stepTxBit(p5, p6) {
			l.timer.SetMs(100)
			l.phase = colorPhaseResetSettle
		}
	case colorPhaseResetSettle:
		if l.timer.IsExpired() {
			l.txByte = 13
			l.phase = colorPhaseTxMode
		}
	case colorPhaseTxMode:
		if l.stepTxBit(p5, p6) {
			l.calibIdx = 0
			l.rxByte = 0
			l.phase = colorPhaseRxCalib
		}
	case colorPhaseRxCalib:
		if l.stepRxBit(p5, p6) {
			l.calibBuf[l.calibIdx] = l.rxByte
			l.rxByte = 0
			l.calibIdx++
			if l.calibIdx >= calibrationSize {
				l.Calib = decodeCalibration(l.calibBuf[:])
				l.Ready = true
				l.phase = colorPhaseSteadyA
			}
		}
	case colorPhaseSteadyA:
		p5.OutLow()
		l.timer.SetMs(colorSettleShortMs)
		l.phase = colorPhaseSettleA
	case colorPhaseSettleA:
		if l.timer.IsExpired() {
			l.phase = colorPhaseSteadyR
		}
	case colorPhaseSteadyR:
		p5.OutHigh()
		l.timer.SetMs(colorSettleShortMs)
		l.phase = colorPhaseSettleR
	case colorPhaseSettleR:
		if l.timer.IsExpired() {
			l.phase = colorPhaseSteadyG
		}
	case colorPhaseSteadyG:
		p5.OutLow()
		l.timer.SetMs(colorSettleGreenMs)
		l.phase = colorPhaseSettleG
	case colorPhaseSettleG:
		if l.timer.IsExpired() {
			l.phase = colorPhaseSteadyB
		}
	case colorPhaseSteadyB:
		p5.OutHigh()
		l.timer.SetMs(colorSettleShortMs)
		l.phase = colorPhaseSettleB
	case colorPhaseSettleB:
		if l.timer.IsExpired() {
			l.phase = colorPhaseSteadyA
		}
	}
}

// SampleP6 records a P6 ADC reading for the phase that just settled.
// The port process calls it after every Step; it stores a reading only
// when Step has just left a settle phase (the loop then sits in the
// following Steady phase until the next tick), so the reading is taken
// right after the settle window while the LED phase still holds.
func (l *NxtColorLoop) SampleP6(adc hal.AdcCh) {
	mv := AdcToMillivolts(adc.Read10Bit())
	switch l.phase {
	case colorPhaseSteadyR: // just finished settling A
		l.raw.A = mv
	case colorPhaseSteadyG: // just finished settling R
		l.raw.R = mv
	case colorPhaseSteadyB: // just finished settling G
		l.raw.G = mv
	case colorPhaseSteadyA: // just finished settling B (wrapped around)
		l.raw.B = mv
	}
}

// Raw returns the most recent uncalibrated A/R/G/B readings in mV.
func (l *NxtColorLoop) Raw() Rgba {
	return l.raw
}

// scaleRgb scales one channel against ambient: clamp((value-ambient) *
// scale / 57000, 0, 1000), or 0 when value <= ambient.
func scaleRgb(value, ambient, scale uint32) uint32 {
	if value <= ambient {
		return 0
	}
	return clampTo1000(int64(value-ambient) * int64(scale) / 57000)
}

// Calibrated applies the sensor's factory ambient-bucketed calibration,
// producing the same 0..1000 outputs as the NXT firmware.
func (l *NxtColorLoop) Calibrated() Rgba {
	if !l.Ready {
		return Rgba{}
	}
	const (
		rowHighAmbient = 0
		rowMediumAmbient = 1
		rowLowAmbient = 2
	)
	row := rowHighAmbient
	lowMv := AdcToMillivolts(l.Calib.ThresholdLow)
	highMv := AdcToMillivolts(l.Calib.ThresholdHigh)
	if l.raw.A < lowMv {
		row = rowLowAmbient
	} else if l.raw.A < highMv {
		row = rowMediumAmbient
	}
	cal := l.Calib.Table[row]
	return Rgba{
		R: scaleRgb(l.raw.R, l.raw.A, cal[0]),
		G: scaleRgb(l.raw.G, l.raw.A, cal[1]),
		B: scaleRgb(l.raw.B, l.raw.A, cal[2]),
		A: scaleRgb(l.raw.A, 220, cal[3]/4),
	}
}
