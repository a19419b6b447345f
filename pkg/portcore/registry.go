package portcore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pybricks-go/portcore/pkg/portcore/dcm"
	"github.com/pybricks-go/portcore/pkg/portcore/devcat"
	"github.com/pybricks-go/portcore/pkg/portcore/hal"
	"github.com/pybricks-go/portcore/pkg/portcore/i2c"
	"github.com/pybricks-go/portcore/pkg/portcore/lump"
	"github.com/pybricks-go/portcore/pkg/portcore/port"
)

// PortRegistry owns every physical port on a hub, initialized once at
// boot. It drives each port's cooperative step function from a
// background goroutine on a time.Ticker rather than giving each port a
// goroutine of its own.
type PortRegistry struct {
	mu     sync.RWMutex
	ports  map[port.ID]*port.Port
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPortRegistry returns a registry over the given ports, keyed by
// their own ID. logger defaults to slog.Default() when nil.
func NewPortRegistry(ports []*port.Port, logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[port.ID]*port.Port, len(ports))
	for _, p := range ports {
		m[p.ID()] = p
	}
	return &PortRegistry{ports: m, logger: logger}
}

// Port returns the port with the given ID, or ErrNoDev if it does not
// exist on this hub.
func (r *PortRegistry) Port(id port.ID) (*port.Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ports[id]
	if !ok {
		return nil, fmt.Errorf("portcore: port %v: %w", id, ErrNoDev)
	}
	return p, nil
}

// Run starts the background polling goroutine, sampling every port at
// sampleInterval (the DCM sampling cadence) until ctx is canceled or
// Stop is called. Run must be called at most once per registry.
func (r *PortRegistry) Run(ctx context.Context, sampleInterval time.Duration) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.pollLoop(sampleInterval)
}

func (r *PortRegistry) pollLoop(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.RLock()
			for _, p := range r.ports {
				p.Poll(now)
			}
			r.mu.RUnlock()
		}
	}
}

// RunI2C starts a second background goroutine ticking every port's I2C
// SoftMAC channel at tickInterval. On hardware this cadence comes from
// a timer interrupt at four times the bus rate; a Go time.Ticker cannot
// reach microsecond-scale periods reliably, so the host simulator runs
// the bus at whatever rate tickInterval specifies instead of pretending
// to hit the real frequency.
func (r *PortRegistry) RunI2C(ctx context.Context, tickInterval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.mu.RLock()
				for _, p := range r.ports {
					p.TickI2C()
				}
				r.mu.RUnlock()
			}
		}
	}()
}

// Stop cancels the background goroutines and waits for them to exit.
func (r *PortRegistry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// SetMode requests a mode transition on one port.
func (r *PortRegistry) SetMode(id port.ID, mode port.Mode, now time.Time) error {
	p, err := r.Port(id)
	if err != nil {
		return err
	}
	return p.SetMode(mode, now)
}

// GetAngle reads a port's relative position.
func (r *PortRegistry) GetAngle(id port.ID) (port.Angle, error) {
	p, err := r.Port(id)
	if err != nil {
		return port.Angle{}, err
	}
	return p.GetAngle()
}

// GetAbsAngle reads a port's absolute position.
func (r *PortRegistry) GetAbsAngle(id port.ID) (port.Angle, error) {
	p, err := r.Port(id)
	if err != nil {
		return port.Angle{}, err
	}
	return p.GetAbsAngle()
}

// GetDCMotor returns the motor driver handle for a connected passive
// device matching expect.
func (r *PortRegistry) GetDCMotor(id port.ID, expect devcat.DeviceCategory) (hal.MotorDrv, error) {
	p, err := r.Port(id)
	if err != nil {
		return nil, err
	}
	return p.GetDCMotor(expect)
}

// GetServo returns the quadrature counter handle for a connected passive
// motor asserting type want.
func (r *PortRegistry) GetServo(id port.ID, want hal.TypeID) (hal.CounterDrv, error) {
	p, err := r.Port(id)
	if err != nil {
		return nil, err
	}
	return p.GetServo(want)
}

// GetAnalogValue reads a passive device's instantaneous analog reading.
func (r *PortRegistry) GetAnalogValue(id port.ID, expect devcat.DeviceCategory, active bool) (uint32, error) {
	p, err := r.Port(id)
	if err != nil {
		return 0, err
	}
	return p.GetAnalogValue(expect, active)
}

// GetAnalogRgba reads a passive color device's four-channel reading.
func (r *PortRegistry) GetAnalogRgba(id port.ID, expect devcat.DeviceCategory) (dcm.Rgba, error) {
	p, err := r.Port(id)
	if err != nil {
		return dcm.Rgba{}, err
	}
	return p.GetAnalogRgba(expect)
}

// SetPower sets a port's H-bridge drive policy.
func (r *PortRegistry) SetPower(id port.ID, policy port.PowerPolicy) error {
	p, err := r.Port(id)
	if err != nil {
		return err
	}
	return p.SetPower(policy)
}

// I2CChannel returns a connected NxtI2c device's SoftMAC channel.
func (r *PortRegistry) I2CChannel(id port.ID) (*i2c.Channel, error) {
	p, err := r.Port(id)
	if err != nil {
		return nil, err
	}
	return p.I2CChannel()
}

// LumpEngine returns a synced port's LUMP engine, for mode-select and
// write operations.
func (r *PortRegistry) LumpEngine(id port.ID) (*lump.Engine, error) {
	p, err := r.Port(id)
	if err != nil {
		return nil, err
	}
	return p.LumpEngine()
}

// StopUserActions halts every port's motor actuation and, if reset,
// also places every port back in ModeNone, dropping any synced device
// state and powering down sensors.
func (r *PortRegistry) StopUserActions(reset bool, now time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.ports {
		p.StopUserActions(reset, now)
	}
}
