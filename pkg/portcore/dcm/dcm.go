// Package dcm implements the Device Connection Manager: the pin-state
// classifier and its connect/disconnect hysteresis, plus the NXT Light
// and NXT Color passive bit-bang protocols that run once a category has
// settled. It has no knowledge of LUMP, I2C, or ports — the port process
// composes it with those.
package dcm

import "github.com/pybricks-go/portcore/pkg/portcore/devcat"

// Sampling cadence and hysteresis window sizes. Connection requires 20
// consecutive agreeing samples at 10ms; disconnection 5 consecutive
// released samples.
const (
	SampleMs         = 10
	SteadyStateTicks = 20
	DisconnectTicks  = 5
)

// State is the per-port classifier: a connect-hysteresis counter plus the
// settled category, once connected.
type State struct {
	count     int
	Connected bool
	Category  devcat.DeviceCategory
}

// NewState returns a classifier ready to scan for a first connection.
func NewState() *State {
	return &State{Category: devcat.None}
}

// Scan advances the connect-detection hysteresis by one sample taken at
// SampleMs cadence. It returns true once a non-resetting category has been
// observed for SteadyStateTicks consecutive samples, at which point
// Connected latches true and Category holds the settled value. Any sample
// that disagrees with the running category, or that reads None, resets
// the counter: any flip restarts the count, and None never counts
// towards a connection.
func (s *State) Scan(pins PinState) bool {
	if s.Connected {
		return true
	}
	cat := Classify(pins)
	if cat != s.Category || cat == devcat.None {
		s.count = 0
		s.Category = cat
	}
	s.count++
	if s.count >= SteadyStateTicks {
		s.Connected = true
		s.count = 0 // counter is reused for disconnect detection
		return true
	}
	return false
}

// WatchDisconnect advances the disconnect-detection hysteresis given the
// current level of the settled category's release pin (see
// devcat.DeviceCategory.ReleasePin). It returns true once the release pin
// has read high for DisconnectTicks consecutive samples, at which point
// the caller should call Reset.
func (s *State) WatchDisconnect(releasePinHigh bool) bool {
	if !releasePinHigh {
		s.count = 0
		return false
	}
	s.count++
	return s.count >= DisconnectTicks
}

// Reset clears the classifier back to its pre-scan state, ready to detect
// the next connection.
func (s *State) Reset() {
	s.count = 0
	s.Connected = false
	s.Category = devcat.None
}

// Count exposes the raw hysteresis counter, for tests asserting that a
// near-complete window (19 samples of X, then a revert) never latches
// connected.
func (s *State) Count() int {
	return s.count
}
