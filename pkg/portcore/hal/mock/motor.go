package mock

// Motor is an in-memory hal.MotorDrv recording the last duty commanded,
// so tests can assert set_power reached the H-bridge.
type Motor struct {
	duty       int32
	coasting   bool
	acquireErr error
}

// NewMotor returns a coasting motor driver.
func NewMotor() *Motor {
	return &Motor{coasting: true}
}

func (m *Motor) Coast() {
	m.coasting = true
	m.duty = 0
}

func (m *Motor) SetDuty(duty int32) error {
	if m.acquireErr != nil {
		return m.acquireErr
	}
	m.coasting = false
	m.duty = duty
	return nil
}

// Duty returns the last duty SetDuty was called with, or 0 while coasting.
func (m *Motor) Duty() int32 {
	return m.duty
}

// Coasting reports whether Coast is the most recent call.
func (m *Motor) Coasting() bool {
	return m.coasting
}

// FailAcquire makes every subsequent SetDuty call return err, simulating a
// motor driver acquisition failure the port process surfaces to its
// caller without dying itself.
func (m *Motor) FailAcquire(err error) {
	m.acquireErr = err
}
