package mock

import (
	"fmt"

	"github.com/pybricks-go/portcore/pkg/portcore/hal"
)

// Counter is an in-memory hal.CounterDrv, standing in for a passive
// motor's quadrature tachometer.
type Counter struct {
	rotations, mdeg, absMdeg int32
	typeID                   hal.TypeID
	assertErr                error
}

// NewCounter returns a counter reporting typeID to AssertType and zeroed
// angle readings.
func NewCounter(typeID hal.TypeID) *Counter {
	return &Counter{typeID: typeID}
}

// Set updates the angle this counter reports.
func (c *Counter) Set(rotations, mdeg, absMdeg int32) {
	c.rotations, c.mdeg, c.absMdeg = rotations, mdeg, absMdeg
}

func (c *Counter) GetAngle() (int32, int32, error) {
	return c.rotations, c.mdeg, nil
}

func (c *Counter) GetAbsAngle() (int32, error) {
	return c.absMdeg, nil
}

func (c *Counter) AssertType(want hal.TypeID) error {
	if c.assertErr != nil {
		return c.assertErr
	}
	if want != c.typeID {
		return fmt.Errorf("mock: counter type mismatch: want %d got %d", want, c.typeID)
	}
	return nil
}

// FailAssert makes every subsequent AssertType call return err.
func (c *Counter) FailAssert(err error) {
	c.assertErr = err
}
