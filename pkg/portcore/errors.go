// Package portcore is the top-level package: the PortRegistry that owns
// every physical port on a hub, plus the PortError enum re-exported
// here so callers importing this package never need to reach into hal
// directly.
package portcore

import "github.com/pybricks-go/portcore/pkg/portcore/hal"

// PortError is hal.PortError, re-exported for callers of this package's
// public API.
type PortError = hal.PortError

const (
	ErrOk           = hal.ErrOk
	ErrNoDev        = hal.ErrNoDev
	ErrAgain        = hal.ErrAgain
	ErrNotSupported = hal.ErrNotSupported
	ErrInvalidOp    = hal.ErrInvalidOp
	ErrInvalidArg   = hal.ErrInvalidArg
	ErrTimedOut     = hal.ErrTimedOut
	ErrIo           = hal.ErrIo
)

// AsPortError unwraps err to a PortError, defaulting to ErrIo for any
// error this core did not itself produce.
func AsPortError(err error) PortError {
	return hal.AsPortError(err)
}
