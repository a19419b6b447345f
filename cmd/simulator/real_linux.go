//go:build linux

package main

import (
	"log/slog"

	"periph.io/x/host/v3"
)

// initRealHardware brings up periph's Linux host drivers before any
// periphgpio backend is constructed, following seedhammer-seedhammer's
// convention of a single host.Init() call at process startup ahead of
// any board-specific pin resolution. Not wired into main's demo flow
// (which always runs the mock-backed walkthrough); a real deployment's
// entrypoint would call this before building its PlatformData tables
// from periphgpio.NewPin/NewAdc and serialuart.Open.
func initRealHardware(logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	logger.Info("periph host drivers initialized")
	return nil
}
