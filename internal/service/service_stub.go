//go:build !windows

// Package service provides a stub implementation for non-Windows platforms.
// On macOS and Linux the probe runs as a foreground process; the Windows
// service wrapper is not needed.
package service

import (
	"context"

	"go.uber.org/zap"
)

// Name is the service name used on Windows.
const Name = "VitalisProbe"

// ProbeService is a pass-through wrapper for non-Windows platforms.
type ProbeService struct {
	logger *zap.Logger
	runFn  func(ctx context.Context)
}

// New creates a stub service wrapper for non-Windows platforms.
func New(logger *zap.Logger, runFn func(ctx context.Context)) *ProbeService {
	return &ProbeService{
		logger: logger,
		runFn:  runFn,
	}
}

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool {
	return false
}

// Run executes the probe directly with a background context.
func (s *ProbeService) Run() error {
	s.runFn(context.Background())
	return nil
}
