//go:build windows

// Package service provides Windows Service integration.
// When running as a Windows service, the probe enters the SCM control loop.
// When running from a terminal, it runs in the foreground.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/windows/svc"
)

// Name is the service name registered with the SCM.
const Name = "VitalisProbe"

// stopTimeout bounds how long the SCM waits for the probe to wind down.
const stopTimeout = 20 * time.Second

// ProbeService implements svc.Handler around a blocking run function.
type ProbeService struct {
	logger *zap.Logger
	runFn  func(ctx context.Context)
}

// New creates a new Windows service wrapper. runFn must block until its
// context is cancelled and the probe has stopped.
func New(logger *zap.Logger, runFn func(ctx context.Context)) *ProbeService {
	return &ProbeService{
		logger: logger,
		runFn:  runFn,
	}
}

// IsWindowsService checks if the process is running as a Windows service.
func IsWindowsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Run starts the Windows service control loop.
func (s *ProbeService) Run() error {
	return svc.Run(Name, s)
}

// Execute implements svc.Handler. A stop or shutdown request cancels the run
// context and waits for runFn to return.
func (s *ProbeService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runFn(ctx)
	}()

	changes <- svc.Status{
		State:   svc.Running,
		Accepts: svc.AcceptStop | svc.AcceptShutdown,
	}
	s.logger.Info("Windows service started")

	for {
		select {
		case <-done:
			s.logger.Warn("Probe exited without a stop request")
			changes <- svc.Status{State: svc.StopPending}
			return false, 1
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				s.logger.Info("Windows service stopping")
				changes <- svc.Status{State: svc.StopPending, WaitHint: uint32(stopTimeout / time.Millisecond)}
				cancel()
				select {
				case <-done:
				case <-time.After(stopTimeout):
					s.logger.Warn("Probe did not stop in time", zap.Duration("timeout", stopTimeout))
				}
				return false, 0
			default:
				s.logger.Warn("Unexpected service control request",
					zap.Uint32("cmd", uint32(c.Cmd)))
			}
		}
	}
}
