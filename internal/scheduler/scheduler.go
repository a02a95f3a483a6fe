// Package scheduler implements the reporting loop. It captures static info
// once, replays the backlog left by a previous run, then collects, assembles
// and delivers a report immediately and on every tick of the report interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/cache"
	"github.com/vitalis-app/probe/internal/models"
	"github.com/vitalis-app/probe/internal/payload"
	"github.com/vitalis-app/probe/internal/throughput"
)

// ErrAlreadyRunning is returned by Start when the reporter is not stopped.
var ErrAlreadyRunning = errors.New("reporter already running")

// State is the reporter lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Source produces metric snapshots.
type Source interface {
	CollectStatic(ctx context.Context) (models.StaticInfo, error)
	CollectDynamic(ctx context.Context) (models.DynamicSample, error)
}

// Deliverer sends reports. Deliver is used for fresh reports and keeps the
// backlog in step; Send is a bare attempt used to replay the backlog.
type Deliverer interface {
	Deliver(ctx context.Context, p models.ReportPayload) error
	Send(ctx context.Context, p models.ReportPayload) error
}

// Backlog replays reports left undelivered.
type Backlog interface {
	RetryAll(ctx context.Context, deliver cache.DeliverFunc)
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock overrides the clock used for ticks and sample timestamps.
func WithClock(c Clock) Option {
	return func(r *Reporter) { r.clock = c }
}

// Reporter is the timer-driven orchestrator. Cycles run one at a time on a
// single goroutine; ticks that fire while a cycle is running are coalesced
// into at most one pending tick.
type Reporter struct {
	source    Source
	assembler *payload.Assembler
	tracker   *throughput.Tracker
	sender    Deliverer
	backlog   Backlog
	interval  time.Duration
	logger    *zap.Logger
	clock     Clock

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// New creates a stopped Reporter.
func New(source Source, assembler *payload.Assembler, sender Deliverer, backlog Backlog,
	interval time.Duration, logger *zap.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		source:    source,
		assembler: assembler,
		tracker:   throughput.NewTracker(),
		sender:    sender,
		backlog:   backlog,
		interval:  interval,
		logger:    logger,
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start captures static info, replays the backlog, reports once and then
// keeps reporting on every interval until Stop is called or ctx is done.
// A failure to capture static info is returned and leaves the reporter
// stopped.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Stopped {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.state = Starting
	r.mu.Unlock()

	static, err := r.source.CollectStatic(ctx)
	if err != nil {
		r.setState(Stopped)
		return fmt.Errorf("collect static info: %w", err)
	}
	r.assembler.SetStatic(static)
	r.logger.Info("Captured static info",
		zap.String("cpu", static.CPUModel),
		zap.Int("cores", static.CPUCores),
		zap.String("os", static.OSModel))

	r.backlog.RetryAll(ctx, r.sender.Send)

	stop := make(chan struct{})
	done := make(chan struct{})
	r.mu.Lock()
	r.state = Running
	r.stop = stop
	r.done = done
	r.mu.Unlock()

	r.CollectAndReport(ctx)

	ticker := r.clock.NewTicker(r.interval)
	go r.loop(ctx, ticker, stop, done)

	r.logger.Info("Reporter running", zap.Duration("interval", r.interval))
	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish. Stopping
// a reporter that is not running only logs a warning.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.state != Running || r.stop == nil {
		r.mu.Unlock()
		r.logger.Warn("Reporter is not running, ignoring stop")
		return
	}
	stop, done := r.stop, r.done
	r.stop = nil
	r.mu.Unlock()

	close(stop)
	<-done

	r.setState(Stopped)
	r.logger.Info("Reporter stopped")
}

func (r *Reporter) loop(ctx context.Context, ticker Ticker, stop chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			r.settleCancelled(stop)
			return
		case <-ticker.C():
			r.CollectAndReport(ctx)
		}
	}
}

// CollectAndReport runs one cycle. Failures are logged and never propagate:
// a collection failure skips the cycle, a delivery failure has already
// cached the report.
func (r *Reporter) CollectAndReport(ctx context.Context) {
	sample, err := r.source.CollectDynamic(ctx)
	if err != nil {
		r.logger.Error("Metric collection failed, skipping report", zap.Error(err))
		return
	}

	ts := sample.Timestamp
	if ts.IsZero() {
		ts = r.clock.Now()
		sample.Timestamp = ts
	}
	upload, download := r.tracker.DeriveRates(sample.Network, ts)

	report, err := r.assembler.Build(sample.WithRates(upload, download))
	if err != nil {
		r.logger.Error("Failed to assemble report", zap.Error(err))
		return
	}

	if err := r.sender.Deliver(ctx, report); err != nil {
		r.logger.Warn("Report not delivered, cached for retry", zap.Error(err))
		return
	}

	r.logger.Debug("Report cycle complete",
		zap.Float64("upload_bps", upload),
		zap.Float64("download_bps", download))
}

// settleCancelled marks the reporter stopped after its context ended, unless
// a Stop for the same run is already in progress.
func (r *Reporter) settleCancelled(stop chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != stop {
		return
	}
	r.stop = nil
	r.state = Stopped
	r.logger.Info("Reporter stopped, context cancelled")
}

func (r *Reporter) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
