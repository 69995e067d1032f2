// Package scheduler runs the periodic scan and dispatch jobs on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron engine. Each invocation gets its own timeout, panics are
// recovered and an invocation still running when the next tick fires is skipped.
type Scheduler struct {
	engine  *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	mu      sync.Mutex
	jobs    map[string]Job
}

// New creates a Scheduler evaluating specs in location
func New(logger *zap.Logger, location *time.Location, timeout time.Duration) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		engine: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]Job),
	}
}

// LoadLocation resolves a timezone name, defaulting to UTC
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", name, err)
	}
	return loc, nil
}

// Add registers a job. The spec uses the standard five-field cron format.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job name and run function are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	if _, err := s.engine.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("could not add %s job: %w", job.Name, err)
	}
	s.jobs[job.Name] = job

	s.logger.Info("scheduled job", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

// Trigger runs a registered job immediately in the caller's goroutine
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(job)
}

// Start starts the cron engine
func (s *Scheduler) Start() {
	s.engine.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.engine.Entries())))
}

// Stop stops scheduling and waits for running jobs or ctx, whichever comes first
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping scheduler")
	done := s.engine.Stop()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) execute(job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("job started", zap.String("job", job.Name))

	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	s.logger.Info("job completed", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
