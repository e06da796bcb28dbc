package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"ForexPulse/pkg/logger"
)

// Scheduler triggers each registered job on its own ticker, once immediately at start.
// A job never overlaps itself within one process: a tick that arrives during a run is dropped.
type Scheduler struct {
	logger    *logger.Logger
	jobs      map[string]Job
	order     []string
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
}

func NewScheduler(lgr *logger.Logger) *Scheduler {
	return &Scheduler{logger: lgr, jobs: make(map[string]Job)}
}

// RegisterJob adds a job; duplicate names and non-positive intervals are ignored.
func (s *Scheduler) RegisterJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name()]; ok {
		s.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	if job.Interval() <= 0 {
		s.logger.Warn("job has no interval, ignored", logger.String("job", job.Name()))
		return
	}
	s.jobs[job.Name()] = job
	s.order = append(s.order, job.Name())
	s.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.Duration("interval_ms", job.Interval()))
}

// Start launches one loop per job. Loops stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return errors.New("scheduler already running")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range s.order {
		job := s.jobs[name]
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.isRunning = true
	s.logger.Info("scheduler started", logger.Strings("jobs", s.order))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	job.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}

// Stop cancels all loops and waits for in-flight runs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("timeout waiting for running jobs", logger.Error(ctx.Err()))
		return ctx.Err()
	}
}
