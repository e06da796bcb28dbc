package usecase

import (
	"context"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/service/guard"
	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/queue"
)

// RunFunc is the body of a scheduled job.
type RunFunc func(ctx context.Context) error

// JobRunner wraps job bodies with the run guards, panic recovery and health bookkeeping.
type JobRunner struct {
	local   guard.Guard
	shared  guard.Guard // optional, cross-process
	health  domrepo.HealthStore
	metrics domrepo.Metrics
	l       *logger.Logger
	now     func() time.Time
}

func NewJobRunner(local guard.Guard, shared guard.Guard, health domrepo.HealthStore, metrics domrepo.Metrics, l *logger.Logger) *JobRunner {
	return &JobRunner{local: local, shared: shared, health: health, metrics: metrics, l: l, now: time.Now}
}

// Run executes fn under name unless a guard refuses. It reports whether fn ran.
// Every executed run records JobHealth exactly once; a skipped tick records nothing.
func (r *JobRunner) Run(ctx context.Context, name string, minInterval time.Duration, fn RunFunc) (bool, error) {
	release, ok, err := r.local.Acquire(ctx, name, minInterval)
	if err != nil {
		return false, fmt.Errorf("job %s: local guard: %w", name, err)
	}
	if !ok {
		r.metrics.RecordJobSkipped(name)
		r.l.Debug("job skipped", logger.String("job", name), logger.String("guard", "local"))
		return false, nil
	}
	defer release()

	if r.shared != nil {
		sharedRelease, ok, err := r.shared.Acquire(ctx, name, minInterval)
		switch {
		case err != nil:
			r.metrics.RecordError("job_guard")
			r.l.Warn("shared job guard unavailable, running anyway", logger.String("job", name), logger.Error(err))
		case !ok:
			r.metrics.RecordJobSkipped(name)
			r.l.Debug("job skipped", logger.String("job", name), logger.String("guard", "shared"))
			return false, nil
		default:
			defer sharedRelease()
		}
	}

	start := r.now()
	runErr := r.safeRun(ctx, name, fn)
	elapsed := r.now().Sub(start)

	h := models.JobHealth{JobName: name, LastRun: r.now().UTC(), Status: models.JobStatusSuccess, OK: true}
	if runErr != nil {
		h.Status = models.JobStatusFailed
		h.Error = runErr.Error()
		h.OK = false
		r.l.Error("job failed", logger.String("job", name), logger.Duration("elapsed", elapsed), logger.Error(runErr))
	} else {
		r.l.Info("job finished", logger.String("job", name), logger.Duration("elapsed", elapsed))
	}
	r.metrics.RecordJobRun(name, h.Status, elapsed.Seconds())

	if err := r.health.RecordJobRun(ctx, h); err != nil {
		r.metrics.RecordError("job_health")
		r.l.Error("record job health", logger.String("job", name), logger.Error(err))
	}
	return true, runErr
}

func (r *JobRunner) safeRun(ctx context.Context, name string, fn RunFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.RecordError("job_panic")
			err = fmt.Errorf("job %s panicked: %v", name, p)
		}
	}()
	return fn(ctx)
}

// Job adapts fn into a scheduler job that runs every interval. The guard spacing
// is slightly shorter than the interval so ticker jitter does not drop every other tick.
func (r *JobRunner) Job(name string, interval time.Duration, fn RunFunc) queue.Job {
	spacing := interval - interval/10
	return queue.JobFunc{
		JobName: name,
		Every:   interval,
		Callback: func(ctx context.Context) {
			_, _ = r.Run(ctx, name, spacing, fn)
		},
	}
}
