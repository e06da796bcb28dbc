package queue

import (
	"context"
	"time"
)

// Job is a periodic unit of work.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Interval is the period between triggers.
	Interval() time.Duration

	// Run executes one trigger. Errors are reported by the job itself.
	Run(ctx context.Context)
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName  string
	Every    time.Duration
	Callback func(ctx context.Context)
}

func (j JobFunc) Name() string            { return j.JobName }
func (j JobFunc) Interval() time.Duration { return j.Every }
func (j JobFunc) Run(ctx context.Context) { j.Callback(ctx) }
