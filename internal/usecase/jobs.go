package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/queue"
)

// Job names, also used as JobHealth keys and guard keys.
const (
	JobPrices  = "prices"
	JobNews    = "news"
	JobMacro   = "macro"
	JobPredict = "predict"
)

// JobIntervals sets the poll period of each scheduled job.
type JobIntervals struct {
	Prices  time.Duration
	News    time.Duration
	Macro   time.Duration
	Predict time.Duration
}

// ScheduledJobs builds the periodic jobs of the serve command.
func ScheduledJobs(r *JobRunner, ing *IngestionUseCase, pred *PredictorUseCase, instruments []string, iv JobIntervals, l *logger.Logger) []queue.Job {
	return []queue.Job{
		r.Job(JobPrices, iv.Prices, func(ctx context.Context) error {
			_, err := ing.IngestPrices(ctx)
			return err
		}),
		r.Job(JobNews, iv.News, func(ctx context.Context) error {
			_, err := ing.IngestNews(ctx)
			return err
		}),
		r.Job(JobMacro, iv.Macro, func(ctx context.Context) error {
			_, err := ing.IngestMacro(ctx)
			return err
		}),
		r.Job(JobPredict, iv.Predict, func(ctx context.Context) error {
			return PredictAll(ctx, pred, instruments, l)
		}),
	}
}

// PredictAll runs inference for every instrument and joins the failures.
// Non-ok statuses are not failures.
func PredictAll(ctx context.Context, pred *PredictorUseCase, instruments []string, l *logger.Logger) error {
	var errs []error
	for _, sym := range instruments {
		res, err := pred.Predict(ctx, sym)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		if res.Status != PredictStatusOK {
			l.Info("no signal", logger.String("instrument", sym), logger.String("status", res.Status))
		}
	}
	return errors.Join(errs...)
}
