package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/services/aggregator"
	"ForexPulse/internal/usecase"
	"ForexPulse/pkg/config"
	xhttp "ForexPulse/pkg/http"
	pkgkafka "ForexPulse/pkg/kafka"
	applogger "ForexPulse/pkg/logger"
	"ForexPulse/pkg/queue"
)

// App encapsulates the application lifecycle and the use cases the CLI drives directly.
type App struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Store      domrepo.Storage
	Ingestion  *usecase.IngestionUseCase
	Trainer    *usecase.TrainerUseCase
	Predictor  *usecase.PredictorUseCase
	Aggregator *aggregator.Aggregator

	scheduler  *queue.Scheduler
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer // nil when the bar topic is not consumed
}

// Components groups what New needs; DI fills it.
type Components struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Store      domrepo.Storage
	Ingestion  *usecase.IngestionUseCase
	Trainer    *usecase.TrainerUseCase
	Predictor  *usecase.PredictorUseCase
	Aggregator *aggregator.Aggregator
	Scheduler  *queue.Scheduler
	HTTPServer *xhttp.Server
	Consumer   *pkgkafka.Consumer
}

func New(c Components) *App {
	return &App{
		Config:     c.Config,
		Logger:     c.Logger,
		Store:      c.Store,
		Ingestion:  c.Ingestion,
		Trainer:    c.Trainer,
		Predictor:  c.Predictor,
		Aggregator: c.Aggregator,
		scheduler:  c.Scheduler,
		httpServer: c.HTTPServer,
		consumer:   c.Consumer,
	}
}

// Run starts the HTTP server, the scheduler and the optional consumer, then
// blocks until ctx is cancelled or an interrupt arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		return err
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.Logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.Logger.Info("kafka consumer started", applogger.String("topic", a.Config.Kafka.Topics.Bars))
	}
	a.Logger.Info("forexpulse running",
		applogger.String("environment", a.Config.Environment),
		applogger.String("store", a.Config.Store.Backend),
		applogger.Strings("instruments", a.Config.Symbols()),
	)

	<-ctx.Done()
	a.Logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the producers of work first, then the server.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.Logger.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.Logger.Warn("scheduler stop error", applogger.Error(err))
		errs = append(errs, err)
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.Logger.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	a.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.Config.Server.ShutdownTimeout; d > 0 {
		return d
	}
	return 15 * time.Second
}
