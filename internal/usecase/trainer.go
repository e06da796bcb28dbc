package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/services/model"
	"ForexPulse/pkg/logger"
)

// Training outcomes.
const (
	TrainStatusTrained          = "trained"
	TrainStatusNoData           = "no_data"
	TrainStatusInsufficientData = "insufficient_data"
)

// ArtifactSaver persists fitted models.
type ArtifactSaver interface {
	Save(namespace string, a *model.Artifact) (string, error)
}

// TrainerUseCase fits a calibrated classifier per instrument on its 1m history.
type TrainerUseCase struct {
	bars    domrepo.BarReader
	context domrepo.ContextReader
	store   ArtifactSaver
	metrics domrepo.Metrics
	l       *logger.Logger
	cfg     model.TrainConfig
	history int
}

// NewTrainerUseCase builds a trainer. history caps the number of most recent 1m bars used; zero means all.
func NewTrainerUseCase(bars domrepo.BarReader, cr domrepo.ContextReader, store ArtifactSaver, metrics domrepo.Metrics, l *logger.Logger, cfg model.TrainConfig, history int) *TrainerUseCase {
	return &TrainerUseCase{bars: bars, context: cr, store: store, metrics: metrics, l: l, cfg: cfg, history: history}
}

type TrainResult struct {
	Instrument string                 `json:"instrument"`
	Status     string                 `json:"status"`
	Version    string                 `json:"model_version,omitempty"`
	Metrics    *model.TrainingMetrics `json:"metrics,omitempty"`
}

func (uc *TrainerUseCase) Train(ctx context.Context, instrument string) (*TrainResult, error) {
	if instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	res := &TrainResult{Instrument: instrument}

	bars, err := loadMinuteBars(ctx, uc.bars, instrument, uc.history)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", instrument, err)
	}
	if len(bars) == 0 {
		res.Status = TrainStatusNoData
		return res, nil
	}
	rows, _, err := featureTable(ctx, uc.context, bars)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", instrument, err)
	}

	start := time.Now()
	a, err := model.Train(rows, models.FeatureColumns, uc.cfg)
	if errors.Is(err, model.ErrInsufficientTrainingData) {
		uc.l.Warn("not enough rows to train", logger.String("instrument", instrument), logger.Int("rows", len(rows)), logger.Error(err))
		res.Status = TrainStatusInsufficientData
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", instrument, err)
	}
	uc.metrics.RecordLatency("model_train", time.Since(start).Seconds())

	version, err := uc.store.Save(instrument, a)
	if err != nil {
		return nil, fmt.Errorf("train %s: save artifact: %w", instrument, err)
	}
	res.Status = TrainStatusTrained
	res.Version = version
	res.Metrics = &a.Metrics
	uc.l.Info("model trained",
		logger.String("instrument", instrument),
		logger.String("model_version", version),
		logger.Int("train_size", a.Metrics.TrainSize),
		logger.Int("test_size", a.Metrics.TestSize),
		logger.Float64("test_accuracy", a.Metrics.TestAccuracy),
	)
	return res, nil
}

func loadMinuteBars(ctx context.Context, r domrepo.BarReader, instrument string, history int) ([]models.Bar, error) {
	var (
		bars []models.Bar
		err  error
	)
	if history > 0 {
		bars, err = r.GetLatestNBars(ctx, instrument, history, domrepo.TF1m)
	} else {
		bars, err = r.GetBars(ctx, instrument, time.Time{}, time.Time{}, domrepo.TF1m)
	}
	if err != nil {
		return nil, fmt.Errorf("load 1m bars: %w", err)
	}
	return bars, nil
}
