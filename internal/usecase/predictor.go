package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	domsvc "ForexPulse/internal/domain/service"
	"ForexPulse/internal/services/analytics"
	"ForexPulse/internal/services/features"
	"ForexPulse/internal/services/model"
	"ForexPulse/pkg/logger"
)

// Inference outcomes.
const (
	PredictStatusOK               = "ok"
	PredictStatusInsufficientData = "insufficient_data"
	PredictStatusNoModel          = "no_model"
)

// RecentNewsLimit caps the headlines embedded in an explanation.
const RecentNewsLimit = 5

// ArtifactLoader reads the newest fitted model of a namespace.
type ArtifactLoader interface {
	Latest(namespace string) (*model.Artifact, error)
}

// PredictorConfig holds inference thresholds.
type PredictorConfig struct {
	MinBars          int
	NeutralThreshold float64
	AlertThreshold   float64
}

// PredictorUseCase turns the latest 1m history of an instrument into a stored Signal.
type PredictorUseCase struct {
	bars       domrepo.BarReader
	context    domrepo.ContextReader
	signals    domrepo.SignalStore
	artifacts  ArtifactLoader
	classifier domsvc.RegimeClassifier
	publisher  domrepo.EventPublisher
	metrics    domrepo.Metrics
	l          *logger.Logger
	cfg        PredictorConfig
	now        func() time.Time
}

type PredictorDeps struct {
	Bars       domrepo.BarReader
	Context    domrepo.ContextReader
	Signals    domrepo.SignalStore
	Artifacts  ArtifactLoader
	Classifier domsvc.RegimeClassifier
	Publisher  domrepo.EventPublisher
	Metrics    domrepo.Metrics
	Logger     *logger.Logger
	Config     PredictorConfig
	Now        func() time.Time
}

func NewPredictorUseCase(d PredictorDeps) *PredictorUseCase {
	if d.Config.MinBars <= 0 {
		d.Config.MinBars = 250
	}
	if d.Config.NeutralThreshold <= 0 {
		d.Config.NeutralThreshold = analytics.DefaultNeutralThreshold
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &PredictorUseCase{
		bars:       d.Bars,
		context:    d.Context,
		signals:    d.Signals,
		artifacts:  d.Artifacts,
		classifier: d.Classifier,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		l:          d.Logger,
		cfg:        d.Config,
		now:        d.Now,
	}
}

type PredictResult struct {
	Instrument string         `json:"instrument"`
	Status     string         `json:"status"`
	Signal     *models.Signal `json:"signal,omitempty"`
}

// Predict produces exactly one Signal when the status is ok and nothing otherwise.
func (uc *PredictorUseCase) Predict(ctx context.Context, instrument string) (*PredictResult, error) {
	if instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	res := &PredictResult{Instrument: instrument}

	bars, err := loadMinuteBars(ctx, uc.bars, instrument, 0)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", instrument, err)
	}
	if len(bars) < uc.cfg.MinBars {
		res.Status = PredictStatusInsufficientData
		return res, nil
	}

	a, err := uc.artifacts.Latest(instrument)
	if errors.Is(err, model.ErrNoModel) {
		res.Status = PredictStatusNoModel
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("predict %s: load model: %w", instrument, err)
	}
	if err := a.CheckColumns(models.FeatureColumns); err != nil {
		return nil, fmt.Errorf("predict %s: %w", instrument, err)
	}

	rows, news, err := featureTable(ctx, uc.context, bars)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", instrument, err)
	}
	if len(rows) == 0 {
		res.Status = PredictStatusInsufficientData
		return res, nil
	}
	latest := rows[len(rows)-1]

	probs, err := a.PredictRow(latest)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", instrument, err)
	}
	regime := uc.classifier.Classify(rows)
	recent := features.RecentHeadlines(news, latest.Timestamp, RecentNewsLimit)

	sig := models.Signal{
		Instrument:   instrument,
		Timestamp:    uc.now().UTC(),
		Label:        analytics.Label(probs, uc.cfg.NeutralThreshold),
		Confidence:   analytics.Confidence(probs),
		Explanation:  analytics.Explain(latest, probs, regime, recent),
		ModelVersion: a.Version,
	}
	res.Status = PredictStatusOK
	res.Signal = &sig
	switch err := uc.signals.InsertSignal(ctx, sig); {
	case errors.Is(err, domrepo.ErrAlreadyExists):
		// stored by an earlier run at the same instant; it was published then
		uc.l.Debug("signal already stored", logger.String("instrument", instrument), logger.Time("ts", sig.Timestamp))
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("predict %s: store signal: %w", instrument, err)
	}
	uc.metrics.RecordSignal(instrument, sig.Label, sig.Confidence)

	if err := uc.publisher.PublishSignal(ctx, sig); err != nil {
		uc.metrics.RecordError("publish_signal")
		uc.l.Warn("publish signal", logger.String("instrument", instrument), logger.Error(err))
	}
	if uc.cfg.AlertThreshold > 0 && sig.Confidence >= uc.cfg.AlertThreshold {
		uc.l.Warn("high confidence signal",
			logger.String("instrument", instrument),
			logger.String("label", sig.Label),
			logger.Float64("confidence", sig.Confidence),
			logger.String("regime", regime.Regime),
			logger.String("model_version", sig.ModelVersion),
		)
	}

	return res, nil
}
