package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	domsvc "ForexPulse/internal/domain/service"
	"ForexPulse/internal/services/aggregator"
	"ForexPulse/pkg/cache"
	"ForexPulse/pkg/logger"
)

// AnalysisCacheTTL bounds how long a cached news analysis is reused.
const AnalysisCacheTTL = 24 * time.Hour

// IngestionUseCase pulls prices, news and macro events from providers into the store.
type IngestionUseCase struct {
	store       domrepo.Storage
	prices      domrepo.PriceProvider
	news        domrepo.NewsProvider
	macro       domrepo.MacroProvider
	analyzer    domsvc.NewsAnalyzer
	agg         *aggregator.Aggregator
	cache       cache.Service
	publisher   domrepo.EventPublisher
	metrics     domrepo.Metrics
	l           *logger.Logger
	instruments []string
}

type IngestionDeps struct {
	Store       domrepo.Storage
	Prices      domrepo.PriceProvider
	News        domrepo.NewsProvider
	Macro       domrepo.MacroProvider
	Analyzer    domsvc.NewsAnalyzer
	Aggregator  *aggregator.Aggregator
	Cache       cache.Service // optional
	Publisher   domrepo.EventPublisher
	Metrics     domrepo.Metrics
	Logger      *logger.Logger
	Instruments []string
}

func NewIngestionUseCase(d IngestionDeps) *IngestionUseCase {
	return &IngestionUseCase{
		store:       d.Store,
		prices:      d.Prices,
		news:        d.News,
		macro:       d.Macro,
		analyzer:    d.Analyzer,
		agg:         d.Aggregator,
		cache:       d.Cache,
		publisher:   d.Publisher,
		metrics:     d.Metrics,
		l:           d.Logger,
		instruments: d.Instruments,
	}
}

// PriceResult counts 1m bar writes per instrument.
type PriceResult struct {
	Inserted map[string]int `json:"inserted"`
	Skipped  map[string]int `json:"skipped"`
}

// IngestPrices fetches 1m bars newer than the latest stored bar for every
// instrument, stores them and rolls up the derived timeframes.
func (uc *IngestionUseCase) IngestPrices(ctx context.Context) (PriceResult, error) {
	res := PriceResult{Inserted: map[string]int{}, Skipped: map[string]int{}}
	for _, sym := range uc.instruments {
		since, _, err := uc.store.LatestBarTime(ctx, sym, domrepo.TF1m)
		if err != nil {
			return res, fmt.Errorf("prices %s: latest bar: %w", sym, err)
		}
		bars, err := uc.prices.Fetch(ctx, sym, since)
		if err != nil {
			return res, fmt.Errorf("prices %s: fetch from %s: %w", sym, uc.prices.Name(), err)
		}
		for _, b := range bars {
			b.Instrument = sym
			if b.Timeframe == "" {
				b.Timeframe = domrepo.TF1m.String()
			}
			err := uc.store.InsertBar(ctx, b)
			switch {
			case err == nil:
				res.Inserted[sym]++
				uc.metrics.RecordUpsert("bar_"+b.Timeframe, domrepo.OutcomeInserted)
			case errors.Is(err, domrepo.ErrAlreadyExists):
				res.Skipped[sym]++
				uc.metrics.RecordUpsert("bar_"+b.Timeframe, domrepo.OutcomeSkipped)
			default:
				return res, fmt.Errorf("prices %s: insert bar at %s: %w", sym, b.Timestamp.Format(time.RFC3339), err)
			}
		}
		if _, err := uc.agg.Run(ctx, sym); err != nil {
			return res, err
		}
		uc.l.Info("prices ingested",
			logger.String("instrument", sym),
			logger.Int("inserted", res.Inserted[sym]),
			logger.Int("skipped", res.Skipped[sym]),
		)
	}
	return res, nil
}

// NewsResult counts news writes.
type NewsResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// IngestNews fetches items newer than the latest stored publication time,
// analyzes them and upserts by URL. Newly inserted items are published.
func (uc *IngestionUseCase) IngestNews(ctx context.Context) (NewsResult, error) {
	var res NewsResult
	since, _, err := uc.store.LatestNewsTime(ctx)
	if err != nil {
		return res, fmt.Errorf("news: latest time: %w", err)
	}
	items, err := uc.news.Fetch(ctx, since)
	if err != nil {
		return res, fmt.Errorf("news: fetch from %s: %w", uc.news.Name(), err)
	}
	for _, item := range items {
		if item.URL == "" {
			uc.metrics.RecordError("news_missing_url")
			continue
		}
		item.Analysis = uc.analyze(ctx, item.Title, item.Summary)
		inserted, err := uc.store.UpsertNews(ctx, item)
		if err != nil {
			return res, fmt.Errorf("news: upsert %s: %w", item.URL, err)
		}
		if !inserted {
			res.Updated++
			uc.metrics.RecordUpsert("news", domrepo.OutcomeUpdated)
			continue
		}
		res.Inserted++
		uc.metrics.RecordUpsert("news", domrepo.OutcomeInserted)
		if err := uc.publisher.PublishNews(ctx, item); err != nil {
			uc.metrics.RecordError("publish_news")
			uc.l.Warn("publish news", logger.String("url", item.URL), logger.Error(err))
		}
	}
	uc.l.Info("news ingested", logger.Int("inserted", res.Inserted), logger.Int("updated", res.Updated))
	return res, nil
}

func (uc *IngestionUseCase) analyze(ctx context.Context, title, summary string) models.NewsAnalysis {
	key := cache.Key("news_analysis", cache.ContentHash(title, summary))
	return cache.GetOrCompute(ctx, uc.cache, key, AnalysisCacheTTL, func() models.NewsAnalysis {
		return uc.analyzer.Analyze(title, summary)
	})
}

// MacroResult counts macro event writes.
type MacroResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// IngestMacro stores every event the provider returns; known events are skipped.
func (uc *IngestionUseCase) IngestMacro(ctx context.Context) (MacroResult, error) {
	var res MacroResult
	events, err := uc.macro.Fetch(ctx, time.Time{})
	if err != nil {
		return res, fmt.Errorf("macro: fetch from %s: %w", uc.macro.Name(), err)
	}
	for _, e := range events {
		err := uc.store.InsertMacroEvent(ctx, e)
		switch {
		case err == nil:
			res.Inserted++
			uc.metrics.RecordUpsert("macro", domrepo.OutcomeInserted)
		case errors.Is(err, domrepo.ErrAlreadyExists):
			res.Skipped++
			uc.metrics.RecordUpsert("macro", domrepo.OutcomeSkipped)
		default:
			return res, fmt.Errorf("macro: insert %s %s: %w", e.Currency, e.Name, err)
		}
	}
	uc.l.Info("macro events ingested", logger.Int("inserted", res.Inserted), logger.Int("skipped", res.Skipped))
	return res, nil
}
