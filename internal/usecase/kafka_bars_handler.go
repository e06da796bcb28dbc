package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/services/aggregator"
	pkgkafka "ForexPulse/pkg/kafka"
	"ForexPulse/pkg/util"
)

// KafkaBarsHandler consumes 1m bars from Kafka, stores them and rolls up the derived timeframes.
type KafkaBarsHandler struct {
	topic   string
	store   domrepo.BarStore
	agg     *aggregator.Aggregator
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, store domrepo.BarStore, agg *aggregator.Aggregator, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, agg: agg, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, ts, open, high, low, close, volume, bid?, ask?}
// ts is RFC3339 or unix seconds/milliseconds.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Instrument string          `json:"instrument"`
		TS         json.RawMessage `json:"ts"`
		Open       float64         `json:"open"`
		High       float64         `json:"high"`
		Low        float64         `json:"low"`
		Close      float64         `json:"close"`
		Volume     float64         `json:"volume"`
		Bid        *float64        `json:"bid"`
		Ask        *float64        `json:"ask"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ts, err := parseEventTime(m.TS)
	if err != nil || m.Instrument == "" {
		h.metrics.RecordError("consumer_invalid_bar")
		return fmt.Errorf("invalid bar message: instrument=%q ts=%s", m.Instrument, string(m.TS))
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	bar := models.Bar{
		Instrument: strings.ToUpper(m.Instrument),
		Timeframe:  domrepo.TF1m.String(),
		Timestamp:  domrepo.TF1m.Bucket(ts),
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
		Volume:     m.Volume,
		Bid:        m.Bid,
		Ask:        m.Ask,
	}
	start := time.Now()
	err = h.store.InsertBar(ctx, bar)
	h.metrics.RecordLatency("store_insert_seconds", time.Since(start).Seconds())
	switch {
	case errors.Is(err, domrepo.ErrAlreadyExists):
		h.metrics.RecordUpsert("bar_1m", domrepo.OutcomeSkipped)
		return nil
	case err != nil:
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordUpsert("bar_1m", domrepo.OutcomeInserted)

	_, err = h.agg.Run(ctx, bar.Instrument)
	return err
}

func parseEventTime(raw json.RawMessage) (time.Time, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n > 1e11 { // ms
			n /= 1000
		}
		return time.Unix(n, 0).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	}
	return t, nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
