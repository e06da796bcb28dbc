package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
	pkgkafka "ForexPulse/pkg/kafka"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysAndTopics(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "gzip", nil), "fx.news", "fx.signals")
	ctx := context.Background()

	require.NoError(t, p.PublishNews(ctx, models.NewsItem{URL: "https://x/1", Title: "CPI"}))
	require.NoError(t, p.PublishSignal(ctx, models.Signal{Instrument: "XAUUSD", Label: models.LabelNeutral}))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "fx.news", w.msgs[0].Topic)
	assert.Equal(t, "https://x/1", string(w.msgs[0].Key))
	var news models.NewsItem
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &news))
	assert.Equal(t, "CPI", news.Title)

	assert.Equal(t, "fx.signals", w.msgs[1].Topic)
	assert.Equal(t, "XAUUSD", string(w.msgs[1].Key))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	w := &recordingWriter{err: assert.AnError}
	p := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "gzip", nil), "fx.news", "fx.signals")

	err := p.PublishSignal(context.Background(), models.Signal{Instrument: "EURUSD"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.PublishNews(context.Background(), models.NewsItem{}))
	assert.NoError(t, p.Close())
}
