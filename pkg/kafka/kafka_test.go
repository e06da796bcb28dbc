package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

type flakyHandler struct {
	failures int
	calls    int
	panics   bool
}

func (h *flakyHandler) Topic() string { return "bars.1m" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		if h.panics {
			panic("boom")
		}
		return errors.New("transient")
	}
	return nil
}

type memReader struct {
	committed []int64
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error { return nil }

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{
		Brokers:    []string{"localhost:9092"},
		Workers:    4,
		RetryMax:   retries,
		BackoffMin: time.Millisecond,
		BackoffMax: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{}, nil)
	assert.ErrorIs(t, err, errNoBrokers)
	_, err = NewConsumer(ConsumerConfig{}, nil)
	assert.ErrorIs(t, err, errNoBrokers)
}

func TestProducerPublish(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "snappy", nil)

	require.NoError(t, p.Publish(context.Background(), "signals", "EURUSD", map[string]string{"label": "bullish"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "EURUSD", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"label":"bullish"}`, string(w.msgs[0].Value))
	assert.Equal(t, "content-type", w.msgs[0].Headers[0].Key)

	assert.Error(t, p.Publish(context.Background(), "signals", "x", make(chan int)))
	w.err = errors.New("broker down")
	assert.ErrorIs(t, p.Publish(context.Background(), "signals", "x", 1), w.err)
}

func TestConsumerSlotIsStablePerKey(t *testing.T) {
	c := newTestConsumer(t, 0)
	c.queues = make([]chan kafka.Message, 4)

	first := c.slot([]byte("XAUUSD"))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.slot([]byte("XAUUSD")))
	}
	assert.Equal(t, 0, c.slot(nil))
	assert.Less(t, c.slot([]byte("EURUSD")), 4)
}

func TestConsumerRetriesThenSucceeds(t *testing.T) {
	c := newTestConsumer(t, 2)
	h := &flakyHandler{failures: 2, panics: true}
	assert.NoError(t, c.handle(h, nil))
	assert.Equal(t, 3, h.calls)

	h = &flakyHandler{failures: 5}
	assert.Error(t, c.handle(h, nil))
	assert.Equal(t, 3, h.calls)
}

func TestConsumerParksFailuresOnDLQ(t *testing.T) {
	c := newTestConsumer(t, 0)
	dlq := &memWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "bars.1m.dlq"
	c.Register(&flakyHandler{failures: 1})

	c.process(kafka.Message{Topic: "bars.1m", Key: []byte("XAUUSD"), Value: []byte(`{}`)})
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "bars.1m.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "bars.1m", string(dlq.msgs[0].Headers[0].Value))
	assert.Equal(t, "transient", string(dlq.msgs[0].Headers[1].Value))
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Snappy, compressionCodec("SNAPPY"))
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
	assert.Equal(t, kafka.Gzip, compressionCodec("unknown"))
}

func TestConsumerStallsPartitionAfterUnparkedFailure(t *testing.T) {
	c := newTestConsumer(t, 0)
	r := &memReader{}
	c.readers["bars.1m"] = r
	c.Register(&flakyHandler{failures: 1})

	c.process(kafka.Message{Topic: "bars.1m", Partition: 0, Offset: 10})
	assert.Empty(t, r.committed)

	// the failed offset must stay uncommitted even when later ones succeed
	c.process(kafka.Message{Topic: "bars.1m", Partition: 0, Offset: 11})
	c.process(kafka.Message{Topic: "bars.1m", Partition: 0, Offset: 12})
	assert.Empty(t, r.committed)

	c.process(kafka.Message{Topic: "bars.1m", Partition: 1, Offset: 40})
	assert.Equal(t, []int64{40}, r.committed)
}

func TestConsumerCommitsAfterDLQ(t *testing.T) {
	c := newTestConsumer(t, 0)
	r := &memReader{}
	c.readers["bars.1m"] = r
	c.dlq = &memWriter{}
	c.cfg.DLQTopic = "bars.1m.dlq"
	c.Register(&flakyHandler{failures: 1})

	c.process(kafka.Message{Topic: "bars.1m", Offset: 5})
	c.process(kafka.Message{Topic: "bars.1m", Offset: 6})
	assert.Equal(t, []int64{5, 6}, r.committed)
}
