package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"ForexPulse/pkg/logger"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forexpulse_kafka_published_total",
		Help: "Messages written to kafka by topic and result",
	}, []string{"topic", "result"})
	publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forexpulse_kafka_published_bytes_total",
		Help: "Payload bytes written to kafka",
	}, []string{"topic", "compression"})
	publishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forexpulse_kafka_publish_seconds",
		Help:    "Time spent in a single publish",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON payloads. Messages sharing a key land on one partition.
type Producer struct {
	w           MessageWriter
	compression string
	l           *logger.Logger
}

func NewProducer(cfg ProducerConfig, l *logger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	cfg = cfg.withDefaults()
	return NewProducerWithWriter(cfg.writer(), cfg.Compression, l), nil
}

// NewProducerWithWriter wraps w; compression only labels metrics.
func NewProducerWithWriter(w MessageWriter, compression string, l *logger.Logger) *Producer {
	return &Producer{w: w, compression: compression, l: l}
}

// Publish marshals value to JSON and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka %s: encode: %w", topic, err)
	}

	start := time.Now()
	err = p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Time:    start,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	})
	publishSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		publishedTotal.WithLabelValues(topic, "error").Inc()
		p.l.Error("kafka publish failed", logger.String("topic", topic), logger.String("key", key), logger.Error(err))
		return fmt.Errorf("kafka %s: %w", topic, err)
	}
	publishedTotal.WithLabelValues(topic, "ok").Inc()
	publishedBytes.WithLabelValues(topic, p.compression).Add(float64(len(payload)))
	return nil
}

func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}
