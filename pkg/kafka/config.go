package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

var errNoBrokers = errors.New("kafka: no brokers configured")

// ProducerConfig describes the writer behind a Producer. Zero fields take defaults.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	BatchSize    int
	BatchBytes   int64
	Linger       time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Linger <= 0 {
		c.Linger = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

func (c ProducerConfig) writer() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            compressionCodec(c.Compression),
		MaxAttempts:            c.MaxAttempts,
		BatchSize:              c.BatchSize,
		BatchBytes:             c.BatchBytes,
		BatchTimeout:           c.Linger,
		WriteTimeout:           c.WriteTimeout,
		ReadTimeout:            c.ReadTimeout,
		AllowAutoTopicCreation: true,
	}
}

// ConsumerConfig describes the readers and worker pool behind a Consumer.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	QueueSize  int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// DLQTopic receives messages whose handler kept failing; empty disables it.
	DLQTopic string
	MinBytes int
	MaxBytes int
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.GroupID == "" {
		c.GroupID = "forexpulse"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 50 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = 2 * time.Second
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	return c
}

func (c ConsumerConfig) reader(topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  c.GroupID,
		MinBytes: c.MinBytes,
		MaxBytes: c.MaxBytes,
	})
}

func compressionCodec(name string) kafka.Compression {
	switch strings.ToLower(name) {
	case "none", "":
		return 0
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
