package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/util"
)

var (
	handledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forexpulse_kafka_handled_total",
		Help: "Consumed messages by topic and outcome",
	}, []string{"topic", "outcome"})
	handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forexpulse_kafka_handle_seconds",
		Help:    "Handler time per message including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type partitionKey struct {
	topic     string
	partition int
}

// MessageHandler processes the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Consumer reads every registered topic and dispatches messages to a fixed set
// of workers. A message key always maps to the same worker, so one key is
// handled in offset order. An offset is committed once the handler succeeds
// or the message has been written to the DLQ. A message that fails without
// reaching the DLQ stalls commits on its partition, so the group resumes from
// it after a restart.
type Consumer struct {
	cfg      ConsumerConfig
	l        *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]messageReader
	queues   []chan kafka.Message
	dlq      MessageWriter

	mu      sync.Mutex
	stalled map[partitionKey]int64 // first offset that failed unparked

	stop     chan struct{}
	stopOnce sync.Once
	fetchers sync.WaitGroup
	workers  sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, l *logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	cfg = cfg.withDefaults()
	c := &Consumer{
		cfg:      cfg,
		l:        l,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		stalled:  make(map[partitionKey]int64),
		stop:     make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}, AllowAutoTopicCreation: true}
	}
	return c, nil
}

// Register adds h. A second handler for the same topic is ignored.
func (c *Consumer) Register(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.l.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start opens one reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka: no handlers registered")
	}

	c.queues = make([]chan kafka.Message, c.cfg.Workers)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, c.cfg.QueueSize)
		c.workers.Add(1)
		go c.work(c.queues[i])
	}

	for topic := range c.handlers {
		r := c.cfg.reader(topic)
		c.readers[topic] = r
		c.fetchers.Add(1)
		go c.fetch(topic, r)
	}
	go func() {
		c.fetchers.Wait()
		for _, q := range c.queues {
			close(q)
		}
	}()

	c.l.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.Workers),
	)
	return nil
}

// Stop halts fetching, lets the workers drain their queues and closes the
// readers. It gives up waiting when ctx ends.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		drained := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka reader close failed", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq close failed", logger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.fetchers.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.l.Error("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			}
			continue
		}

		select {
		case c.queues[c.slot(msg.Key)] <- msg:
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) slot(key []byte) int {
	if len(c.queues) == 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(len(c.queues)))
}

func (c *Consumer) work(queue <-chan kafka.Message) {
	defer c.workers.Done()
	for msg := range queue {
		c.process(msg)
	}
}

func (c *Consumer) process(msg kafka.Message) {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}

	start := time.Now()
	err := c.handle(h, msg.Value)
	handleSeconds.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		handledTotal.WithLabelValues(msg.Topic, "ok").Inc()
	case c.dlq != nil && c.park(msg, err) == nil:
		handledTotal.WithLabelValues(msg.Topic, "dlq").Inc()
	default:
		handledTotal.WithLabelValues(msg.Topic, "failed").Inc()
		c.stall(msg)
		c.l.Error("kafka message failed, partition commits stalled",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return
	}
	c.commit(msg)
}

// handle runs h with retries; a panic counts as a failed attempt.
func (c *Consumer) handle(h MessageHandler, payload []byte) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return h.Handle(context.Background(), payload)
		}()
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		if !util.Sleep(c.stop, util.Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func (c *Consumer) park(msg kafka.Message, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.l.Error("kafka dlq write failed", logger.String("dlq", c.cfg.DLQTopic), logger.Error(err))
	}
	return err
}

func (c *Consumer) stall(msg kafka.Message) {
	k := partitionKey{msg.Topic, msg.Partition}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stalled[k]; !ok {
		c.stalled[k] = msg.Offset
	}
}

func (c *Consumer) isStalled(msg kafka.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stalled[partitionKey{msg.Topic, msg.Partition}]
	return ok
}

// commit advances the group offset past msg unless an earlier message of the
// same partition failed unparked.
func (c *Consumer) commit(msg kafka.Message) {
	r := c.readers[msg.Topic]
	if r == nil || c.isStalled(msg) {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		util.Sleep(c.stop, util.Backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Error("kafka commit failed", logger.String("topic", msg.Topic), logger.Int64("offset", msg.Offset), logger.Error(err))
}
