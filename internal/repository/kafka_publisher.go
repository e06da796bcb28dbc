package repository

import (
	"context"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	pkgkafka "ForexPulse/pkg/kafka"
)

// KafkaPublisher implements EventPublisher for Kafka. Messages are keyed by
// instrument (signals) or URL (news) so a partition sees one entity in order.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	newsTopic   string
	signalTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, newsTopic, signalTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, newsTopic: newsTopic, signalTopic: signalTopic}
}

func (p *KafkaPublisher) PublishNews(ctx context.Context, item models.NewsItem) error {
	return p.producer.Publish(ctx, p.newsTopic, item.URL, item)
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s models.Signal) error {
	return p.producer.Publish(ctx, p.signalTopic, s.Instrument, s)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishNews(context.Context, models.NewsItem) error { return nil }
func (NopPublisher) PublishSignal(context.Context, models.Signal) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaPublisher)(nil)
	_ domrepo.EventPublisher = NopPublisher{}
)
