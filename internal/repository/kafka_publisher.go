package repository

import (
	"context"

	domrepo "CustodianSync/internal/domain/repository"
	pkgkafka "CustodianSync/pkg/kafka"
)

// KafkaPublisher implements EventPublisher on Kafka. The topic name is
// taken from the event itself; keys hash by topic so consumers see each
// event class in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
}

// NewKafkaPublisher creates a Kafka event publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer) domrepo.EventPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, []byte(topic), payload)
}

// PublishMessage satisfies the log collector's publisher contract so
// aggregated log batches ride the same producer.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
