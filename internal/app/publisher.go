package app

import (
	"context"

	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/pkg/rabbitmq"
)

// BrokerEventPublisher publishes straight to the topic exchange.
type BrokerEventPublisher struct {
	producer rabbitmq.Publisher
	exchange string
}

func NewBrokerEventPublisher(producer rabbitmq.Publisher, exchange string) *BrokerEventPublisher {
	return &BrokerEventPublisher{producer: producer, exchange: exchange}
}

func (p *BrokerEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, p.exchange, topic, payload)
}

// OutboxEventPublisher stores events in the outbox; OutboxDispatcher delivers
// them.
type OutboxEventPublisher struct {
	outbox   store.OutboxRepository
	exchange string
}

func NewOutboxEventPublisher(outbox store.OutboxRepository, exchange string) *OutboxEventPublisher {
	return &OutboxEventPublisher{outbox: outbox, exchange: exchange}
}

func (p *OutboxEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return p.outbox.EnqueueEvent(ctx, p.exchange, topic, payload)
}
