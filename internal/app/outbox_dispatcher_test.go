package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/pkg/rabbitmq"
)

type producerStub struct {
	err       error
	published []string
	bodies    [][]byte
	closed    int
}

func (p *producerStub) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.published = append(p.published, exchange+"/"+routingKey)
	p.bodies = append(p.bodies, raw)
	return nil
}

func (p *producerStub) Close() { p.closed++ }

func newTestDispatcher(outbox store.OutboxRepository, producer *producerStub) *OutboxDispatcher {
	return NewOutboxDispatcher(outbox, func() (rabbitmq.Publisher, error) { return producer, nil }, logging.Nop())
}

func TestBackoffSeconds(t *testing.T) {
	tests := []struct {
		attempt int
		want    int
	}{
		{attempt: 0, want: 1},
		{attempt: 1, want: 2},
		{attempt: 3, want: 8},
		{attempt: 8, want: 256},
		{attempt: 9, want: 256},
		{attempt: 40, want: 256},
	}
	for _, tt := range tests {
		if got := backoffSeconds(tt.attempt); got != tt.want {
			t.Fatalf("backoffSeconds(%d) = %d, want %d", tt.attempt, got, tt.want)
		}
	}
}

func TestOutboxDispatcherPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	publisher := NewOutboxEventPublisher(mem, "omnixys.events")
	for _, topic := range []string{domain.TopicShoppingCartCustomerDeleted, domain.TopicAccountCustomerDeleted} {
		if err := publisher.Publish(ctx, topic, map[string]string{"topic": topic}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	producer := &producerStub{}
	if err := newTestDispatcher(mem, producer).dispatchBatch(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	want := []string{
		"omnixys.events/" + domain.TopicShoppingCartCustomerDeleted,
		"omnixys.events/" + domain.TopicAccountCustomerDeleted,
	}
	if len(producer.published) != len(want) {
		t.Fatalf("expected %d publishes, got %v", len(want), producer.published)
	}
	for i := range want {
		if producer.published[i] != want[i] {
			t.Fatalf("publish %d: expected %s, got %s", i, want[i], producer.published[i])
		}
	}
	if string(producer.bodies[0]) != `{"topic":"shopping-cart.customer.deleted"}` {
		t.Fatalf("payload was re-encoded: %s", producer.bodies[0])
	}

	pending, _ := mem.CountPendingOutbox(ctx)
	if pending != 0 {
		t.Fatalf("expected empty backlog, got %d", pending)
	}
}

func TestOutboxDispatcherReschedulesFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	if err := mem.EnqueueEvent(ctx, "omnixys.events", domain.TopicAccountCustomerCreated, map[string]int{"balance": 0}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	producer := &producerStub{err: errors.New("channel closed")}
	dispatcher := newTestDispatcher(mem, producer)
	if err := dispatcher.dispatchBatch(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if producer.closed != 1 {
		t.Fatalf("expected producer to be closed after a failed publish, closed=%d", producer.closed)
	}
	if dispatcher.conn != nil {
		t.Fatal("expected producer to be dropped")
	}

	pending, _ := mem.CountPendingOutbox(ctx)
	if pending != 1 {
		t.Fatalf("expected the message to stay pending, got %d", pending)
	}
	claimed, _ := mem.ClaimOutboxMessages(ctx, 10, 120)
	if len(claimed) != 0 {
		t.Fatalf("expected the retry to be delayed, claimed %d", len(claimed))
	}
}
