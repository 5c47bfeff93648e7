package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
	"github.com/omnixys/omnixys-person-service/pkg/rabbitmq"
)

const (
	outboxBatch         = 50
	outboxTick          = 1200 * time.Millisecond
	outboxClaimTimeout  = 2 * time.Minute
	outboxMaxBackoffSec = 300
)

// ProducerFactory opens a broker connection on demand.
type ProducerFactory func() (rabbitmq.Publisher, error)

// OutboxDispatcher forwards person events from the outbox table to the
// broker. A broken connection is dropped and reopened on the next message.
type OutboxDispatcher struct {
	outbox       store.OutboxRepository
	dial         ProducerFactory
	conn         rabbitmq.Publisher
	batch        int
	tick         time.Duration
	claimTimeout time.Duration
	log          logrus.FieldLogger
	metrics      *metrics
}

func NewOutboxDispatcher(outbox store.OutboxRepository, dial ProducerFactory, logger logrus.FieldLogger) *OutboxDispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &OutboxDispatcher{
		outbox:       outbox,
		dial:         dial,
		batch:        outboxBatch,
		tick:         outboxTick,
		claimTimeout: outboxClaimTimeout,
		log:          logger.WithField("component", "outbox-dispatcher"),
		metrics:      getMetrics(),
	}
}

// Run drains the outbox on every tick until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	defer d.hangUp()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				d.log.WithField("err", err).Error("outbox batch failed")
			}
		}
	}
}

// dispatchBatch claims up to one batch and settles each message as published
// or rescheduled.
func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) error {
	claimed, err := d.outbox.ClaimOutboxMessages(ctx, d.batch, int(d.claimTimeout/time.Second))
	if err != nil {
		return err
	}
	for _, msg := range claimed {
		d.settle(ctx, msg, d.forward(ctx, msg))
	}
	return nil
}

func (d *OutboxDispatcher) settle(ctx context.Context, msg store.OutboxMessage, sendErr error) {
	entry := d.log.WithFields(logrus.Fields{"id": msg.ID, "routing_key": msg.RoutingKey})
	if sendErr == nil {
		d.metrics.outboxDispatch.WithLabelValues("published").Inc()
		if err := d.outbox.MarkOutboxPublished(ctx, msg.ID); err != nil {
			entry.WithField("err", err).Error("could not mark outbox message published")
		}
		return
	}

	backoff := backoffSeconds(msg.Attempts)
	d.metrics.outboxDispatch.WithLabelValues("retry").Inc()
	entry.WithFields(logrus.Fields{"retry_after": backoff, "err": sendErr}).Warn("outbox message not published")
	if err := d.outbox.MarkOutboxFailed(ctx, msg.ID, backoff, sendErr.Error()); err != nil {
		entry.WithField("err", err).Error("could not reschedule outbox message")
	}
}

func (d *OutboxDispatcher) forward(ctx context.Context, msg store.OutboxMessage) error {
	if d.conn == nil {
		conn, err := d.dial()
		if err != nil {
			return err
		}
		d.conn = conn
	}
	if err := d.conn.Publish(ctx, msg.Exchange, msg.RoutingKey, json.RawMessage(msg.Payload)); err != nil {
		d.hangUp()
		return err
	}
	return nil
}

func (d *OutboxDispatcher) hangUp() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// backoffSeconds doubles per attempt: 2s, 4s, ... 256s.
func backoffSeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 8)
	return min(delay, outboxMaxBackoffSec)
}
