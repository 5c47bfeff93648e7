package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes JSON events to durable topic exchanges.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
	log      logrus.FieldLogger
}

// NewEventProducer dials RabbitMQ with a bounded timeout and opens a channel.
func NewEventProducer(amqpURL string, logger logrus.FieldLogger) (*EventProducer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:     conn,
		channel:  ch,
		declared: make(map[string]bool),
		log:      logger.WithField("component", "rabbitmq_producer"),
	}, nil
}

// Publish sends body as JSON to exchange with routingKey. A failed publish
// reopens the channel and is retried once.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publishLocked(ctx, exchange, routingKey, payload); err != nil {
		p.log.WithFields(logrus.Fields{"exchange": exchange, "routing_key": routingKey, "err": err}).
			Warn("publish failed; reopening channel")
		if reopenErr := p.reopenLocked(); reopenErr != nil {
			return reopenErr
		}
		if err := p.publishLocked(ctx, exchange, routingKey, payload); err != nil {
			return err
		}
	}

	p.log.WithFields(logrus.Fields{"exchange": exchange, "routing_key": routingKey}).Debug("published message")
	return nil
}

func (p *EventProducer) publishLocked(ctx context.Context, exchange, routingKey string, payload []byte) error {
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[exchange] = true
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (p *EventProducer) reopenLocked() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

// Close closes the channel and the connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// EventProducerFallback logs events instead of publishing them. It lets the
// service start when RabbitMQ is unreachable.
type EventProducerFallback struct {
	Log logrus.FieldLogger
}

func (p *EventProducerFallback) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{"component": "rabbitmq_fallback", "exchange": exchange, "routing_key": routingKey}).
			Infof("would publish %+v", body)
	}
	return nil
}

func (p *EventProducerFallback) Close() {}
