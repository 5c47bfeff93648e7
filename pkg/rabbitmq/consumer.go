package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one delivery. Returning false re-queues the message.
type Handler func(body []byte) bool

// Consumer binds a durable queue to a topic exchange and dispatches deliveries
// by routing key.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  logrus.FieldLogger
}

func NewConsumer(amqpURL string, logger logrus.FieldLogger) (*Consumer, error) {
	target, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(target)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, log: logger.WithField("component", "rabbitmq_consumer")}, nil
}

// ConsumeWithBindings declares exchange and a durable queue, binds one
// routing key per handler and delivers in a background goroutine.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	routes := make(map[string]Handler, len(bindings))
	for key, handler := range bindings {
		if handler != nil {
			routes[key] = handler
		}
	}
	if len(routes) == 0 {
		return fmt.Errorf("consumer for queue %q has no handlers", queueName)
	}

	queue, err := c.declare(exchange, queueName, routes)
	if err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		for d := range deliveries {
			c.dispatch(routes, d)
		}
	}()
	return nil
}

func (c *Consumer) declare(exchange, queueName string, routes map[string]Handler) (string, error) {
	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	for key := range routes {
		if err := c.ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return "", fmt.Errorf("bind %s to %s: %w", key, exchange, err)
		}
	}
	return q.Name, nil
}

func (c *Consumer) dispatch(handlers map[string]Handler, d amqp.Delivery) {
	handler, ok := handlers[d.RoutingKey]
	if !ok {
		c.log.WithField("routing_key", d.RoutingKey).Warn("no handler for routing key; dropping")
		_ = d.Ack(false)
		return
	}
	if handler(d.Body) {
		_ = d.Ack(false)
		return
	}
	c.log.WithField("routing_key", d.RoutingKey).Warn("handler failed; re-queuing")
	_ = d.Nack(false, true)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
