// Package service publishes domain events to RabbitMQ.  Publishing is best
// effort: errors are logged and returned, and callers are free to ignore
// them without failing the request.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/webshop-checkout/internal/queue"
)

// DefaultDialTimeout bounds connecting to the broker, handshake included.
const DefaultDialTimeout = 3 * time.Second

// OrderPublisher sends order events to the order.pending queue.  It dials
// per message; checkout volume is low enough that a pooled channel is not
// worth its reconnect handling.  Publishing runs inside the checkout
// request, so the dial is bounded by a short timeout.
type OrderPublisher struct {
	url         string
	dialTimeout time.Duration
}

// NewOrderPublisher returns a publisher for the broker at url.  A zero
// dialTimeout means DefaultDialTimeout.
func NewOrderPublisher(url string, dialTimeout time.Duration) *OrderPublisher {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &OrderPublisher{url: url, dialTimeout: dialTimeout}
}

// PublishOrderPending publishes ev as a persistent JSON message.
func (p *OrderPublisher) PublishOrderPending(ctx context.Context, ev queue.OrderPendingEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.OrderPendingQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.OrderPendingQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Printf("rabbitmq: publish order %s failed: %v", ev.OrderID, err)
	}
	return err
}
