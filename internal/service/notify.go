package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/campfield/ticketoffice/internal/queue"
)

// Notifier dispatches notification events. Implementations must be
// safe to call after the triggering transaction has committed;
// failures are the caller's to log and ignore, never to roll back.
type Notifier interface {
	TicketTransferred(ctx context.Context, event q.TicketTransferredEvent) error
	PaymentCreated(ctx context.Context, event q.PaymentCreatedEvent) error
}

// AMQPNotifier publishes events to RabbitMQ, one short-lived
// connection per publish. Messages are marked persistent so they
// survive broker restarts.
type AMQPNotifier struct{}

func (AMQPNotifier) TicketTransferred(ctx context.Context, event q.TicketTransferredEvent) error {
	return publish(ctx, q.TransferQueueName, event)
}

func (AMQPNotifier) PaymentCreated(ctx context.Context, event q.PaymentCreatedEvent) error {
	return publish(ctx, q.PaymentQueueName, event)
}

// publish declares the queue (idempotent) and sends one JSON
// message. Errors are logged and returned so callers can choose to
// ignore them without interrupting the main request flow.
func publish(ctx context.Context, queueName string, event interface{}) error {
	conn, err := amqp.Dial(q.BrokerURL())
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

	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
