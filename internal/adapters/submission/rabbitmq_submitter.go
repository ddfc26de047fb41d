package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/obs"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	InvoiceExchange          = "invoice"
	InvoiceSubmittedRouteKey = "invoice.submitted"
)

// Publisher is the slice of *amqp.Channel the submitter needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQ owns the broker connection and the channel used for publishing.
type RabbitMQ struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		Channel: ch,
	}

	err = ch.ExchangeDeclare(
		InvoiceExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		rmq.Close()
		return nil, fmt.Errorf("failed to declare exchange: %s: %w", InvoiceExchange, err)
	}

	return rmq, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// RabbitMQSubmitter hands submitted invoices to the invoicing system as
// persistent JSON messages on the invoice exchange.
type RabbitMQSubmitter struct {
	pub      Publisher
	exchange string
}

func NewRabbitMQSubmitter(pub Publisher) (*RabbitMQSubmitter, error) {
	if pub == nil {
		return nil, errors.New("rabbitmq submitter: publisher is nil")
	}
	return &RabbitMQSubmitter{pub: pub, exchange: InvoiceExchange}, nil
}

func (s *RabbitMQSubmitter) Submit(ctx context.Context, sub domain.InvoiceSubmission) (err error) {
	defer obs.Time(ctx, "invoice.submit.rabbitmq")(&err)

	body, err := json.Marshal(newInvoiceSubmitted(sub))
	if err != nil {
		return fmt.Errorf("submit invoice: marshal: %w", err)
	}

	log.Printf("Publishing invoice submission_id=%s routing_key=%s", sub.SubmissionID, InvoiceSubmittedRouteKey)

	err = s.pub.PublishWithContext(ctx,
		s.exchange,               // exchange
		InvoiceSubmittedRouteKey, // routing key
		false,                    // mandatory
		false,                    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    sub.SubmissionID,
			Timestamp:    sub.SubmittedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("submit invoice %s: publish: %w", sub.SubmissionID, err)
	}
	return nil
}
