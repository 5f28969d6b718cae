package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout   = 5 * time.Second
	consumerPrefetch = 16
	appID            = "ledger"
)

// ErrNotConfirmed is returned when the broker nacks a published event.
var ErrNotConfirmed = errors.New("event not confirmed by broker")

// Client publishes and consumes transaction events on a durable direct
// exchange. Publishing uses its own channel in confirm mode; consuming
// opens a second channel so a slow consumer never blocks publishers.
type Client struct {
	conn         *amqp091.Connection
	exchangeName string
	queueName    string

	pubMu   sync.Mutex
	publish *amqp091.Channel
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Properties: amqp091.Table{"connection_name": appID},
	})
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	client := &Client{
		conn:         conn,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	ch, err := conn.Channel()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	client.publish = ch

	if err := client.declareTopology(ch); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		client.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return client, nil
}

// declareTopology is idempotent; both the API and the event tail call it.
func (c *Client) declareTopology(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchangeName, err)
	}

	if _, err := ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queueName, err)
	}

	// Routing key is the queue name on a direct exchange
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queueName, err)
	}

	return nil
}

// PublishTransactionEvent publishes a persistent event and waits for the
// broker to confirm it.
func (c *Client) PublishTransactionEvent(ctx context.Context, event *TransactionEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    string(event.Type) + ":" + strconv.FormatInt(event.Transaction.ID, 10),
		AppId:        appID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Body:         body,
	}

	// Confirm sequence numbers are per channel; serialize publishers.
	c.pubMu.Lock()
	confirm, err := c.publish.PublishWithDeferredConfirmWithContext(ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	slog.DebugContext(ctx, "Published transaction event",
		"event_type", event.Type,
		"transaction_id", event.Transaction.ID,
		"message_id", msg.MessageId)

	return nil
}

// ConsumeTransactionEvents delivers queued events to handler until ctx is
// done. Undecodable messages are dropped; handler failures are requeued.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *TransactionEvent) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		appID,       // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	closed := c.conn.NotifyClose(make(chan *amqp091.Error, 1))

	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("connection closed: %w", amqpErr)
			}
			return errors.New("connection closed")
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			settle(ctx, delivery, delivery.Body, handler)
		}
	}
}

// acknowledger is the subset of amqp091.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle decodes one delivery, runs handler and acks or nacks it.
func settle(ctx context.Context, ack acknowledger, body []byte, handler func(context.Context, *TransactionEvent) error) {
	event, err := TransactionEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping undecodable event", "error", err, "bytes", len(body))
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to handle event",
			"error", err,
			"event_type", event.Type,
			"transaction_id", event.Transaction.ID)
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
}

// Close closes the publish channel and the connection.
func (c *Client) Close() error {
	if c.publish != nil {
		_ = c.publish.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}
