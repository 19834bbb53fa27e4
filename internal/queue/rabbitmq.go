package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPQueue publishes requests to a durable RabbitMQ queue and matches
// replies by correlation ID on an exclusive reply queue.
type AMQPQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	name       string
	replyTo    string
	ackTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Ack
}

func DialAMQP(url, name string, ackTimeout time.Duration) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to consume replies: %w", err)
	}

	q := &AMQPQueue{
		conn:       conn,
		ch:         ch,
		name:       name,
		replyTo:    reply.Name,
		ackTimeout: ackTimeout,
		pending:    make(map[string]chan Ack),
	}
	go q.dispatch(deliveries)
	return q, nil
}

func (q *AMQPQueue) Submit(ctx context.Context, req Request) (Ack, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Ack{}, err
	}
	ctx, cancel := withAckTimeout(ctx, q.ackTimeout)
	defer cancel()

	id := req.ID.String()
	reply := make(chan Ack, 1)
	q.mu.Lock()
	q.pending[id] = reply
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.pending, id)
		q.mu.Unlock()
	}()

	err = q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: id,
		MessageId:     id,
		ReplyTo:       q.replyTo,
		Timestamp:     req.CreatedAt,
		Body:          body,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("failed to publish message: %w", err)
	}
	log.Info().Str("request", id).Int("prompts", len(req.Prompts)).Str("queue", q.name).Msg("image request published")

	select {
	case ack := <-reply:
		return ack, nil
	case <-ctx.Done():
		return Ack{}, ackError(ctx, req)
	}
}

func (q *AMQPQueue) dispatch(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var ack Ack
		if err := json.Unmarshal(d.Body, &ack); err != nil {
			log.Warn().Err(err).Str("correlation", d.CorrelationId).Msg("malformed ack")
			continue
		}
		q.mu.Lock()
		reply, ok := q.pending[d.CorrelationId]
		q.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case reply <- ack:
		default:
		}
	}
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
