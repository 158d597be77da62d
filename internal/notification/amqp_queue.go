package notification

import (
	"context"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"

	"library-catalog/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishTimeout = 5 * time.Second

// AMQPQueue stores messages in a durable RabbitMQ queue so they survive a
// restart of the service.
type AMQPQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

func NewAMQPQueue(url, queue string, logger *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to connect to message broker").WithDetails(err.Error())
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.NewAppError(errors.InternalError, "failed to open broker channel").WithDetails(err.Error())
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.NewAppError(errors.InternalError, "failed to declare notification queue").WithDetails(err.Error())
	}

	logger.Info("Connected to message broker", "queue", queue)
	return &AMQPQueue{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		logger: logger,
	}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, msg Message) error {
	if q.ch.IsClosed() {
		return errors.ErrQueueClosed
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode notification").WithDetails(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to publish notification").WithDetails(err.Error())
	}
	return nil
}

func (q *AMQPQueue) Consume(ctx context.Context, handle Handler) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return errors.NewAppError(errors.InternalError, "failed to set broker prefetch").WithDetails(err.Error())
	}

	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to consume notification queue").WithDetails(err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			var msg Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				q.logger.Error("Discarding malformed notification", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, false)
				continue
			}

			if err := handle(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			if err := d.Ack(false); err != nil {
				q.logger.Warn("Failed to ack notification", "message_id", d.MessageId, "error", err)
			}
		}
	}
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil && err != amqp.ErrClosed {
		return err
	}
	if err := q.conn.Close(); err != nil && err != amqp.ErrClosed {
		return err
	}
	return nil
}
