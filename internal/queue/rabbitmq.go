package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "email_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "email_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "verveo_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "verveo_jobs_delayed"
	// DefaultRetryQueueName holds deferred jobs when the delayed exchange is missing
	DefaultRetryQueueName = "email_jobs_retry"

	jobsRoutingKey  = "jobs"
	dlqRoutingKey   = "dlq"
	retryRoutingKey = "retry"
)

// ErrQueueClosed is returned by HealthCheck once the connection is gone.
var ErrQueueClosed = errors.New("rabbitmq connection is closed")

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	logger              *zap.Logger
	queueName           string
	dlqName             string
	retryName           string
	exchangeName        string
	delayedExchangeName string
	delayedAvailable    bool
}

// NewRabbitMQQueue dials amqpURL and declares the exchanges and queues used for e-mail jobs.
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		logger:              logger,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		retryName:           DefaultRetryQueueName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// setup configures exchanges and queues
func (q *RabbitMQQueue) setup() error {
	// Delayed exchange requires the rabbitmq_delayed_message_exchange plugin
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		// A failed declare closes the channel
		if q.channel.IsClosed() {
			newCh, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = newCh
		}
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	} else {
		q.delayedAvailable = true
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(q.dlqName, dlqRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	if q.delayedAvailable {
		if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.delayedExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to delayed exchange: %w", err)
		}
		return nil
	}

	// Without the plugin, deferred jobs wait out a per-message TTL in the retry
	// queue and are dead-lettered back onto the main queue.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": jobsRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.retryName, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}
	if err := q.channel.QueueBind(q.retryName, retryRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry queue: %w", err)
	}

	return nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	publishing, rt, err := buildPublishing(job, time.Now(), q.routes())
	if err != nil {
		return err
	}

	if err := q.channel.PublishWithContext(ctx, rt.exchange, rt.key, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

type route struct {
	exchange string
	key      string
}

type routes struct {
	immediate route
	delayed   *route
	retry     route
}

func (q *RabbitMQQueue) routes() routes {
	r := routes{
		immediate: route{q.exchangeName, jobsRoutingKey},
		retry:     route{q.exchangeName, retryRoutingKey},
	}
	if q.delayedAvailable {
		r.delayed = &route{q.delayedExchangeName, jobsRoutingKey}
	}
	return r
}

// buildPublishing encodes job and picks the route it should be published on.
func buildPublishing(job *Job, now time.Time, r routes) (amqp.Publishing, route, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, route{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}

	var delay time.Duration
	if job.NotBefore != nil {
		delay = job.NotBefore.Sub(now)
	}

	if delay > 0 {
		if r.delayed != nil {
			publishing.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
			return publishing, *r.delayed, nil
		}
		publishing.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
		return publishing, r.retry, nil
	}

	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	return publishing, r.immediate, nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Consumers get their own channel so publishes are never blocked behind deliveries
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if prefetchCount < 1 {
		prefetchCount = 1
	}
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				msg, early, err := decodeDelivery(delivery)
				if err != nil {
					_ = delivery.Nack(false, false)
					q.logger.Warn("job_rejected",
						zap.String("message_id", delivery.MessageId),
						zap.Error(err))
					continue
				}
				if early != nil {
					if err := deferDelivery(ctx, q.channel, delivery, early, time.Now(), q.routes()); err != nil {
						q.logger.Warn("job_defer_failed",
							zap.String("message_id", delivery.MessageId),
							zap.Error(err))
					}
					continue
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// decodeDelivery turns a delivery into a Message. A job whose NotBefore has
// not arrived yet comes back as early instead; any error means dead-letter.
func decodeDelivery(delivery amqp.Delivery) (msg *Message, early *Job, err error) {
	var job Job
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, nil, err
	}
	if job.IsExpired() {
		return nil, nil, fmt.Errorf("job %s expired", job.ID)
	}
	if !job.ShouldProcess() {
		return nil, &job, nil
	}

	return &Message{
		Job:          &job,
		DeliveryTag:  delivery.DeliveryTag,
		Acknowledger: delivery.Acknowledger,
	}, nil, nil
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// deferDelivery republishes an early job on the deferred route for the time
// it still has to wait and acks the original. If the republish fails the
// delivery is requeued.
func deferDelivery(ctx context.Context, pub publisher, delivery amqp.Delivery, job *Job, now time.Time, r routes) error {
	publishing, rt, err := buildPublishing(job, now, r)
	if err == nil {
		err = pub.PublishWithContext(ctx, rt.exchange, rt.key, false, false, publishing)
	}
	if err != nil {
		_ = delivery.Nack(false, true)
		return fmt.Errorf("failed to defer job %s: %w", job.ID, err)
	}
	return delivery.Ack(false)
}

// PurgeOlderThan drops dead-lettered jobs whose timestamp is older than retention.
// It stops at the first message that is still within the window.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	purged := 0

	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		msg, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if msg.Timestamp.IsZero() || msg.Timestamp.Before(cutoff) {
			if err := msg.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
			}
			purged++
			continue
		}

		if err := msg.Nack(false, true); err != nil {
			return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
		}
		return purged, nil
	}
}

// HealthCheck verifies the queue connection is healthy
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() || q.channel == nil || q.channel.IsClosed() {
		return ErrQueueClosed
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)
