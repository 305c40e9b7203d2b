package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
)

// ErrQueueClosed возвращается, если брокер закрыл канал доставки.
var ErrQueueClosed = errors.New("queue: delivery channel closed")

// RabbitRebuildQueue реализует очередь задач пересчёта поверх AMQP.
type RabbitRebuildQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitRebuildQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitRebuildQueue(amqpURL, queue string) (*RabbitRebuildQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitRebuildQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь. Пустой ID заполняется новым UUID.
func (q *RabbitRebuildQueue) Enqueue(ctx context.Context, job domain.RebuildJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе ждёт задачу. Вызывающий обязан вызвать ack.
func (q *RabbitRebuildQueue) Receive(ctx context.Context) (domain.RebuildJob, domain.RebuildAckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.RebuildJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.RebuildJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.RebuildJob{}, nil, ErrQueueClosed
			}
			var job domain.RebuildJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// битое сообщение не вернётся в очередь
				_ = d.Nack(false, false)
				return domain.RebuildJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(outcome domain.AckOutcome) error {
				switch outcome {
				case domain.AckDone:
					return d.Ack(false)
				case domain.AckRequeue:
					return d.Nack(false, true)
				default:
					return d.Nack(false, false)
				}
			}
			return job, ack, nil
		}
	}
}

func (q *RabbitRebuildQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitRebuildQueue) Close() error {
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
